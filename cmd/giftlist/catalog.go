package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/giftlist/internal/models"
)

// NewCatalogCommand fetches the catalog once and lists it.
func NewCatalogCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Fetch the gift catalog and list it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			gifts, err := a.fetcher().Fetch(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch catalog: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, gifts)
			}
			printGifts(out, gifts)
			return nil
		},
	}
}

func printGifts(w io.Writer, gifts []models.Gift) {
	if len(gifts) == 0 {
		fmt.Fprintln(w, "No gifts in the catalog.")
		return
	}
	for _, g := range gifts {
		status := "available"
		if g.Reserved {
			status = "reserved"
			if g.ReservedBy != "" {
				status += " by " + g.ReservedBy
			}
		}
		fmt.Fprintf(w, "%3d  %-40s  row %-4d %s\n", g.Order, g.Title, g.RowIndex, status)
		fmt.Fprintf(w, "     %s\n", g.ID)
	}
	fmt.Fprintf(w, "\n%d gifts\n", len(gifts))
}
