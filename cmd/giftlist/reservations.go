package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/giftlist/internal/models"
)

type reservationsReport struct {
	Remote []models.RemoteReservation `json:"remote"`
	Claims []*models.ReservationClaim `json:"claims"`
}

// NewReservationsCommand lists reservations recorded in the spreadsheet and
// the local claims log.
func NewReservationsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reservations",
		Short: "List spreadsheet reservations and local reservation claims",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			report := reservationsReport{}
			if a.remote.Available() {
				all, err := a.remote.ReadAll(ctx)
				if err != nil {
					return fmt.Errorf("failed to read reservations: %w", err)
				}
				for _, r := range all {
					if r.Reserved {
						report.Remote = append(report.Remote, r)
					}
				}
				sort.Slice(report.Remote, func(i, j int) bool {
					return report.Remote[i].RowIndex < report.Remote[j].RowIndex
				})
			} else {
				a.logger.Warn("Remote reservations unavailable, listing local claims only")
			}

			report.Claims, err = a.claims.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list claims: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, report)
			}
			printReservations(out, report)
			return nil
		},
	}
}

func printReservations(w io.Writer, r reservationsReport) {
	fmt.Fprintf(w, "Spreadsheet (%d reserved)\n", len(r.Remote))
	for _, res := range r.Remote {
		fmt.Fprintf(w, "  row %-4d %-40s %s\n", res.RowIndex, res.Title, res.ReservedBy)
	}

	fmt.Fprintf(w, "\nLocal claims (%d)\n", len(r.Claims))
	for _, c := range r.Claims {
		synced := "local only"
		if c.Synced {
			synced = "synced"
		}
		fmt.Fprintf(w, "  %s  %-40s %-20s %s\n", c.CreatedAt.Format("2006-01-02 15:04"), c.GiftTitle, c.GuestName, synced)
	}
}
