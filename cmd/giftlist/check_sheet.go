package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/giftlist/internal/catalog"
)

type pathCheck struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	OK        bool   `json:"ok"`
	Gifts     int    `json:"gifts"`
	Hidden    int    `json:"hidden"`
	Invalid   int    `json:"invalid"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsedMs"`
}

// NewCheckSheetCommand probes every access path to the spreadsheet export.
func NewCheckSheetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check-sheet",
		Short: "Check that the spreadsheet export is reachable through every access path",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			reports := a.fetcher().Probe(cmd.Context())
			checks := make([]pathCheck, 0, len(reports))
			reachable := 0
			for _, r := range reports {
				checks = append(checks, toPathCheck(r))
				if r.Err == nil {
					reachable++
				}
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				if err := writeJSON(out, checks); err != nil {
					return err
				}
			} else {
				printPathChecks(out, checks)
			}

			if reachable == 0 {
				return fmt.Errorf("spreadsheet unreachable through %d access paths", len(reports))
			}
			return nil
		},
	}
}

func toPathCheck(r catalog.PathReport) pathCheck {
	c := pathCheck{
		Name:      r.Path.Name,
		URL:       r.Path.URL,
		OK:        r.Err == nil,
		Gifts:     len(r.Result.Gifts),
		Hidden:    r.Result.Hidden,
		Invalid:   r.Result.Invalid,
		ElapsedMS: r.Elapsed.Milliseconds(),
	}
	if r.Err != nil {
		c.Error = r.Err.Error()
	}
	return c
}

func printPathChecks(w io.Writer, checks []pathCheck) {
	for _, c := range checks {
		if !c.OK {
			fmt.Fprintf(w, "FAIL  %-20s %dms  %s\n", c.Name, c.ElapsedMS, c.Error)
			continue
		}
		fmt.Fprintf(w, "OK    %-20s %dms  %d gifts (%d hidden, %d invalid)\n",
			c.Name, c.ElapsedMS, c.Gifts, c.Hidden, c.Invalid)
	}
}
