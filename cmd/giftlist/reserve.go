package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/notify"
	"github.com/Kerhoff/giftlist/internal/reservation"
)

type reserveOptions struct {
	guest   string
	message string
}

// giftIndex resolves gifts from a single catalog fetch.
type giftIndex map[string]models.Gift

func (g giftIndex) Gift(id string) (models.Gift, bool) {
	gift, ok := g[id]
	return gift, ok
}

// NewReserveCommand reserves one gift on behalf of a guest.
func NewReserveCommand(opts *RootOptions) *cobra.Command {
	ro := &reserveOptions{}

	cmd := &cobra.Command{
		Use:   "reserve <gift-id>",
		Short: "Reserve a gift for a guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			gifts, err := a.fetcher().Fetch(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch catalog: %w", err)
			}
			index := make(giftIndex, len(gifts))
			for _, g := range gifts {
				index[g.ID] = g
			}

			notifier := notify.New(a.logger, a.metrics, a.emailChannel())
			mgr := reservation.NewManager(a.remote, a.claims, notifier, index, a.logger,
				reservation.WithManagerMetrics(a.metrics))
			if _, err := mgr.LoadClaims(ctx); err != nil {
				return err
			}
			if _, err := mgr.SyncRemote(ctx); err != nil {
				a.logger.WithError(err).Warn("Could not read current reservations")
			}
			mgr.ApplyCatalog(gifts)

			outcome, err := mgr.Reserve(ctx, args[0], ro.guest, ro.message)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, outcomeReport(outcome))
			}
			printOutcome(out, outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&ro.guest, "guest", "", "name of the guest reserving the gift (required)")
	cmd.Flags().StringVar(&ro.message, "message", "", "optional message for the couple")
	_ = cmd.MarkFlagRequired("guest")

	return cmd
}

type reserveReport struct {
	Claim             models.ReservationClaim `json:"claim"`
	Synced            bool                    `json:"synced"`
	Warning           string                  `json:"warning,omitempty"`
	NotificationError string                  `json:"notificationError,omitempty"`
}

func outcomeReport(o reservation.Outcome) reserveReport {
	r := reserveReport{Claim: o.Claim, Synced: o.Synced, Warning: o.Warning}
	if o.NotificationErr != nil {
		r.NotificationError = o.NotificationErr.Error()
	}
	return r
}

func printOutcome(w io.Writer, o reservation.Outcome) {
	fmt.Fprintf(w, "Reserved %q for %s\n", o.Claim.GiftTitle, o.Claim.GuestName)
	if o.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", o.Warning)
	}
	if o.NotificationErr != nil {
		fmt.Fprintf(w, "notification failed: %v\n", o.NotificationErr)
	}
}
