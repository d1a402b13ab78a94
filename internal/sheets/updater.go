// Package sheets writes reservations to the shared spreadsheet and reads
// them back.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/catalog"
	"github.com/Kerhoff/giftlist/internal/models"
)

const (
	DefaultSheetName = "Lista"
	// ReservedToken is written to the status column.
	ReservedToken = "Sim"
)

// ErrNotConfigured is returned by ReadAll when no client is set.
var ErrNotConfigured = errors.New("sheets client not configured")

// RangeFor returns the status and guest-name cells of a 1-based row.
func RangeFor(sheet string, row int) string {
	return fmt.Sprintf("%s!F%d:G%d", sheet, row, row)
}

// Updater overwrites reservation cells and reads the full table back.
//
// Writes are unconditional: two guests reserving the same row close together
// both succeed and the later guest name wins.
type Updater struct {
	client ValuesClient
	sheet  string
	logger *logrus.Logger
}

// NewUpdater creates an Updater. A nil client yields an unavailable updater.
func NewUpdater(client ValuesClient, sheet string, logger *logrus.Logger) *Updater {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &Updater{client: client, sheet: sheet, logger: logger}
}

// Available reports whether a client is configured.
func (u *Updater) Available() bool {
	return u != nil && u.client != nil
}

// Write marks rowIndex as reserved by guestName. It never returns an error;
// false means the row was not written.
func (u *Updater) Write(ctx context.Context, giftID, title, guestName string, rowIndex int) bool {
	log := u.logger.WithFields(logrus.Fields{
		"gift_id":   giftID,
		"title":     title,
		"row_index": rowIndex,
	})

	if !u.Available() {
		log.Warn("Sheets client not configured, skipping write")
		return false
	}
	if rowIndex < 2 {
		log.Warn("Refusing to write reservation to header or invalid row")
		return false
	}

	rng := RangeFor(u.sheet, rowIndex)
	if err := u.client.Update(ctx, rng, [][]string{{ReservedToken, guestName}}); err != nil {
		log.WithError(err).Error("Failed to write reservation")
		return false
	}

	log.WithField("range", rng).Info("Reservation written to sheet")
	return true
}

// ReadAll maps every titled row to its reservation status, keyed by gift id.
func (u *Updater) ReadAll(ctx context.Context) (map[string]models.RemoteReservation, error) {
	if !u.Available() {
		return nil, ErrNotConfigured
	}

	rows, err := u.client.Get(ctx, u.sheet+"!A:G")
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.RemoteReservation, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}
		title := cell(row, 0)
		if title == "" {
			continue
		}
		out[catalog.GiftID(title)] = models.RemoteReservation{
			Reserved:   catalog.IsTruthy(cell(row, 5)),
			ReservedBy: cell(row, 6),
			Title:      title,
			RowIndex:   i + 1,
		}
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
