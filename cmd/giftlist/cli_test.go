package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/giftlist/internal/catalog"
	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/reservation"
)

func TestRootRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"catalog", "--format", "xml"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "check-sheet", "catalog", "reservations", "reserve"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestReserveRequiresGuest(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"reserve", "gift-panela-1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "guest")
}

func TestToPathCheck(t *testing.T) {
	ok := toPathCheck(catalog.PathReport{
		Path:    catalog.AccessPath{Name: "direct", URL: "https://example.com/export"},
		Result:  catalog.ParseResult{Gifts: make([]models.Gift, 3), Hidden: 1, Invalid: 2},
		Elapsed: 120 * time.Millisecond,
	})
	assert.True(t, ok.OK)
	assert.Equal(t, 3, ok.Gifts)
	assert.Equal(t, int64(120), ok.ElapsedMS)
	assert.Empty(t, ok.Error)

	failed := toPathCheck(catalog.PathReport{
		Path: catalog.AccessPath{Name: "codetabs"},
		Err:  errors.New("status 503"),
	})
	assert.False(t, failed.OK)
	assert.Equal(t, "status 503", failed.Error)

	var buf bytes.Buffer
	printPathChecks(&buf, []pathCheck{ok, failed})
	assert.Contains(t, buf.String(), "OK    direct")
	assert.Contains(t, buf.String(), "FAIL  codetabs")
}

func TestPrintGifts(t *testing.T) {
	var buf bytes.Buffer
	printGifts(&buf, nil)
	assert.Contains(t, buf.String(), "No gifts")

	buf.Reset()
	printGifts(&buf, []models.Gift{
		{ID: "gift-panela-1", Title: "Panela", Order: 1, RowIndex: 2},
		{ID: "gift-toalha-2", Title: "Toalha", Order: 2, RowIndex: 3, Reserved: true, ReservedBy: "Ana"},
	})
	out := buf.String()
	assert.Contains(t, out, "Panela")
	assert.Contains(t, out, "reserved by Ana")
	assert.Contains(t, out, "2 gifts")
}

func TestGiftIndex(t *testing.T) {
	idx := giftIndex{"gift-panela-1": {ID: "gift-panela-1", Title: "Panela"}}
	g, ok := idx.Gift("gift-panela-1")
	assert.True(t, ok)
	assert.Equal(t, "Panela", g.Title)
	_, ok = idx.Gift("missing")
	assert.False(t, ok)
}

func TestOutcomeReport(t *testing.T) {
	r := outcomeReport(reservation.Outcome{
		Claim:           models.ReservationClaim{GiftTitle: "Panela", GuestName: "Ana"},
		Warning:         reservation.NotSyncedWarning,
		NotificationErr: errors.New("smtp down"),
	})
	assert.False(t, r.Synced)
	assert.Equal(t, "smtp down", r.NotificationError)

	var buf bytes.Buffer
	printOutcome(&buf, reservation.Outcome{Claim: r.Claim, Warning: r.Warning})
	assert.Contains(t, buf.String(), `Reserved "Panela" for Ana`)
	assert.Contains(t, buf.String(), "warning:")
}
