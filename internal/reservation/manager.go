package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/metrics"
	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

var (
	// ErrRemoteWrite means the shared list was not updated. Nothing was
	// recorded locally and the flow can be retried.
	ErrRemoteWrite     = errors.New("failed to update the shared gift list")
	ErrAlreadyReserved = errors.New("gift is already reserved")
	ErrGiftNotFound    = errors.New("gift not found")
)

// NotSyncedWarning is attached to claims recorded while the shared list is
// unreachable.
const NotSyncedWarning = "reservation saved on this device only, not synced to the shared list"

// RemoteStore is the shared spreadsheet, written directly or through the
// reservation API.
type RemoteStore interface {
	Write(ctx context.Context, giftID, title, guestName string, rowIndex int) bool
	ReadAll(ctx context.Context) (map[string]models.RemoteReservation, error)
	Available() bool
}

// Notifier announces a committed reservation.
type Notifier interface {
	NotifyReservation(ctx context.Context, claim models.ReservationClaim) error
}

// GiftLookup resolves revealed gifts by id.
type GiftLookup interface {
	Gift(id string) (models.Gift, bool)
}

// Outcome of a submitted flow.
type Outcome struct {
	Flow            Flow
	Claim           models.ReservationClaim
	Synced          bool
	Warning         string
	NotificationErr error
}

// Manager commits reservation flows.
type Manager struct {
	remote   RemoteStore
	claims   repository.ClaimRepository
	notifier Notifier
	gifts    GiftLookup
	view     *View
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

func WithManagerMetrics(m *metrics.Metrics) ManagerOption {
	return func(mg *Manager) { mg.metrics = m }
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(mg *Manager) { mg.now = now }
}

// NewManager creates a Manager. remote and notifier may be nil.
func NewManager(remote RemoteStore, claims repository.ClaimRepository, notifier Notifier, gifts GiftLookup, logger *logrus.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		remote:   remote,
		claims:   claims,
		notifier: notifier,
		gifts:    gifts,
		view:     NewView(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// View returns the merged reservation view.
func (m *Manager) View() *View {
	return m.view
}

// Submit confirms a flow in the confirming state and commits it. The remote
// write happens first; local state changes only after it succeeds. On
// failure the returned flow is back in confirming with the guest's input
// retained.
func (m *Manager) Submit(ctx context.Context, flow Flow) (Outcome, error) {
	submitting, err := Reduce(flow, Confirm{})
	if err != nil {
		return Outcome{Flow: flow}, err
	}

	gift := submitting.Gift
	log := m.logger.WithFields(logrus.Fields{
		"gift_id":    gift.ID,
		"row_index":  gift.RowIndex,
		"guest_name": submitting.GuestName,
	})

	claim := models.ReservationClaim{
		ID:        uuid.NewString(),
		GiftID:    gift.ID,
		GiftTitle: gift.Title,
		GuestName: submitting.GuestName,
		Message:   submitting.Message,
		CreatedAt: m.now(),
	}

	var warning string
	if m.remote == nil || !m.remote.Available() {
		warning = NotSyncedWarning
		log.Warn("Shared list unavailable, recording local-only reservation")
		m.metrics.Reservation("local")
	} else if !m.remote.Write(ctx, gift.ID, gift.Title, submitting.GuestName, gift.RowIndex) {
		failed, _ := Reduce(submitting, Failed{Err: ErrRemoteWrite})
		log.Error("Remote reservation write failed")
		m.metrics.Reservation("failed")
		return Outcome{Flow: failed}, ErrRemoteWrite
	} else {
		claim.Synced = true
		m.metrics.Reservation("synced")
	}

	if err := m.claims.Append(ctx, &claim); err != nil {
		log.WithError(err).Error("Failed to append reservation claim")
	}
	m.view.Confirm(claim)

	out := Outcome{Claim: claim, Synced: claim.Synced, Warning: warning}
	if m.notifier != nil {
		if err := m.notifier.NotifyReservation(ctx, claim); err != nil {
			log.WithError(err).Warn("Reservation saved but notification failed")
			out.NotificationErr = err
		}
	}

	out.Flow, _ = Reduce(submitting, Succeeded{})
	log.WithField("synced", claim.Synced).Info("Gift reserved")
	return out, nil
}

// Reserve runs a whole flow for a single request.
func (m *Manager) Reserve(ctx context.Context, giftID, guestName, message string) (Outcome, error) {
	gift, ok := m.gifts.Gift(giftID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrGiftNotFound, giftID)
	}
	if m.IsReserved(gift) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrAlreadyReserved, gift.Title)
	}

	flow, err := Reduce(Flow{}, Open{Gift: gift})
	if err != nil {
		return Outcome{}, err
	}
	flow, err = Reduce(flow, SubmitInfo{GuestName: guestName, Message: message})
	if err != nil {
		return Outcome{Flow: flow}, err
	}
	return m.Submit(ctx, flow)
}

// IsReserved reports whether the gift is reserved in the catalog row or the
// merged view.
func (m *Manager) IsReserved(gift models.Gift) bool {
	return gift.Reserved || m.view.Get(gift.ID).Reserved
}

// Lookup returns the merged reservation status of a gift.
func (m *Manager) Lookup(gift models.Gift) models.ReservationView {
	view := m.view.Get(gift.ID)
	if gift.Reserved {
		view.Reserved = true
		if view.ReservedBy == "" {
			view.ReservedBy = gift.ReservedBy
		}
	}
	return view
}

// SyncRemote replaces the remote part of the view with a full read of the
// shared list.
func (m *Manager) SyncRemote(ctx context.Context) (map[string]models.RemoteReservation, error) {
	if m.remote == nil || !m.remote.Available() {
		return map[string]models.RemoteReservation{}, nil
	}
	remote, err := m.remote.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read reservations: %w", err)
	}
	m.view.ApplyRemote(remote)
	m.logger.WithField("rows", len(remote)).Debug("Remote reservations synced")
	return remote, nil
}

// LoadClaims replays the durable claim log into the view.
func (m *Manager) LoadClaims(ctx context.Context) (int, error) {
	claims, err := m.claims.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load reservation claims: %w", err)
	}
	for _, c := range claims {
		m.view.Confirm(*c)
	}
	return len(claims), nil
}

// ApplyCatalog takes the reservation columns of a catalog fetch as the
// current remote state of those rows, so a reservation cleared in the
// spreadsheet is cleared here too. Rows exported without the columns keep
// their previous state. Local claims stay on top.
func (m *Manager) ApplyCatalog(gifts []models.Gift) {
	remote := make(map[string]models.RemoteReservation)
	for _, g := range gifts {
		if !g.ReservationColumns {
			continue
		}
		remote[g.ID] = models.RemoteReservation{
			Reserved:   g.Reserved,
			ReservedBy: g.ReservedBy,
			Title:      g.Title,
			RowIndex:   g.RowIndex,
		}
	}
	if len(remote) > 0 {
		m.view.UpdateRemote(remote)
	}
}
