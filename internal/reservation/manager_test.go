package reservation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/giftlist/internal/models"
)

type fakeRemote struct {
	mu        sync.Mutex
	available bool
	ok        bool
	rows      map[string]models.RemoteReservation
	readErr   error
	writes    []string
	reads     int
}

func (r *fakeRemote) Write(_ context.Context, giftID, _, guestName string, rowIndex int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, giftID+"|"+guestName)
	return r.ok && rowIndex >= 2
}

func (r *fakeRemote) ReadAll(context.Context) (map[string]models.RemoteReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return r.rows, r.readErr
}

func (r *fakeRemote) Available() bool { return r.available }

type memClaims struct {
	mu     sync.Mutex
	claims []*models.ReservationClaim
	err    error
}

func (m *memClaims) Append(_ context.Context, c *models.ReservationClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.claims = append(m.claims, c)
	return nil
}

func (m *memClaims) List(context.Context) ([]*models.ReservationClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claims, m.err
}

type fakeNotifier struct {
	err  error
	sent []models.ReservationClaim
}

func (n *fakeNotifier) NotifyReservation(_ context.Context, c models.ReservationClaim) error {
	n.sent = append(n.sent, c)
	return n.err
}

type giftMap map[string]models.Gift

func (g giftMap) Gift(id string) (models.Gift, bool) {
	gift, ok := g[id]
	return gift, ok
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var fixedNow = time.Date(2024, 9, 14, 15, 30, 0, 0, time.UTC)

func newTestManager(remote RemoteStore, claims *memClaims, n Notifier) *Manager {
	return NewManager(remote, claims, n, giftMap{panela.ID: panela}, quietLogger(),
		WithManagerClock(func() time.Time { return fixedNow }))
}

func confirmingFlow(t *testing.T, name, message string) Flow {
	t.Helper()
	f, err := Reduce(Flow{}, Open{Gift: panela})
	require.NoError(t, err)
	f, err = Reduce(f, SubmitInfo{GuestName: name, Message: message})
	require.NoError(t, err)
	return f
}

func TestSubmitReadYourWrites(t *testing.T) {
	remote := &fakeRemote{available: true, ok: true}
	claims := &memClaims{}
	n := &fakeNotifier{}
	m := newTestManager(remote, claims, n)

	out, err := m.Submit(context.Background(), confirmingFlow(t, "Ana", "Felicidades"))
	require.NoError(t, err)

	assert.True(t, out.Synced)
	assert.Empty(t, out.Warning)
	assert.NoError(t, out.NotificationErr)
	assert.Equal(t, StateClosed, out.Flow.State)

	view := m.View().Get(panela.ID)
	assert.True(t, view.Reserved)
	assert.Equal(t, "Ana", view.ReservedBy)
	assert.Zero(t, remote.reads)

	require.Len(t, claims.claims, 1)
	c := claims.claims[0]
	assert.Equal(t, panela.ID, c.GiftID)
	assert.Equal(t, "Panela", c.GiftTitle)
	assert.Equal(t, "Felicidades", c.Message)
	assert.Equal(t, fixedNow, c.CreatedAt)
	assert.True(t, c.Synced)
	assert.NotEmpty(t, c.ID)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "Ana", n.sent[0].GuestName)
}

func TestSubmitRemoteFailureLeavesStateUntouched(t *testing.T) {
	remote := &fakeRemote{available: true, ok: false}
	claims := &memClaims{}
	n := &fakeNotifier{}
	m := newTestManager(remote, claims, n)

	out, err := m.Submit(context.Background(), confirmingFlow(t, "Ana", "oi"))
	require.ErrorIs(t, err, ErrRemoteWrite)

	assert.Equal(t, StateConfirming, out.Flow.State)
	assert.Equal(t, "Ana", out.Flow.GuestName)
	assert.Equal(t, "oi", out.Flow.Message)
	assert.NotEmpty(t, out.Flow.LastError)

	assert.False(t, m.View().Get(panela.ID).Reserved)
	assert.Empty(t, claims.claims)
	assert.Empty(t, n.sent)
}

func TestSubmitNotificationFailureKeepsReservation(t *testing.T) {
	remote := &fakeRemote{available: true, ok: true}
	n := &fakeNotifier{err: errors.New("smtp down")}
	m := newTestManager(remote, &memClaims{}, n)

	out, err := m.Submit(context.Background(), confirmingFlow(t, "Ana", ""))
	require.NoError(t, err)
	assert.EqualError(t, out.NotificationErr, "smtp down")
	assert.True(t, m.View().Get(panela.ID).Reserved)
}

func TestSubmitDegradedWhenRemoteUnavailable(t *testing.T) {
	remote := &fakeRemote{available: false, ok: true}
	claims := &memClaims{}
	m := newTestManager(remote, claims, nil)

	out, err := m.Submit(context.Background(), confirmingFlow(t, "Ana", ""))
	require.NoError(t, err)

	assert.False(t, out.Synced)
	assert.Equal(t, NotSyncedWarning, out.Warning)
	assert.Empty(t, remote.writes)
	require.Len(t, claims.claims, 1)
	assert.False(t, claims.claims[0].Synced)
	assert.True(t, m.View().Get(panela.ID).Reserved)
}

func TestSubmitRequiresConfirmingFlow(t *testing.T) {
	m := newTestManager(&fakeRemote{available: true, ok: true}, &memClaims{}, nil)

	_, err := m.Submit(context.Background(), Flow{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReserve(t *testing.T) {
	t.Run("unknown gift", func(t *testing.T) {
		m := newTestManager(&fakeRemote{available: true, ok: true}, &memClaims{}, nil)
		_, err := m.Reserve(context.Background(), "gift-nope-1", "Ana", "")
		assert.ErrorIs(t, err, ErrGiftNotFound)
	})

	t.Run("blank name", func(t *testing.T) {
		m := newTestManager(&fakeRemote{available: true, ok: true}, &memClaims{}, nil)
		_, err := m.Reserve(context.Background(), panela.ID, " ", "")
		assert.ErrorIs(t, err, ErrGuestNameRequired)
	})

	t.Run("already reserved", func(t *testing.T) {
		m := newTestManager(&fakeRemote{available: true, ok: true}, &memClaims{}, nil)
		_, err := m.Reserve(context.Background(), panela.ID, "Ana", "")
		require.NoError(t, err)

		_, err = m.Reserve(context.Background(), panela.ID, "Bia", "")
		assert.ErrorIs(t, err, ErrAlreadyReserved)
	})

	t.Run("reserved remotely", func(t *testing.T) {
		remote := &fakeRemote{available: true, ok: true, rows: map[string]models.RemoteReservation{
			panela.ID: {Reserved: true, ReservedBy: "Caio"},
		}}
		m := newTestManager(remote, &memClaims{}, nil)
		_, err := m.SyncRemote(context.Background())
		require.NoError(t, err)

		_, err = m.Reserve(context.Background(), panela.ID, "Ana", "")
		assert.ErrorIs(t, err, ErrAlreadyReserved)
		assert.Empty(t, remote.writes)
	})
}

func TestSyncRemote(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		remote := &fakeRemote{available: false}
		m := newTestManager(remote, &memClaims{}, nil)
		got, err := m.SyncRemote(context.Background())
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Zero(t, remote.reads)
	})

	t.Run("read error", func(t *testing.T) {
		remote := &fakeRemote{available: true, readErr: errors.New("quota")}
		m := newTestManager(remote, &memClaims{}, nil)
		_, err := m.SyncRemote(context.Background())
		assert.ErrorContains(t, err, "quota")
	})
}

func TestLoadClaimsReplaysLog(t *testing.T) {
	claims := &memClaims{claims: []*models.ReservationClaim{
		{GiftID: "a", GuestName: "Ana"},
		{GiftID: "b", GuestName: "Bia"},
	}}
	m := newTestManager(nil, claims, nil)

	n, err := m.LoadClaims(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Bia", m.View().Get("b").ReservedBy)
}

func TestApplyCatalogMergesReservedRows(t *testing.T) {
	m := newTestManager(nil, &memClaims{}, nil)
	m.ApplyCatalog([]models.Gift{
		{ID: "a", Title: "A", Reserved: true, ReservedBy: "Ana", RowIndex: 2, ReservationColumns: true},
		{ID: "b", Title: "B", ReservationColumns: true},
	})

	assert.Equal(t, models.ReservationView{Reserved: true, ReservedBy: "Ana"}, m.View().Get("a"))
	assert.False(t, m.View().Get("b").Reserved)
	assert.True(t, m.Lookup(models.Gift{ID: "z", Reserved: true, ReservedBy: "Zé"}).Reserved)
}

func TestApplyCatalogClearsReservationRemovedFromSheet(t *testing.T) {
	m := newTestManager(nil, &memClaims{}, nil)
	m.ApplyCatalog([]models.Gift{
		{ID: "a", Title: "A", Reserved: true, ReservedBy: "Ana", ReservationColumns: true},
		{ID: "b", Title: "B", Reserved: true, ReservedBy: "Bia", ReservationColumns: true},
	})
	m.View().Confirm(models.ReservationClaim{GiftID: "b", GuestName: "Bia"})

	m.ApplyCatalog([]models.Gift{
		{ID: "a", Title: "A", ReservationColumns: true},
		{ID: "b", Title: "B", ReservationColumns: true},
	})

	assert.Equal(t, models.ReservationView{}, m.View().Get("a"))
	assert.Equal(t, models.ReservationView{Reserved: true, ReservedBy: "Bia"}, m.View().Get("b"))
}

func TestApplyCatalogKeepsStateForRowsWithoutColumns(t *testing.T) {
	m := newTestManager(nil, &memClaims{}, nil)
	m.ApplyCatalog([]models.Gift{{ID: "a", Title: "A", Reserved: true, ReservedBy: "Ana", ReservationColumns: true}})

	m.ApplyCatalog([]models.Gift{{ID: "a", Title: "A"}})

	assert.True(t, m.View().Get("a").Reserved)
}

func TestSyncRemoteClearsReservationRemovedFromSheet(t *testing.T) {
	remote := &fakeRemote{available: true, rows: map[string]models.RemoteReservation{
		"a": {Reserved: true, ReservedBy: "Ana", RowIndex: 2},
	}}
	m := newTestManager(remote, &memClaims{}, nil)
	_, err := m.SyncRemote(context.Background())
	require.NoError(t, err)
	require.True(t, m.View().Get("a").Reserved)

	remote.rows = map[string]models.RemoteReservation{"a": {Reserved: false, RowIndex: 2}}
	_, err = m.SyncRemote(context.Background())
	require.NoError(t, err)
	assert.False(t, m.View().Get("a").Reserved)
}
