package service

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

	"github.com/Kerhoff/giftlist/internal/catalog"
	"github.com/Kerhoff/giftlist/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]models.Gift
	err     error
	calls   int
	block   chan struct{}
}

func (s *scriptedSource) Fetch(ctx context.Context) ([]models.Gift, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	block := s.block
	s.mu.Unlock()

	if block != nil && call == 0 {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if call >= len(s.batches) {
		call = len(s.batches) - 1
	}
	return s.batches[call], nil
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubChecker struct {
	invalid map[string]bool
}

func (c stubChecker) Validate(_ context.Context, gift models.Gift) catalog.ValidationResult {
	if c.invalid[gift.ID] {
		return catalog.ValidationResult{Gift: gift, Error: "broken image"}
	}
	return catalog.ValidationResult{Gift: gift, IsValid: true}
}

func gift(id string, order, position int) models.Gift {
	return models.Gift{ID: id, Title: id, Order: order, Position: position, Visible: true}
}

func newTestScheduler(src CatalogSource, checker ImageChecker, opts ...SchedulerOption) *SyncScheduler {
	opts = append([]SchedulerOption{WithValidationStagger(0)}, opts...)
	return NewSyncScheduler(src, checker, quietLogger(), opts...)
}

func ids(gifts []models.Gift) []string {
	out := make([]string, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, g.ID)
	}
	return out
}

func TestSyncRevealsOnlyValidGiftsInOrder(t *testing.T) {
	src := &scriptedSource{batches: [][]models.Gift{{
		gift("c", 3, 1), gift("a", 1, 2), gift("broken", 2, 3), gift("b", 1, 4),
	}}}
	s := newTestScheduler(src, stubChecker{invalid: map[string]bool{"broken": true}})

	require.NoError(t, s.Sync(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Revealed()))
	st := s.Status()
	assert.Equal(t, SyncSettled, st.State)
	assert.Equal(t, 3, st.Revealed)
	assert.NotNil(t, st.LastSync)
	assert.Empty(t, st.LastError)
}

func TestRefreshDropsGiftsRemovedUpstream(t *testing.T) {
	src := &scriptedSource{batches: [][]models.Gift{
		{gift("a", 1, 1), gift("b", 2, 2)},
		{gift("a", 1, 1)},
	}}
	s := newTestScheduler(src, stubChecker{})

	require.NoError(t, s.Sync(context.Background()))
	require.Len(t, s.Revealed(), 2)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, []string{"a"}, ids(s.Revealed()))
	_, ok := s.Gift("b")
	assert.False(t, ok)
}

func TestSyncFailureEntersErrorState(t *testing.T) {
	src := &scriptedSource{err: errors.New("all paths failed")}
	s := newTestScheduler(src, stubChecker{})

	err := s.Sync(context.Background())
	require.Error(t, err)

	st := s.Status()
	assert.Equal(t, SyncError, st.State)
	assert.Equal(t, "all paths failed", st.LastError)
	assert.Zero(t, st.Revealed)
	assert.Nil(t, st.LastSync)
}

func TestSyncSkippedWhileInFlight(t *testing.T) {
	src := &scriptedSource{
		batches: [][]models.Gift{{gift("a", 1, 1)}},
		block:   make(chan struct{}),
	}
	s := newTestScheduler(src, stubChecker{})

	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background()) }()

	require.Eventually(t, func() bool { return s.Status().InFlight }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Sync(context.Background()), ErrSyncInFlight)

	close(src.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, src.Calls())
}

func TestRefreshCancelsInFlightCycle(t *testing.T) {
	src := &scriptedSource{
		batches: [][]models.Gift{{gift("a", 1, 1)}},
		block:   make(chan struct{}),
	}
	s := newTestScheduler(src, stubChecker{})

	done := make(chan error, 1)
	go func() { done <- s.Sync(context.Background()) }()
	require.Eventually(t, func() bool { return s.Status().InFlight }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Refresh(context.Background()))
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrSyncSuperseded)
	assert.Equal(t, []string{"a"}, ids(s.Revealed()))
	assert.Equal(t, SyncSettled, s.Status().State)
}

func TestCycleStartingBehindWaitingRefreshIsSuperseded(t *testing.T) {
	src := &scriptedSource{batches: [][]models.Gift{{gift("a", 1, 1)}}}
	s := newTestScheduler(src, stubChecker{})

	// A Refresh that has cancelled nothing yet and still waits for the lock.
	s.cancelMu.Lock()
	s.pendingRefresh++
	s.cancelMu.Unlock()

	err := s.Sync(context.Background())
	assert.ErrorIs(t, err, ErrSyncSuperseded)
	assert.Equal(t, 0, src.Calls())

	s.cancelMu.Lock()
	s.pendingRefresh--
	s.cancelMu.Unlock()

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, src.Calls())
	assert.Equal(t, []string{"a"}, ids(s.Revealed()))
}

func TestValidationIsStaggered(t *testing.T) {
	batch := []models.Gift{gift("a", 1, 1), gift("b", 2, 2), gift("c", 3, 3), gift("d", 4, 4)}
	src := &scriptedSource{batches: [][]models.Gift{batch}}
	s := newTestScheduler(src, stubChecker{}, WithValidationStagger(300*time.Millisecond), WithValidationWorkers(2))

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	var mu sync.Mutex
	var waits []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}

	require.NoError(t, s.Sync(context.Background()))

	assert.Equal(t, []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, 900 * time.Millisecond}, waits)
	assert.Len(t, s.Revealed(), 4)
}

func TestListenersReceiveFetchedCatalog(t *testing.T) {
	batch := []models.Gift{gift("a", 1, 1), gift("broken", 2, 2)}
	src := &scriptedSource{batches: [][]models.Gift{batch}}

	var got []models.Gift
	s := newTestScheduler(src, stubChecker{invalid: map[string]bool{"broken": true}},
		WithCatalogListener(func(g []models.Gift) { got = g }))

	require.NoError(t, s.Sync(context.Background()))
	assert.Equal(t, []string{"a", "broken"}, ids(got))
}

func TestReconnectTriggersSync(t *testing.T) {
	src := &scriptedSource{batches: [][]models.Gift{{gift("a", 1, 1)}}}
	s := newTestScheduler(src, stubChecker{}, WithSyncInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, 5*time.Millisecond)

	s.SetOnline(false)
	assert.False(t, s.Status().Online)
	s.SetOnline(true)

	require.Eventually(t, func() bool { return src.Calls() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, s.Status().Online)
}

func TestStayingOnlineDoesNotTriggerSync(t *testing.T) {
	src := &scriptedSource{batches: [][]models.Gift{{gift("a", 1, 1)}}}
	s := newTestScheduler(src, stubChecker{}, WithSyncInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, 5*time.Millisecond)

	s.SetOnline(true)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, src.Calls())
}
