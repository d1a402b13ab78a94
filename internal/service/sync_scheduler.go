package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/Kerhoff/giftlist/internal/catalog"
	"github.com/Kerhoff/giftlist/internal/metrics"
	"github.com/Kerhoff/giftlist/internal/models"
)

// SyncState is the state of the catalog sync state machine.
type SyncState string

const (
	SyncIdle       SyncState = "idle"
	SyncFetching   SyncState = "fetching"
	SyncValidating SyncState = "validating"
	SyncSettled    SyncState = "settled"
	SyncError      SyncState = "error"
)

// Defaults for the sync scheduler.
const (
	DefaultSyncInterval      = 15 * time.Minute
	DefaultValidationStagger = 300 * time.Millisecond
	DefaultValidationWorkers = 4
)

// ErrSyncInFlight is returned when a triggered sync is skipped because a
// cycle is already running.
var ErrSyncInFlight = errors.New("catalog sync already in flight")

// ErrSyncSuperseded is returned by a cycle cancelled by a manual refresh.
var ErrSyncSuperseded = errors.New("catalog sync superseded by a newer refresh")

// CatalogSource fetches the raw catalog.
type CatalogSource interface {
	Fetch(ctx context.Context) ([]models.Gift, error)
}

// ImageChecker decides whether a gift may be revealed.
type ImageChecker interface {
	Validate(ctx context.Context, gift models.Gift) catalog.ValidationResult
}

// CatalogListener is invoked with every freshly fetched catalog, before
// image validation.
type CatalogListener func(gifts []models.Gift)

// SyncStatus is a point-in-time view of the scheduler.
type SyncStatus struct {
	State      SyncState  `json:"state"`
	Online     bool       `json:"online"`
	InFlight   bool       `json:"inFlight"`
	LastSync   *time.Time `json:"lastSync,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	Generation uint64     `json:"generation"`
	Revealed   int        `json:"revealed"`
}

// SyncScheduler drives fetch -> validate -> reveal on startup, on reconnect,
// on a fixed interval and on manual refresh.
type SyncScheduler struct {
	source    CatalogSource
	validator ImageChecker
	reveal    *catalog.RevealSet
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	listeners []CatalogListener

	interval time.Duration
	stagger  time.Duration
	workers  int

	cycleMu     sync.Mutex
	cancelMu    sync.Mutex
	cancelCycle context.CancelFunc
	// pendingRefresh counts Refresh calls still waiting for cycleMu.
	pendingRefresh int

	inFlight *atomic.Bool
	online   *atomic.Bool
	trigger  chan struct{}

	statusMu  sync.RWMutex
	state     SyncState
	lastSync  time.Time
	lastError string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// SchedulerOption customises a SyncScheduler.
type SchedulerOption func(*SyncScheduler)

func WithSyncInterval(d time.Duration) SchedulerOption {
	return func(s *SyncScheduler) { s.interval = d }
}

func WithValidationStagger(d time.Duration) SchedulerOption {
	return func(s *SyncScheduler) { s.stagger = d }
}

func WithValidationWorkers(n int) SchedulerOption {
	return func(s *SyncScheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *SyncScheduler) { s.metrics = m }
}

func WithCatalogListener(l CatalogListener) SchedulerOption {
	return func(s *SyncScheduler) { s.listeners = append(s.listeners, l) }
}

// NewSyncScheduler creates a scheduler that starts idle and online.
func NewSyncScheduler(source CatalogSource, validator ImageChecker, logger *logrus.Logger, opts ...SchedulerOption) *SyncScheduler {
	s := &SyncScheduler{
		source:    source,
		validator: validator,
		reveal:    catalog.NewRevealSet(),
		logger:    logger,
		interval:  DefaultSyncInterval,
		stagger:   DefaultValidationStagger,
		workers:   DefaultValidationWorkers,
		inFlight:  atomic.NewBool(false),
		online:    atomic.NewBool(true),
		trigger:   make(chan struct{}, 1),
		state:     SyncIdle,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs the initial sync and then re-syncs on every interval tick and
// on every offline->online transition. Ticks are skipped while offline or
// while a cycle is in flight. It blocks until ctx is cancelled, so it should
// be launched in a separate goroutine.
func (s *SyncScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval.String()).Info("Catalog sync scheduler started")
	s.syncAndLog(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Catalog sync scheduler stopped")
			return
		case <-ticker.C:
			if !s.online.Load() {
				s.logger.Debug("Offline, skipping scheduled sync")
				continue
			}
			if s.inFlight.Load() {
				s.logger.Debug("Sync in flight, skipping scheduled sync")
				continue
			}
			s.syncAndLog(ctx, "interval")
		case <-s.trigger:
			s.syncAndLog(ctx, "reconnect")
		}
	}
}

func (s *SyncScheduler) syncAndLog(ctx context.Context, trigger string) {
	err := s.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInFlight):
		s.logger.WithField("trigger", trigger).Debug("Sync skipped, cycle in flight")
	case errors.Is(err, ErrSyncSuperseded):
		s.logger.WithField("trigger", trigger).Debug("Sync superseded by manual refresh")
	default:
		s.logger.WithError(err).WithField("trigger", trigger).Error("Catalog sync failed")
	}
}

// SetOnline records connectivity. An offline->online transition triggers a
// sync; going offline never cancels in-flight work.
func (s *SyncScheduler) SetOnline(online bool) {
	if !online {
		if s.online.CAS(true, false) {
			s.logger.Warn("Connectivity lost, suspending sync triggers")
		}
		return
	}
	if s.online.CAS(false, true) {
		s.logger.Info("Connectivity restored, triggering sync")
		select {
		case s.trigger <- struct{}{}:
		default:
		}
	}
}

// Sync runs one cycle unless one is already in flight.
func (s *SyncScheduler) Sync(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		return ErrSyncInFlight
	}
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx, false)
}

// Refresh is a manual refresh: it cancels any in-flight cycle and runs a new
// one that fully supersedes the previously revealed set.
func (s *SyncScheduler) Refresh(ctx context.Context) error {
	s.cancelMu.Lock()
	s.pendingRefresh++
	if s.cancelCycle != nil {
		s.cancelCycle()
	}
	s.cancelMu.Unlock()

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runCycle(ctx, true)
}

// runCycle must be called with cycleMu held. A cycle that starts while a
// Refresh is still waiting for the lock is superseded before it fetches.
func (s *SyncScheduler) runCycle(parent context.Context, manual bool) error {
	ctx, cancel := context.WithCancel(parent)
	s.cancelMu.Lock()
	if manual {
		s.pendingRefresh--
	}
	superseded := s.pendingRefresh > 0
	s.cancelCycle = cancel
	s.cancelMu.Unlock()
	defer func() {
		cancel()
		s.cancelMu.Lock()
		s.cancelCycle = nil
		s.cancelMu.Unlock()
	}()

	if superseded {
		s.metrics.SyncCycle("cancelled")
		return fmt.Errorf("%w: %w", ErrSyncSuperseded, context.Canceled)
	}

	s.inFlight.Store(true)
	defer s.inFlight.Store(false)

	generation := s.reveal.Reset()
	s.metrics.SetRevealed(0)
	s.setState(SyncFetching, "")

	log := s.logger.WithField("generation", generation)
	gifts, err := s.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			s.setState(SyncIdle, "")
			s.metrics.SyncCycle("cancelled")
			return cancelled(parent, ctx.Err())
		}
		s.setState(SyncError, err.Error())
		s.metrics.SyncCycle(string(SyncError))
		return err
	}

	for _, l := range s.listeners {
		l(gifts)
	}

	s.setState(SyncValidating, "")
	log.WithField("gifts", len(gifts)).Info("Validating catalog images")

	if err := s.validateAll(ctx, generation, gifts); err != nil {
		s.setState(SyncIdle, "")
		s.metrics.SyncCycle("cancelled")
		return cancelled(parent, err)
	}

	s.statusMu.Lock()
	s.lastSync = s.now()
	s.statusMu.Unlock()
	s.setState(SyncSettled, "")
	s.metrics.SyncCycle(string(SyncSettled))

	log.WithFields(logrus.Fields{
		"fetched":  len(gifts),
		"revealed": s.reveal.Len(),
	}).Info("Catalog sync settled")
	return nil
}

// cancelled tells a superseded cycle apart from one whose caller gave up.
func cancelled(parent context.Context, err error) error {
	if parent.Err() == nil && errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrSyncSuperseded, err)
	}
	return err
}

// validateAll probes every gift on a bounded worker pool. Task i starts no
// earlier than i*stagger after the first one. Valid gifts are revealed in
// completion order.
func (s *SyncScheduler) validateAll(ctx context.Context, generation uint64, gifts []models.Gift) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	start := s.now()
	var scheduleErr error
	for i, gift := range gifts {
		due := start.Add(time.Duration(i) * s.stagger)
		if wait := due.Sub(s.now()); wait > 0 {
			if err := s.sleep(gctx, wait); err != nil {
				scheduleErr = err
				break
			}
		}

		gift := gift
		g.Go(func() error {
			res := s.validator.Validate(gctx, gift)
			if res.IsValid && s.reveal.Add(generation, gift) {
				s.metrics.SetRevealed(s.reveal.Len())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if scheduleErr != nil {
		return scheduleErr
	}
	return ctx.Err()
}

func (s *SyncScheduler) setState(state SyncState, lastError string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.state = state
	if state == SyncError {
		s.lastError = lastError
	} else if state == SyncSettled {
		s.lastError = ""
	}
}

// Revealed returns the revealed catalog sorted by order.
func (s *SyncScheduler) Revealed() []models.Gift {
	return s.reveal.List()
}

// Gift returns a revealed gift by id.
func (s *SyncScheduler) Gift(id string) (models.Gift, bool) {
	return s.reveal.Get(id)
}

// Status returns a snapshot of the scheduler state.
func (s *SyncScheduler) Status() SyncStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	st := SyncStatus{
		State:      s.state,
		Online:     s.online.Load(),
		InFlight:   s.inFlight.Load(),
		LastError:  s.lastError,
		Generation: s.reveal.Generation(),
		Revealed:   s.reveal.Len(),
	}
	if !s.lastSync.IsZero() {
		t := s.lastSync
		st.LastSync = &t
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
