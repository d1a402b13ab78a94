package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/reservation"
)

// Service is the central business logic layer that ties the catalog sync
// engine to the reservation manager.
type Service struct {
	logger       *logrus.Logger
	Catalog      *SyncScheduler
	Reservations *reservation.Manager
}

// New creates a new Service. Every catalog fetch is also applied to the
// reservation view.
func New(logger *logrus.Logger, catalogSync *SyncScheduler, reservations *reservation.Manager) *Service {
	catalogSync.listeners = append(catalogSync.listeners, reservations.ApplyCatalog)
	return &Service{
		logger:       logger,
		Catalog:      catalogSync,
		Reservations: reservations,
	}
}

// Gifts returns the revealed catalog with reservation status merged in.
func (s *Service) Gifts() []models.Gift {
	gifts := s.Catalog.Revealed()
	for i := range gifts {
		view := s.Reservations.Lookup(gifts[i])
		gifts[i].Reserved = view.Reserved
		gifts[i].ReservedBy = view.ReservedBy
	}
	return gifts
}

// Gift returns one revealed gift with reservation status merged in.
func (s *Service) Gift(id string) (models.Gift, bool) {
	gift, ok := s.Catalog.Gift(id)
	if !ok {
		return models.Gift{}, false
	}
	view := s.Reservations.Lookup(gift)
	gift.Reserved = view.Reserved
	gift.ReservedBy = view.ReservedBy
	return gift, true
}

// Available returns the revealed gifts nobody has reserved yet.
func (s *Service) Available() []models.Gift {
	var out []models.Gift
	for _, g := range s.Gifts() {
		if !g.Reserved {
			out = append(out, g)
		}
	}
	return out
}

// Refresh re-fetches the catalog and re-reads the shared reservations.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.Catalog.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh catalog: %w", err)
	}
	if _, err := s.Reservations.SyncRemote(ctx); err != nil {
		s.logger.WithError(err).Warn("Catalog refreshed but reservations could not be read")
	}
	return nil
}

// Start replays the local claim log and launches the background loops. It
// returns immediately.
func (s *Service) Start(ctx context.Context, watcher *ConnectivityWatcher) {
	if n, err := s.Reservations.LoadClaims(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to replay reservation claims")
	} else {
		s.logger.WithField("claims", n).Info("Reservation claims loaded")
	}

	go s.Catalog.Run(ctx)
	if watcher != nil {
		go watcher.Run(ctx)
	}
	go func() {
		if _, err := s.Reservations.SyncRemote(ctx); err != nil {
			s.logger.WithError(err).Warn("Initial reservation sync failed")
		}
	}()
}
