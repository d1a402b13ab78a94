package repository

import (
	"context"
	"errors"

	"github.com/Kerhoff/giftlist/internal/models"
)

// CatalogCacheRepository defines the interface for the durable catalog cache
type CatalogCacheRepository interface {
	// Get returns the last stored entry, or nil when nothing usable is stored.
	Get(ctx context.Context) (*models.CacheEntry, error)
	// Put replaces the stored entry with gifts fetched now from source.
	Put(ctx context.Context, gifts []models.Gift, source string) error
}

// ClaimRepository defines the interface for the append-only reservation claim log
type ClaimRepository interface {
	Append(ctx context.Context, claim *models.ReservationClaim) error
	List(ctx context.Context) ([]*models.ReservationClaim, error)
}

// ErrCorruptCache is returned by Get when the stored entry cannot be decoded.
// Callers treat it the same as an absent entry.
var ErrCorruptCache = errors.New("catalog cache is corrupt")
