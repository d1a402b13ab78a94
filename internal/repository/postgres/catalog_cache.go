package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

type catalogCacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewCatalogCacheRepository creates a catalog cache backed by a single-row table
func NewCatalogCacheRepository(db *sql.DB) repository.CatalogCacheRepository {
	return &catalogCacheRepository{db: db, now: time.Now}
}

func (r *catalogCacheRepository) Get(ctx context.Context) (*models.CacheEntry, error) {
	query := `
		SELECT gifts, fetched_at_ms, source
		FROM catalog_cache
		WHERE id = 1`

	var (
		raw   []byte
		entry models.CacheEntry
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&raw, &entry.FetchedAt, &entry.Source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get catalog cache: %w", err)
	}

	if err := json.Unmarshal(raw, &entry.Gifts); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrCorruptCache, err)
	}

	return &entry, nil
}

func (r *catalogCacheRepository) Put(ctx context.Context, gifts []models.Gift, source string) error {
	query := `
		INSERT INTO catalog_cache (id, gifts, fetched_at_ms, source)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET gifts = EXCLUDED.gifts, fetched_at_ms = EXCLUDED.fetched_at_ms, source = EXCLUDED.source`

	if gifts == nil {
		gifts = []models.Gift{}
	}
	raw, err := json.Marshal(gifts)
	if err != nil {
		return fmt.Errorf("failed to encode catalog cache: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, raw, r.now().UnixMilli(), source); err != nil {
		return fmt.Errorf("failed to put catalog cache: %w", err)
	}

	return nil
}
