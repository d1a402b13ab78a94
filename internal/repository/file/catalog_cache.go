// Package file stores the catalog cache and claim log on local disk, for
// deployments without a database.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

type catalogCacheRepository struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCatalogCacheRepository creates a catalog cache kept in a single JSON file.
func NewCatalogCacheRepository(path string) repository.CatalogCacheRepository {
	return &catalogCacheRepository{path: path, now: time.Now}
}

func (r *catalogCacheRepository) Get(_ context.Context) (*models.CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog cache: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrCorruptCache, err)
	}
	return &entry, nil
}

func (r *catalogCacheRepository) Put(_ context.Context, gifts []models.Gift, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gifts == nil {
		gifts = []models.Gift{}
	}
	data, err := json.Marshal(models.CacheEntry{
		Gifts:     gifts,
		FetchedAt: r.now().UnixMilli(),
		Source:    source,
	})
	if err != nil {
		return fmt.Errorf("marshal catalog cache: %w", err)
	}
	return writeAtomic(r.path, data)
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".giftlist-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
