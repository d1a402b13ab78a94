package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

func TestCatalogCache_PutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	repo := NewCatalogCacheRepository(path)

	entry, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry, "missing file is an absent entry")

	gifts := []models.Gift{{ID: "gift-a-1", Title: "A", Order: 1}}
	require.NoError(t, repo.Put(ctx, gifts, "Direct"))

	entry, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, gifts, entry.Gifts)
	assert.Equal(t, "Direct", entry.Source)
	assert.True(t, entry.IsFresh(time.Now(), time.Minute))

	// Survives a new repository over the same path.
	again, err := NewCatalogCacheRepository(path).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, entry, again)
}

func TestCatalogCache_Supersede(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogCacheRepository(filepath.Join(t.TempDir(), "cache.json"))

	require.NoError(t, repo.Put(ctx, []models.Gift{{ID: "old"}}, "Direct"))
	require.NoError(t, repo.Put(ctx, []models.Gift{{ID: "new"}}, "CodeTabs"))

	entry, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Len(t, entry.Gifts, 1)
	assert.Equal(t, "new", entry.Gifts[0].ID)
	assert.Equal(t, "CodeTabs", entry.Source)
}

func TestCatalogCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o644))

	entry, err := NewCatalogCacheRepository(path).Get(context.Background())
	assert.Nil(t, entry)
	assert.True(t, errors.Is(err, repository.ErrCorruptCache))
}

func TestClaimLog_AppendList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "claims.jsonl")
	repo := NewClaimRepository(path)

	claims, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, claims)

	require.NoError(t, repo.Append(ctx, &models.ReservationClaim{ID: "1", GiftID: "gift-a-1", GuestName: "Ana", Synced: true}))
	require.NoError(t, repo.Append(ctx, &models.ReservationClaim{ID: "2", GiftID: "gift-b-2", GuestName: "Bia"}))

	// A torn trailing line is ignored.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"3","gift`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	claims, err = NewClaimRepository(path).List(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "gift-a-1", claims[0].GiftID)
	assert.True(t, claims[0].Synced)
	assert.False(t, claims[0].CreatedAt.IsZero())
	assert.Equal(t, "Bia", claims[1].GuestName)
}
