package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

func TestCatalogCacheRepository_GetEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogCacheRepository(db)

	mock.ExpectQuery("FROM catalog_cache").WillReturnError(sql.ErrNoRows)

	entry, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCatalogCacheRepository_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogCacheRepository(db)

	rows := sqlmock.NewRows([]string{"gifts", "fetched_at_ms", "source"}).
		AddRow([]byte(`[{"id":"gift-a-1","title":"A","order":1}]`), int64(1700000000000), "Direct")
	mock.ExpectQuery("FROM catalog_cache").WillReturnRows(rows)

	entry, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(1700000000000), entry.FetchedAt)
	assert.Equal(t, "Direct", entry.Source)
	require.Len(t, entry.Gifts, 1)
	assert.Equal(t, "gift-a-1", entry.Gifts[0].ID)
}

func TestCatalogCacheRepository_GetCorrupt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewCatalogCacheRepository(db)

	rows := sqlmock.NewRows([]string{"gifts", "fetched_at_ms", "source"}).
		AddRow([]byte(`{not json`), int64(1), "Direct")
	mock.ExpectQuery("FROM catalog_cache").WillReturnRows(rows)

	entry, err := repo.Get(context.Background())
	assert.Nil(t, entry)
	assert.True(t, errors.Is(err, repository.ErrCorruptCache))
}

func TestCatalogCacheRepository_Put(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fixed := time.UnixMilli(1700000000123)
	repo := &catalogCacheRepository{db: db, now: func() time.Time { return fixed }}

	mock.ExpectExec("INSERT INTO catalog_cache").
		WithArgs(sqlmock.AnyArg(), int64(1700000000123), "CodeTabs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Put(context.Background(), []models.Gift{{ID: "gift-a-1", Title: "A"}}, "CodeTabs")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
