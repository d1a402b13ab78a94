package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Kerhoff/giftlist/internal/models"
	"github.com/Kerhoff/giftlist/internal/repository"
)

type claimRepository struct {
	db *sql.DB
}

// NewClaimRepository creates a new reservation claim repository
func NewClaimRepository(db *sql.DB) repository.ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Append(ctx context.Context, claim *models.ReservationClaim) error {
	query := `
		INSERT INTO reservation_claims (id, gift_id, gift_title, guest_name, message, synced, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		claim.ID,
		claim.GiftID,
		claim.GiftTitle,
		claim.GuestName,
		claim.Message,
		claim.Synced,
		claim.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append reservation claim: %w", err)
	}

	return nil
}

func (r *claimRepository) List(ctx context.Context) ([]*models.ReservationClaim, error) {
	query := `
		SELECT id, gift_id, gift_title, guest_name, message, synced, created_at
		FROM reservation_claims
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservation claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.ReservationClaim
	for rows.Next() {
		c := &models.ReservationClaim{}
		if err := rows.Scan(
			&c.ID,
			&c.GiftID,
			&c.GiftTitle,
			&c.GuestName,
			&c.Message,
			&c.Synced,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reservation claim: %w", err)
		}
		claims = append(claims, c)
	}

	return claims, rows.Err()
}
