package file

import (
	"bufio"
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

type claimRepository struct {
	mu   sync.Mutex
	path string
}

// NewClaimRepository creates a claim log stored as JSON lines. Each Append
// writes one line; existing lines are never rewritten.
func NewClaimRepository(path string) repository.ClaimRepository {
	return &claimRepository{path: path}
}

func (r *claimRepository) Append(_ context.Context, claim *models.ReservationClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}
	line, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create claim log dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open claim log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append claim: %w", err)
	}
	return f.Close()
}

// List returns all claims in append order. Lines that fail to decode are
// skipped so a torn final write does not hide earlier claims.
func (r *claimRepository) List(_ context.Context) ([]*models.ReservationClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open claim log: %w", err)
	}
	defer f.Close()

	var claims []*models.ReservationClaim
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		c := &models.ReservationClaim{}
		if err := json.Unmarshal(scanner.Bytes(), c); err != nil {
			continue
		}
		claims = append(claims, c)
	}
	if err := scanner.Err(); err != nil {
		return claims, fmt.Errorf("read claim log: %w", err)
	}
	return claims, nil
}
