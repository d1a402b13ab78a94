package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kerhoff/giftlist/internal/models"
)

func TestRevealSet_IdempotentAdd(t *testing.T) {
	s := NewRevealSet()
	gen := s.Reset()
	g := models.Gift{ID: "gift-a-1", Title: "A", Order: 1}

	assert.True(t, s.Add(gen, g))
	once := s.List()
	assert.False(t, s.Add(gen, g))
	assert.Equal(t, once, s.List())
	assert.Equal(t, 1, s.Len())
}

func TestRevealSet_OrderingAndTies(t *testing.T) {
	s := NewRevealSet()
	gen := s.Reset()
	// Arrive in completion order, not catalog order.
	s.Add(gen, models.Gift{ID: "c", Order: 2, Position: 5})
	s.Add(gen, models.Gift{ID: "d", Order: models.DefaultOrder, Position: 1})
	s.Add(gen, models.Gift{ID: "a", Order: 1, Position: 9})
	s.Add(gen, models.Gift{ID: "b", Order: 2, Position: 3})

	ids := []string{}
	for _, g := range s.List() {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestRevealSet_ResetDropsOldGeneration(t *testing.T) {
	s := NewRevealSet()
	old := s.Reset()
	s.Add(old, models.Gift{ID: "removed-upstream"})

	fresh := s.Reset()
	assert.Equal(t, 0, s.Len(), "refresh must clear the previous reveal")

	// A late completion from the superseded cycle cannot resurrect data.
	assert.False(t, s.Add(old, models.Gift{ID: "removed-upstream"}))
	assert.True(t, s.Add(fresh, models.Gift{ID: "kept"}))

	_, ok := s.Get("removed-upstream")
	assert.False(t, ok)
	_, ok = s.Get("kept")
	assert.True(t, ok)
}
