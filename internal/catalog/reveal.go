package catalog

import (
	"sync"

	"github.com/Kerhoff/giftlist/internal/models"
)

// RevealSet holds the gifts revealed to visitors for the current sync
// generation. Adds are idempotent per id, and adds tagged with a superseded
// generation are dropped.
type RevealSet struct {
	mu         sync.RWMutex
	generation uint64
	byID       map[string]models.Gift
}

// NewRevealSet creates an empty set at generation 0.
func NewRevealSet() *RevealSet {
	return &RevealSet{byID: make(map[string]models.Gift)}
}

// Reset clears the set and starts a new generation, which is returned.
func (s *RevealSet) Reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.byID = make(map[string]models.Gift)
	return s.generation
}

// Generation returns the current generation.
func (s *RevealSet) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Add reveals gift if generation is current and the id is not yet present.
// It reports whether the set changed.
func (s *RevealSet) Add(generation uint64, gift models.Gift) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	if _, ok := s.byID[gift.ID]; ok {
		return false
	}
	s.byID[gift.ID] = gift
	return true
}

// Get returns the revealed gift with the given id.
func (s *RevealSet) Get(id string) (models.Gift, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.byID[id]
	return g, ok
}

// Len returns the number of revealed gifts.
func (s *RevealSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// List returns a copy of the revealed gifts sorted by Order, ties in row order.
func (s *RevealSet) List() []models.Gift {
	s.mu.RLock()
	gifts := make([]models.Gift, 0, len(s.byID))
	for _, g := range s.byID {
		gifts = append(gifts, g)
	}
	s.mu.RUnlock()

	SortGifts(gifts)
	return gifts
}
