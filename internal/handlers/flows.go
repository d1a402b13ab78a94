package handlers

import (
	"sync"

	"github.com/Kerhoff/giftlist/internal/reservation"
)

type flowKey struct {
	chatID int64
	userID int64
}

// FlowStore keeps one reservation flow per user per chat.
type FlowStore struct {
	mu    sync.Mutex
	flows map[flowKey]reservation.Flow
}

func NewFlowStore() *FlowStore {
	return &FlowStore{flows: make(map[flowKey]reservation.Flow)}
}

// Get returns the current flow; a missing flow is closed.
func (s *FlowStore) Get(chatID, userID int64) reservation.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows[flowKey{chatID, userID}]
}

// Apply reduces ev onto the stored flow and keeps the result. On error the
// stored flow is unchanged.
func (s *FlowStore) Apply(chatID, userID int64, ev reservation.Event) (reservation.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := flowKey{chatID, userID}
	next, err := reservation.Reduce(s.flows[key], ev)
	if err != nil {
		return next, err
	}
	s.put(key, next)
	return next, nil
}

// Set stores f.
func (s *FlowStore) Set(chatID, userID int64, f reservation.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(flowKey{chatID, userID}, f)
}

func (s *FlowStore) put(key flowKey, f reservation.Flow) {
	if f.State == "" || f.State == reservation.StateClosed {
		delete(s.flows, key)
		return
	}
	s.flows[key] = f
}
