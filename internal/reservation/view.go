package reservation

import (
	"sync"

	"github.com/Kerhoff/giftlist/internal/models"
)

// View merges the reservation flags reported by the shared list with the
// claims confirmed on this instance.
type View struct {
	mu     sync.RWMutex
	remote map[string]models.RemoteReservation
	local  map[string]models.ReservationClaim
}

func NewView() *View {
	return &View{
		remote: make(map[string]models.RemoteReservation),
		local:  make(map[string]models.ReservationClaim),
	}
}

// ApplyRemote replaces the remote snapshot.
func (v *View) ApplyRemote(remote map[string]models.RemoteReservation) {
	next := make(map[string]models.RemoteReservation, len(remote))
	for id, r := range remote {
		next[id] = r
	}

	v.mu.Lock()
	v.remote = next
	v.mu.Unlock()
}

// UpdateRemote overwrites the remote entries for the given ids, reserved or
// not. Entries for other ids are left alone.
func (v *View) UpdateRemote(remote map[string]models.RemoteReservation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, r := range remote {
		v.remote[id] = r
	}
}

// Confirm records a local claim. The first claim for a gift wins.
func (v *View) Confirm(claim models.ReservationClaim) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.local[claim.GiftID]; ok {
		return
	}
	v.local[claim.GiftID] = claim
}

// Get returns the merged view for a gift id.
func (v *View) Get(id string) models.ReservationView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.get(id)
}

func (v *View) get(id string) models.ReservationView {
	remote, hasRemote := v.remote[id]
	claim, hasLocal := v.local[id]

	view := models.ReservationView{
		Reserved: (hasRemote && remote.Reserved) || hasLocal,
	}
	switch {
	case hasRemote && remote.ReservedBy != "":
		view.ReservedBy = remote.ReservedBy
	case hasLocal:
		view.ReservedBy = claim.GuestName
	}
	return view
}

// Reserved lists every reserved gift id with its merged view.
func (v *View) Reserved() map[string]models.ReservationView {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]models.ReservationView)
	for id := range v.remote {
		if view := v.get(id); view.Reserved {
			out[id] = view
		}
	}
	for id := range v.local {
		out[id] = v.get(id)
	}
	return out
}
