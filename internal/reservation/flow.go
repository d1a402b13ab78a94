// Package reservation holds the reservation flow state machine, the merged
// reservation view and the manager that commits claims to the shared list.
package reservation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kerhoff/giftlist/internal/models"
)

// State of a single reservation flow.
type State string

const (
	StateClosed         State = "closed"
	StateCollectingInfo State = "collecting_info"
	StateConfirming     State = "confirming"
	StateSubmitting     State = "submitting"
)

var (
	ErrGuestNameRequired = errors.New("guest name is required")
	ErrInvalidTransition = errors.New("invalid reservation flow transition")
)

// Flow is one visitor's walk through the reservation dialog. The zero value
// is a closed flow.
type Flow struct {
	State     State       `json:"state"`
	Gift      models.Gift `json:"gift"`
	GuestName string      `json:"guestName,omitempty"`
	Message   string      `json:"message,omitempty"`
	LastError string      `json:"lastError,omitempty"`
}

// Event drives a Flow.
type Event interface {
	event()
}

type (
	// Open starts a flow for the given gift.
	Open struct{ Gift models.Gift }
	// SubmitInfo supplies the guest name and optional message.
	SubmitInfo struct{ GuestName, Message string }
	Back       struct{}
	Confirm    struct{}
	Succeeded  struct{}
	Failed     struct{ Err error }
	Cancel     struct{}
)

func (Open) event()       {}
func (SubmitInfo) event() {}
func (Back) event()       {}
func (Confirm) event()    {}
func (Succeeded) event()  {}
func (Failed) event()     {}
func (Cancel) event()     {}

// Reduce applies ev to f. On error the returned flow equals f.
func Reduce(f Flow, ev Event) (Flow, error) {
	state := f.State
	if state == "" {
		state = StateClosed
	}

	switch e := ev.(type) {
	case Open:
		if state != StateClosed {
			return f, invalid(state, ev)
		}
		return Flow{State: StateCollectingInfo, Gift: e.Gift}, nil

	case SubmitInfo:
		if state != StateCollectingInfo {
			return f, invalid(state, ev)
		}
		name := strings.TrimSpace(e.GuestName)
		if name == "" {
			return f, ErrGuestNameRequired
		}
		next := f
		next.State = StateConfirming
		next.GuestName = name
		next.Message = strings.TrimSpace(e.Message)
		next.LastError = ""
		return next, nil

	case Back:
		if state != StateConfirming {
			return f, invalid(state, ev)
		}
		next := f
		next.State = StateCollectingInfo
		return next, nil

	case Confirm:
		if state != StateConfirming {
			return f, invalid(state, ev)
		}
		next := f
		next.State = StateSubmitting
		next.LastError = ""
		return next, nil

	case Succeeded:
		if state != StateSubmitting {
			return f, invalid(state, ev)
		}
		return Flow{State: StateClosed}, nil

	case Failed:
		if state != StateSubmitting {
			return f, invalid(state, ev)
		}
		next := f
		next.State = StateConfirming
		if e.Err != nil {
			next.LastError = e.Err.Error()
		} else {
			next.LastError = "reservation failed"
		}
		return next, nil

	case Cancel:
		if state == StateSubmitting {
			return f, invalid(state, ev)
		}
		return Flow{State: StateClosed}, nil
	}

	return f, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
}

func invalid(state State, ev Event) error {
	return fmt.Errorf("%w: %T in state %s", ErrInvalidTransition, ev, state)
}
