// Package feedback polls the push provider for device tokens the platform
// reported inactive and deactivates the matching devices. Each poll is a
// persisted record moving through pending, active and processed, so a stuck
// query is visible and can be re-driven.
package feedback

import (
	"errors"
	"time"

	"github.com/pushdeck/pushdeck/internal/fsm"
)

// Errors.
var (
	ErrFeedbackNotFound = errors.New("feedback record not found")

	// ErrNotPersisted is returned when Run is called on an unsaved record.
	ErrNotPersisted = errors.New("feedback record must be saved before running")
)

// Feedback states.
const (
	StatePending   fsm.State = "pending"
	StateActive    fsm.State = "active"
	StateProcessed fsm.State = "processed"
)

// Feedback events.
const (
	EventPend     fsm.Event = "pend"
	EventActivate fsm.Event = "activate"
	EventProcess  fsm.Event = "process"
)

// Feedback is one poll of the provider's feedback endpoint.
type Feedback struct {
	ID    int64
	State fsm.State

	// Raw provider reply.
	Code    int
	Message string
	Body    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentState implements fsm.Stateful.
func (f *Feedback) CurrentState() fsm.State { return f.State }

// SetState implements fsm.Stateful.
func (f *Feedback) SetState(s fsm.State) { f.State = s }

// machine allows explicit re-entry: a processed or stuck-active record can be
// pended and rerun.
var machine = fsm.New[*Feedback]("feedback").
	Transition(EventPend, []fsm.State{StateActive, StateProcessed}, StatePending, nil).
	Transition(EventActivate, []fsm.State{StatePending, StateProcessed}, StateActive, nil).
	Transition(EventProcess, []fsm.State{StateActive}, StateProcessed, nil)

// Pend resets the record so it can be rerun.
func (f *Feedback) Pend() error { return machine.Fire(f, EventPend) }

// Activate marks the record as querying the provider.
func (f *Feedback) Activate() error { return machine.Fire(f, EventActivate) }

// Process marks the record's response as fully applied.
func (f *Feedback) Process() error { return machine.Fire(f, EventProcess) }
