// Package fsm provides a small declarative state machine used by the
// notification, device and feedback records. A machine is a table of
// transitions keyed by event; each transition names the states it may fire
// from, an optional guard, and the target state. Entry callbacks run when a
// state is entered through a transition.
package fsm

import (
	"errors"
	"fmt"
)

// State is an enumerated record state.
type State string

// Event names a transition trigger.
type Event string

// Errors returned by Fire.
var (
	// ErrInvalidTransition is returned when the event is not defined for the
	// subject's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrGuardFailed is returned when a transition exists but its guard
	// evaluated false. The subject's state is left untouched.
	ErrGuardFailed = errors.New("transition guard failed")
)

// Stateful is implemented by records driven by a Machine.
type Stateful interface {
	CurrentState() State
	SetState(State)
}

// Guard decides whether a transition may fire for a subject.
type Guard[T Stateful] func(T) bool

// Callback runs when a subject enters a state.
type Callback[T Stateful] func(T)

type transition[T Stateful] struct {
	from  []State
	to    State
	guard Guard[T]
}

// Machine is an immutable transition table for records of type T.
// Build one per entity at package init and share it across records.
type Machine[T Stateful] struct {
	name    string
	events  map[Event][]transition[T]
	onEnter map[State]Callback[T]
}

// New creates an empty machine. The name appears in error messages.
func New[T Stateful](name string) *Machine[T] {
	return &Machine[T]{
		name:    name,
		events:  make(map[Event][]transition[T]),
		onEnter: make(map[State]Callback[T]),
	}
}

// Transition registers an event firing from any of the given states into to.
// guard may be nil for unconditional transitions.
func (m *Machine[T]) Transition(event Event, from []State, to State, guard Guard[T]) *Machine[T] {
	m.events[event] = append(m.events[event], transition[T]{from: from, to: to, guard: guard})
	return m
}

// OnEnter registers a callback invoked whenever state is entered via Fire.
func (m *Machine[T]) OnEnter(state State, cb Callback[T]) *Machine[T] {
	m.onEnter[state] = cb
	return m
}

// Can reports whether event is defined for the subject's current state,
// ignoring guards.
func (m *Machine[T]) Can(subject T, event Event) bool {
	current := subject.CurrentState()
	for _, t := range m.events[event] {
		for _, s := range t.from {
			if s == current {
				return true
			}
		}
	}
	return false
}

// Fire attempts to apply event to the subject. On success the subject's state
// is updated and the target state's entry callback runs. A guard failure
// leaves the subject untouched and returns ErrGuardFailed so callers can
// distinguish "not allowed yet" from "never allowed".
func (m *Machine[T]) Fire(subject T, event Event) error {
	current := subject.CurrentState()

	var matched *transition[T]
	for i := range m.events[event] {
		t := &m.events[event][i]
		for _, s := range t.from {
			if s == current {
				matched = t
				break
			}
		}
		if matched != nil {
			break
		}
	}

	if matched == nil {
		return fmt.Errorf("%s: event %q from state %q: %w", m.name, event, current, ErrInvalidTransition)
	}

	if matched.guard != nil && !matched.guard(subject) {
		return fmt.Errorf("%s: event %q from state %q: %w", m.name, event, current, ErrGuardFailed)
	}

	subject.SetState(matched.to)
	if cb, ok := m.onEnter[matched.to]; ok {
		cb(subject)
	}
	return nil
}
