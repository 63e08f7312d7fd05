// Package component defines the fixed processing-component operation
// vtable and state lattice: every component — volume, mixer, SRC, a DAI
// shim, anything — implements the same small interface, and pipeline
// code dispatches through that interface rather than ever switching on
// a component's concrete kind.
package component

import (
	"errors"
	"fmt"
)

// State is a point in the component lifecycle lattice:
// init -> ready -> prepared -> active <-> paused, with prepared, active
// and paused each able to return to ready.
type State int

const (
	StateInit State = iota
	StateReady
	StatePrepared
	StateActive
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateReady:
		return "ready"
	case StatePrepared:
		return "prepared"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// allowedTransitions enumerates every legal edge in the lattice. A
// transition not listed here is a bad_state error, never a panic.
var allowedTransitions = map[State]map[State]bool{
	StateInit:     {StateReady: true},
	StateReady:    {StatePrepared: true},
	StatePrepared: {StateActive: true, StateReady: true},
	StateActive:   {StatePaused: true, StateReady: true},
	StatePaused:   {StateActive: true, StateReady: true},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to State) bool {
	return allowedTransitions[from][to]
}

// Lattice is an embeddable state holder components use to enforce the
// lattice without duplicating the transition table in every component.
type Lattice struct {
	state State
}

// NewLattice returns a Lattice starting in StateInit.
func NewLattice() *Lattice { return &Lattice{state: StateInit} }

// State returns the current state.
func (l *Lattice) State() State { return l.state }

// Transition moves to `to` if the edge is legal, otherwise returns a
// descriptive error without changing state. A transition to the current
// state is a no-op: reset on an already-ready component and prepare on
// an already-prepared one are both idempotent.
func (l *Lattice) Transition(to State) error {
	if to == l.state {
		return nil
	}
	if !CanTransition(l.state, to) {
		return fmt.Errorf("%w: cannot go from %s to %s", errBadTransition, l.state, to)
	}
	l.state = to
	return nil
}

// errBadTransition is wrapped by dsperr at the call sites that know the
// reply-status mapping (component.New callers live above dsperr in the
// import graph, so the sentinel lives here and call sites translate it).
var errBadTransition = fmt.Errorf("component: illegal state transition")

// IsBadTransition reports whether err originated from a rejected Transition.
func IsBadTransition(err error) bool {
	return errors.Is(err, errBadTransition)
}
