// Package idc implements the inter-DSP-core command primitive described in
// one mechanism: a single call_remote(core, closure)-shaped abstraction
// that callers use without knowing whether the target component is local or
// on another core. A breaker guards each target core so a wedged remote
// trips to a fast no_resource instead of hanging every caller on the IDC
// timeout.
package idc

import (
	"sync"
	"time"
)

// State is the breaker's current disposition toward a remote core.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker.
type Settings struct {
	// MaxRequests is the number of probe requests allowed while half-open.
	MaxRequests uint32
	// Interval is how often the closed-state counters reset.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// ReadyToTrip decides, given the running counts, whether to open.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is an optional observer hook.
	OnStateChange func(core string, from, to State)
}

// Counts tracks request outcomes within the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker is a per-remote-core circuit breaker around IDC sends.
type Breaker struct {
	core     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// New creates a breaker for a named remote core. Defaults are tuned for IDC:
// a handful of consecutive timeouts trips the breaker, since every tripped
// send has already paid the full IDC timeout cost.
func New(core string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 30 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 3
		}
	}
	return &Breaker{
		core:     core,
		settings: settings,
		state:    StateClosed,
		expiry:   time.Now().Add(settings.Interval),
	}
}

// ErrOpen is returned when the breaker refuses a send because the remote
// core is presumed wedged.
var ErrOpen = errOpen{}

type errOpen struct{}

func (errOpen) Error() string { return "idc: remote core presumed wedged, circuit open" }

// ErrTooManyProbes is returned when a half-open breaker is already at its
// probe concurrency limit.
var ErrTooManyProbes = errTooManyProbes{}

type errTooManyProbes struct{}

func (errTooManyProbes) Error() string { return "idc: too many probe requests in half-open state" }

// Core returns the remote core name this breaker guards.
func (b *Breaker) Core() string { return b.core }

// State reports the current breaker state, lazily expiring timers.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.currentState(time.Now())
	return state
}

// Counts returns a snapshot of the current generation's counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs fn if the breaker currently admits requests to this core.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	generation, err := b.before()
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			b.after(generation, false)
			panic(r)
		}
	}()

	result, err := fn()
	b.after(generation, err == nil)
	return result, err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.currentState(time.Now())
	if state == StateOpen {
		return generation, ErrOpen
	}
	if state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests {
		return generation, ErrTooManyProbes
	}
	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) after(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, generation := b.currentState(time.Now())
	if generation != before {
		return
	}
	if success {
		b.onSuccess(state, time.Now())
	} else {
		b.onFailure(state, time.Now())
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.setState(StateClosed, now)
		}
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.settings.ReadyToTrip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts = Counts{}
			b.expiry = now.Add(b.settings.Interval)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, uint64(b.expiry.UnixNano())
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.counts = Counts{}

	switch state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.core, prev, state)
	}
}
