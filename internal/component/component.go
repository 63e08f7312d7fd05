package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// TriggerCmd is one of the playback/capture lifecycle commands a pipeline
// walk delivers to every component on a trigger propagation: start drives prepared->active, stop and xrun return the
// component to ready, pause/release drive active<->paused.
type TriggerCmd int

const (
	TriggerStart TriggerCmd = iota
	TriggerStop
	TriggerPause
	TriggerRelease
	TriggerReset
	TriggerXrun
)

func (c TriggerCmd) String() string {
	switch c {
	case TriggerStart:
		return "start"
	case TriggerStop:
		return "stop"
	case TriggerPause:
		return "pause"
	case TriggerRelease:
		return "release"
	case TriggerReset:
		return "reset"
	case TriggerXrun:
		return "xrun"
	default:
		return "unknown"
	}
}

// ErrPathStop is a Trigger result that does not fail the overall
// request: pipeline.TriggerAll skips the component that returned it and
// still delivers the command to every other component, so it does not
// halt propagation past this component.
var ErrPathStop = fmt.Errorf("component: path_stop")

// ErrNoData and ErrNoSpace are the two recoverable Copy-time failures:
// an input buffer below the minimum needed to
// produce one output frame, or an output buffer unable to hold the
// result. Both are retried next scheduling tick rather than propagated
// as pipeline errors; any other error from Copy is not recoverable and
// moves the owning pipeline to error_stop.
var (
	ErrNoData  = fmt.Errorf("component: no_data")
	ErrNoSpace = fmt.Errorf("component: no_space")
)

// IsRecoverable reports whether err is one of the Copy-time conditions
// the scheduler should silently retry next period instead of treating
// as a pipeline-ending failure.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoData) || errors.Is(err, ErrNoSpace)
}

// Component is the fixed operation vtable every processing component
// implements. Pipeline code never type-switches on a concrete component
// kind — it only ever calls through this interface.
type Component interface {
	ID() ids.ComponentID
	Type() ids.ComponentType
	Name() string
	State() State

	// Params negotiates the stream shape flowing through this
	// component; direction-dependent ordering during the pipeline walk
	// is the caller's responsibility, not this method's.
	Params(p audioformat.Params) error

	// Prepare transitions ready -> prepared, allocating whatever the
	// component needs for the negotiated params.
	Prepare(ctx context.Context) error

	// Trigger delivers one lifecycle command, enforcing the state
	// lattice; an illegal request returns a bad_state error rather
	// than silently no-op'ing.
	Trigger(cmd TriggerCmd) error

	// Copy performs one period's worth of processing. Called from the
	// scheduler on every tick while the component is active.
	Copy(ctx context.Context) error

	// Reset transitions back to ready, releasing per-stream-shape
	// resources acquired in Prepare.
	Reset() error

	// Free releases the component entirely. Freeing a component that
	// is still scheduled and paused is rejected with bad_state — the
	// caller must Reset first.
	Free() error
}

// Base provides the bookkeeping every concrete component embeds:
// identity, the state lattice, and the negotiated params. Concrete
// components embed Base and implement Prepare/Copy/Reset/Free
// themselves; Base has no Free, so each concrete Free checks the lattice
// state on its own.
type Base struct {
	*Lattice

	id      ids.ComponentID
	typ     ids.ComponentType
	name    string
	core    int // owning DSP core, read-only after creation
	params  audioformat.Params
	running bool // true while the per-core scheduler has this on a list
}

// NewBase constructs the embeddable identity+lattice state for a
// concrete component.
func NewBase(id ids.ComponentID, typ ids.ComponentType, name string) Base {
	return Base{Lattice: NewLattice(), id: id, typ: typ, name: name}
}

func (b *Base) ID() ids.ComponentID        { return b.id }
func (b *Base) Type() ids.ComponentType    { return b.typ }
func (b *Base) Name() string               { return b.name }
func (b *Base) Params(p audioformat.Params) error {
	b.params = p
	return nil
}
func (b *Base) CurrentParams() audioformat.Params { return b.params }

// CoreID returns the DSP core this component is pinned to. The field is
// assigned once at creation time (SetCoreID) and read-only afterwards;
// an edge connecting components with differing cores marks its buffer
// cross-core so the cache discipline applies.
func (b *Base) CoreID() int        { return b.core }
func (b *Base) SetCoreID(core int) { b.core = core }

// SetScheduled marks whether the scheduler currently holds this
// component on a per-core run list. No Free implementation consults it;
// the registry's Remove rejects a paused component instead.
func (b *Base) SetScheduled(v bool) { b.running = v }
func (b *Base) Scheduled() bool     { return b.running }
