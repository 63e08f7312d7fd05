// Package pipeline implements the processing-component graph and its
// lifecycle: components wired together by buffer edges,
// negotiated hop by hop into a single stream shape per edge, walked
// depth-first for prepare/trigger propagation, and scheduled periodically
// by a timer or DMA-completion interrupt.
//
// Neighbors are tracked as small id-keyed adjacency lists rather than
// an intrusive linked list with container_of, and every operation
// dispatches through the component.Component vtable — this package
// never type-switches on a concrete component kind (it type-asserts
// only to the small marker interfaces below, which any component kind
// may or may not implement).
package pipeline

import (
	"fmt"
	"sync"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/buffer"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
)

// Wireable is the source/sink connection surface a component exposes to
// the pipeline graph; internal/components' embeddable Ports type
// satisfies it structurally. A component kind that needs no edges (none
// currently do) simply never gets asserted to this interface.
type Wireable interface {
	AddSource(b *buffer.Buffer) error
	AddSink(b *buffer.Buffer) error
	RemoveSource(b *buffer.Buffer)
	RemoveSink(b *buffer.Buffer)
}

// coreCarrier exposes the core a component is pinned to; component.Base
// provides it, so every concrete kind carries it via embedding.
type coreCarrier interface {
	CoreID() int
}

// PeriodAware is implemented by component kinds that move one
// negotiated period's worth of bytes per Copy (host, copier, tone);
// pipeline code calls it opportunistically via a type
// assertion, never assuming every component needs it.
type PeriodAware interface {
	SetPeriodFrames(frames uint32)
}

// asymmetricFormat is implemented by component kinds whose source and
// sink sides legitimately carry different stream shapes (SRC, ASRC,
// MuxDemux, Selector) so the params negotiation walk's uniform-format consistency
// check skips them instead of flagging a "mismatch".
type asymmetricFormat interface {
	AsymmetricFormat() bool
}

// State is a pipeline's own lifecycle position, the
// init -> ready -> prepared -> active <-> paused lattice, where prepared,
// active and paused each return to ready, plus the error_stop state
// entered from active or paused once the xrun limit is crossed or a
// non-recoverable Copy failure occurs.
type State int

const (
	StateInit State = iota
	StateReady
	StatePrepared
	StateActive
	StatePaused
	StateErrorStop
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
	case StateErrorStop:
		return "error_stop"
	default:
		return "unknown"
	}
}

var allowedTransitions = map[State]map[State]bool{
	StateInit:      {StateReady: true},
	StateReady:     {StatePrepared: true},
	StatePrepared:  {StateActive: true, StateReady: true},
	StateActive:    {StatePaused: true, StateReady: true, StateErrorStop: true},
	StatePaused:    {StateActive: true, StateReady: true, StateErrorStop: true},
	StateErrorStop: {StateReady: true},
}

// edge is one buffer connection between two components, both ends
// identified by id rather than pointer.
type edge struct {
	id   ids.BufferID
	from ids.ComponentID
	to   ids.ComponentID
	buf  *buffer.Buffer
}

// Pipeline is one processing graph: a set of components connected by
// buffer edges, negotiated and prepared together, triggered together,
// and scheduled as a unit.
type Pipeline struct {
	ID ids.PipelineID

	mu         sync.Mutex
	state      State
	components map[ids.ComponentID]component.Component
	order      []ids.ComponentID // insertion order, used when no edges exist yet
	edges      []edge
	adjOut     map[ids.ComponentID][]ids.ComponentID
	adjIn      map[ids.ComponentID][]ids.ComponentID

	periodFrames uint32
	xrun         xrunTracker
}

// New constructs an empty pipeline in the init state.
func New(id ids.PipelineID) *Pipeline {
	return &Pipeline{
		ID:         id,
		components: make(map[ids.ComponentID]component.Component),
		adjOut:     make(map[ids.ComponentID][]ids.ComponentID),
		adjIn:      make(map[ids.ComponentID][]ids.ComponentID),
	}
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(to State) error {
	if !allowedTransitions[p.state][to] {
		return dsperr.New(dsperr.CodeBadState, fmt.Sprintf("pipeline: cannot go from %s to %s", p.state, to))
	}
	p.state = to
	return nil
}

// AddComponent registers a component with this pipeline. It must be
// called before Connect references the component's id.
func (p *Pipeline) AddComponent(c component.Component) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.components[c.ID()]; exists {
		return dsperr.New(dsperr.CodeBadParam, "pipeline: component id already added")
	}
	p.components[c.ID()] = c
	p.order = append(p.order, c.ID())
	if p.state == StateInit {
		if err := p.transition(StateReady); err != nil {
			return err
		}
	}
	return nil
}

// Connect allocates a buffer edge of sizeBytes from pool carrying
// params, and wires it as from's sink and to's source. Both components
// must already be registered and implement Wireable.
func (p *Pipeline) Connect(from, to ids.ComponentID, bufID ids.BufferID, pool *memory.Pool, sizeBytes uint32, caps memory.Capability, params audioformat.Params) (*buffer.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fromC, ok := p.components[from]
	if !ok {
		return nil, dsperr.New(dsperr.CodeBadParam, "pipeline: connect from unknown component")
	}
	toC, ok := p.components[to]
	if !ok {
		return nil, dsperr.New(dsperr.CodeBadParam, "pipeline: connect to unknown component")
	}
	fromW, ok := fromC.(Wireable)
	if !ok {
		return nil, dsperr.New(dsperr.CodeNotSupported, "pipeline: source component does not support connections")
	}
	toW, ok := toC.(Wireable)
	if !ok {
		return nil, dsperr.New(dsperr.CodeNotSupported, "pipeline: sink component does not support connections")
	}

	b, err := buffer.New(bufID, pool, sizeBytes, caps)
	if err != nil {
		return nil, err
	}
	if err := b.SetParams(params); err != nil {
		return nil, err
	}
	if err := fromW.AddSink(b); err != nil {
		return nil, err
	}
	if err := toW.AddSource(b); err != nil {
		return nil, err
	}
	b.SetEndpoints(from, to)
	fc, fok := fromC.(coreCarrier)
	tc, tok := toC.(coreCarrier)
	if fok && tok && fc.CoreID() != tc.CoreID() {
		// endpoints live on different coherency domains: mark the edge;
		// the flag is informational and installs no cache ops
		b.SetCrossCore(true)
	}

	p.edges = append(p.edges, edge{id: bufID, from: from, to: to, buf: b})
	p.adjOut[from] = append(p.adjOut[from], to)
	p.adjIn[to] = append(p.adjIn[to], from)
	return b, nil
}

// SetPeriodFrames records the pipeline's negotiated scheduling quantum
// and pushes it to every PeriodAware component; called once during
// Prepare, after params negotiation has fixed every edge's stream shape.
func (p *Pipeline) SetPeriodFrames(frames uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.periodFrames = frames
	for _, id := range p.order {
		if pa, ok := p.components[id].(PeriodAware); ok {
			pa.SetPeriodFrames(frames)
		}
	}
}

// SetXrunLimit configures the accumulated-overrun/underrun threshold
// past which the
// pipeline forces itself to error_stop and the scheduler notifies the
// host, instead of retrying indefinitely.
func (p *Pipeline) SetXrunLimit(usecs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.xrun.limitUsecs = usecs
}

// Component looks up a registered component by id.
func (p *Pipeline) Component(id ids.ComponentID) (component.Component, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.components[id]
	return c, ok
}

// FreeBuffer tears down one edge's buffer. buffer_free is only valid
// while the owning pipeline is in ready state,
// independent of the whole-pipeline Free below.
func (p *Pipeline) FreeBuffer(bufID ids.BufferID, pool *memory.Pool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return dsperr.New(dsperr.CodeBadState, "pipeline: buffer_free requires pipeline in ready state")
	}
	for i := range p.edges {
		if p.edges[i].id != bufID {
			continue
		}
		buf := p.edges[i].buf
		from, to := p.edges[i].from, p.edges[i].to
		p.edges = append(p.edges[:i], p.edges[i+1:]...)
		p.adjOut[from] = removeID(p.adjOut[from], to)
		p.adjIn[to] = removeID(p.adjIn[to], from)
		if w, ok := p.components[from].(Wireable); ok {
			w.RemoveSink(buf)
		}
		if w, ok := p.components[to].(Wireable); ok {
			w.RemoveSource(buf)
		}
		return buf.Release(pool)
	}
	return dsperr.New(dsperr.CodeBadParam, "pipeline: unknown buffer id")
}

// RemoveComponent deregisters a component after the caller has already
// freed it via component_free, dropping any edges still
// touching it from the adjacency lists the same way FreeBuffer drops a
// single edge. Callers are expected to have torn down those edges'
// buffers via buffer_free first; this only clears bookkeeping, it does
// not return anything to a memory pool.
func (p *Pipeline) RemoveComponent(id ids.ComponentID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.components[id]; !ok {
		return dsperr.New(dsperr.CodeBadParam, "pipeline: unknown component id")
	}

	remaining := p.edges[:0]
	for _, e := range p.edges {
		if e.from != id && e.to != id {
			remaining = append(remaining, e)
			continue
		}
		// the surviving endpoint must not keep a port into the dropped edge
		if e.from == id {
			if w, ok := p.components[e.to].(Wireable); ok {
				w.RemoveSource(e.buf)
			}
		} else {
			if w, ok := p.components[e.from].(Wireable); ok {
				w.RemoveSink(e.buf)
			}
		}
	}
	p.edges = remaining

	delete(p.adjOut, id)
	delete(p.adjIn, id)
	for k, v := range p.adjOut {
		p.adjOut[k] = removeID(v, id)
	}
	for k, v := range p.adjIn {
		p.adjIn[k] = removeID(v, id)
	}

	delete(p.components, id)
	p.order = removeID(p.order, id)
	return nil
}

func removeID(list []ids.ComponentID, id ids.ComponentID) []ids.ComponentID {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Reset drives every component back to ready via a reset trigger and
// forces the pipeline's own state back to ready alongside them — the
// pcm_free path, which must be reachable from prepared, active, paused
// or error_stop alike.
func (p *Pipeline) Reset() error {
	if err := p.TriggerAll(component.TriggerReset); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateReady {
		return nil
	}
	return p.transition(StateReady)
}

// Free releases the pipeline and every component it owns. Per Open
// Question 1, a pipeline with any component still
// paused is rejected — the caller must reset it to ready first.
func (p *Pipeline) Free() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		if p.components[id].State() == component.StatePaused {
			return dsperr.New(dsperr.CodeBadState, "pipeline: free requires every component out of paused state")
		}
	}
	for _, id := range p.order {
		if err := p.components[id].Free(); err != nil {
			return err
		}
	}
	p.components = make(map[ids.ComponentID]component.Component)
	p.order = nil
	p.edges = nil
	p.adjOut = make(map[ids.ComponentID][]ids.ComponentID)
	p.adjIn = make(map[ids.ComponentID][]ids.ComponentID)
	return nil
}

// ActiveComponents counts components currently in the active state, for
// the telemetry poller.
func (p *Pipeline) ActiveComponents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, id := range p.order {
		if p.components[id].State() == component.StateActive {
			n++
		}
	}
	return n
}

// EachBufferFill reports every edge buffer's fill fraction, for the
// telemetry poller.
func (p *Pipeline) EachBufferFill(fn func(id ids.BufferID, fill float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.edges {
		b := p.edges[i].buf
		size := b.Size()
		if size == 0 {
			continue
		}
		fn(p.edges[i].id, float64(b.Avail())/float64(size))
	}
}
