package pipeline

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// direction picks which adjacency the graph walks use to build an order.
type direction int

const (
	forward  direction = iota // source endpoint toward sink endpoint
	backward                  // sink endpoint toward source endpoint
)

// topoOrder returns every component id in a valid topological order for
// the requested direction, via Kahn's algorithm over the adjacency the
// edges recorded at Connect time. Forward order is the natural data-flow
// order (source -> sink); backward is forward reversed, used for the
// trigger commands that must unwind downstream-first.
func (p *Pipeline) topoOrder(dir direction) ([]ids.ComponentID, error) {
	adj, radj := p.adjOut, p.adjIn
	if dir == backward {
		adj, radj = p.adjIn, p.adjOut
	}

	indegree := make(map[ids.ComponentID]int, len(p.order))
	for _, id := range p.order {
		indegree[id] = len(radj[id])
	}

	var queue []ids.ComponentID
	for _, id := range p.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]ids.ComponentID, 0, len(p.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(p.order) {
		return nil, dsperr.New(dsperr.CodeBadParam, "pipeline: component graph contains a cycle")
	}
	return order, nil
}

// sourceBuffers and sinkBuffers list the buffers connected to id on each
// side, in Connect call order.
func (p *Pipeline) sourceBuffers(id ids.ComponentID) []*bufferRef {
	var out []*bufferRef
	for i := range p.edges {
		if p.edges[i].to == id {
			out = append(out, &bufferRef{edge: &p.edges[i]})
		}
	}
	return out
}

func (p *Pipeline) sinkBuffers(id ids.ComponentID) []*bufferRef {
	var out []*bufferRef
	for i := range p.edges {
		if p.edges[i].from == id {
			out = append(out, &bufferRef{edge: &p.edges[i]})
		}
	}
	return out
}

// bufferRef is a thin accessor so sourceBuffers/sinkBuffers can return
// something other than a raw slice index into p.edges.
type bufferRef struct {
	edge *edge
}

// NegotiateParams walks the graph in forward order, assigning each
// component the stream shape of its connected edges and flagging any
// non-converting component (every kind except SRC/ASRC/MuxDemux/Selector,
// the implementations of asymmetricFormat) whose source and sink sides
// disagree — hop-by-hop negotiation, simplified here since
// edge shapes are supplied by the topology at Connect time rather than
// derived live from a fixed "default" shape.
func (p *Pipeline) NegotiateParams(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateReady {
		return dsperr.New(dsperr.CodeBadState, "pipeline: negotiate requires ready state")
	}

	order, err := p.topoOrder(forward)
	if err != nil {
		return err
	}

	for _, id := range order {
		c := p.components[id]
		sources := p.sourceBuffers(id)
		sinks := p.sinkBuffers(id)

		_, asymmetric := c.(asymmetricFormat)
		if !asymmetric && len(sources) > 0 && len(sinks) > 0 {
			want := sources[0].edge.buf.Params()
			for _, s := range sinks {
				if !s.edge.buf.Params().Equal(want) {
					return dsperr.New(dsperr.CodeBadParam, "pipeline: format mismatch across non-converting component "+c.Name())
				}
			}
		}

		var params audioformat.Params
		switch {
		case len(sinks) > 0:
			params = sinks[0].edge.buf.Params()
		case len(sources) > 0:
			params = sources[0].edge.buf.Params()
		default:
			continue
		}
		if err := c.Params(params); err != nil {
			return err
		}
	}
	return nil
}

// PrepareAll transitions the pipeline ready -> prepared: it calls
// Prepare on every component in forward order (so a component whose
// Prepare inspects an upstream peer's already-negotiated state, as SRC's
// does reading sources[0].Params() directly, sees a fully wired graph),
// then pushes the negotiated period size to every PeriodAware component.
func (p *Pipeline) PrepareAll(ctx context.Context, periodFrames uint32) error {
	p.mu.Lock()
	order, err := p.topoOrder(forward)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	comps := make([]component.Component, 0, len(order))
	for _, id := range order {
		comps = append(comps, p.components[id])
	}
	p.mu.Unlock()

	for _, c := range comps {
		if err := c.Prepare(ctx); err != nil {
			return dsperr.Wrap(dsperr.CodeBadState, "pipeline: prepare "+c.Name(), err)
		}
	}

	p.SetPeriodFrames(periodFrames)

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transition(StatePrepared)
}

// triggerOrder picks the direction TriggerAll propagates a command in:
// Start and Release move the graph "downstream" (source endpoint first,
// so a sink never starts pulling before its source can push), while
// Stop and Pause move it "upstream" (sink endpoint first, so nothing
// keeps writing into a buffer whose consumer just stopped draining it).
func triggerOrder(cmd component.TriggerCmd) direction {
	switch cmd {
	case component.TriggerStop, component.TriggerPause:
		return backward
	default:
		return forward
	}
}

// TriggerAll delivers cmd to every component in the direction-dependent
// order triggerOrder picks. A component that returns
// component.ErrPathStop is skipped without failing the whole request;
// the walk still delivers cmd to every remaining component, including
// those after it in walk order, so propagation does not halt there.
func (p *Pipeline) TriggerAll(cmd component.TriggerCmd) error {
	p.mu.Lock()
	order, err := p.topoOrder(triggerOrder(cmd))
	if err != nil {
		p.mu.Unlock()
		return err
	}
	comps := make([]component.Component, 0, len(order))
	for _, id := range order {
		comps = append(comps, p.components[id])
	}
	p.mu.Unlock()

	for _, c := range comps {
		if err := c.Trigger(cmd); err != nil {
			if err == component.ErrPathStop {
				continue
			}
			return dsperr.Wrap(dsperr.CodeBadState, "pipeline: trigger "+cmd.String()+" on "+c.Name(), err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch cmd {
	case component.TriggerStart:
		return p.transition(StateActive)
	case component.TriggerPause:
		return p.transition(StatePaused)
	case component.TriggerRelease:
		return p.transition(StateActive)
	case component.TriggerStop:
		return p.transition(StateReady)
	default:
		return nil
	}
}
