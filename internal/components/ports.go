package components

import (
	"github.com/jangala-audio/dspcore/internal/buffer"
	"github.com/jangala-audio/dspcore/internal/dsperr"
)

// MaxPorts bounds the source/sink fan-out of any single component.
// Typical fan-out is well under 8, so a fixed-capacity vector is
// sufficient and avoids a heap allocation per connect.
const MaxPorts = 8

// Ports is the embeddable source/sink buffer vector every concrete
// component uses to satisfy pipeline.Wireable: per-component neighbors
// are a small fixed-capacity vector rather than an intrusive linked
// list.
type Ports struct {
	sources   [MaxPorts]*buffer.Buffer
	nSources  int
	sinks     [MaxPorts]*buffer.Buffer
	nSinks    int
}

// AddSource registers an inbound edge.
func (p *Ports) AddSource(b *buffer.Buffer) error {
	if p.nSources >= MaxPorts {
		return dsperr.New(dsperr.CodeNoResource, "component: source fan-in exceeds MaxPorts")
	}
	p.sources[p.nSources] = b
	p.nSources++
	return nil
}

// AddSink registers an outbound edge.
func (p *Ports) AddSink(b *buffer.Buffer) error {
	if p.nSinks >= MaxPorts {
		return dsperr.New(dsperr.CodeNoResource, "component: sink fan-out exceeds MaxPorts")
	}
	p.sinks[p.nSinks] = b
	p.nSinks++
	return nil
}

// Sources returns every connected source buffer, in connection order.
func (p *Ports) Sources() []*buffer.Buffer { return p.sources[:p.nSources] }

// Sinks returns every connected sink buffer, in connection order.
func (p *Ports) Sinks() []*buffer.Buffer { return p.sinks[:p.nSinks] }

// RemoveSource detaches one inbound edge, compacting the vector. A
// buffer not found is a no-op: buffer_free tears edges down through the
// pipeline, which already validated the edge exists.
func (p *Ports) RemoveSource(b *buffer.Buffer) {
	for i := 0; i < p.nSources; i++ {
		if p.sources[i] != b {
			continue
		}
		copy(p.sources[i:], p.sources[i+1:p.nSources])
		p.nSources--
		p.sources[p.nSources] = nil
		return
	}
}

// RemoveSink detaches one outbound edge, compacting the vector.
func (p *Ports) RemoveSink(b *buffer.Buffer) {
	for i := 0; i < p.nSinks; i++ {
		if p.sinks[i] != b {
			continue
		}
		copy(p.sinks[i:], p.sinks[i+1:p.nSinks])
		p.nSinks--
		p.sinks[p.nSinks] = nil
		return
	}
}
