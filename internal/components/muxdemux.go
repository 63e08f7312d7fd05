package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// MuxDemux is an N×M routing matrix over a shared global input-channel
// index (every source's channels concatenated in connection order). Each
// sink's output channel carries a bitmask over that global index; the
// contributing input channels are summed and saturated. A single
// instance with one sink behaves as a mux (combine); an instance with
// several sinks, each reading a disjoint subset of the mask space,
// behaves as a demux (split).
type MuxDemux struct {
	component.Base
	Ports

	// masks[sinkIdx][outCh] is a bitmask over the global input channel
	// index (concatenating every connected source's channels in order).
	masks [][]uint64
}

// NewMuxDemux constructs a routing component with no masks configured;
// SetRouting must be called once sinks are connected and before Prepare.
func NewMuxDemux(id ids.ComponentID, name string) *MuxDemux {
	x := &MuxDemux{Base: component.NewBase(id, ids.TypeMux, name)}
	_ = x.Transition(component.StateReady)
	return x
}

// SetRouting configures sink index sinkIdx's per-output-channel bitmask
// over the global input-channel index.
func (x *MuxDemux) SetRouting(sinkIdx int, outMasks []uint64) error {
	if sinkIdx < 0 || sinkIdx >= MaxPorts {
		return dsperr.New(dsperr.CodeBadParam, "muxdemux: sink index out of range")
	}
	for len(x.masks) <= sinkIdx {
		x.masks = append(x.masks, nil)
	}
	x.masks[sinkIdx] = outMasks
	return nil
}

// AsymmetricFormat marks routing edges as legitimately differing in
// channel count across the component, for the negotiation walk.
func (x *MuxDemux) AsymmetricFormat() bool { return true }

func (x *MuxDemux) Prepare(_ context.Context) error {
	if len(x.Sources()) == 0 || len(x.Sinks()) == 0 {
		return dsperr.New(dsperr.CodeBadParam, "muxdemux: requires at least one source and one sink")
	}
	for i := range x.Sinks() {
		if i >= len(x.masks) || x.masks[i] == nil {
			return dsperr.New(dsperr.CodeBadParam, "muxdemux: missing routing for a connected sink")
		}
	}
	return x.Transition(component.StatePrepared)
}

func (x *MuxDemux) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return x.Transition(component.StateActive)
	case component.TriggerPause:
		return x.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return x.Transition(component.StateReady)
	case component.TriggerReset:
		return x.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "muxdemux: unknown trigger command")
	}
}

type inChannel struct {
	srcIdx  int
	localCh int
	sb      uint32
	fb      uint32
	format  audioformat.Format
}

func (x *MuxDemux) Copy(_ context.Context) error {
	sources := x.Sources()
	sinks := x.Sinks()
	if len(sources) == 0 || len(sinks) == 0 {
		return dsperr.New(dsperr.CodeBadState, "muxdemux: requires at least one source and one sink")
	}

	srcParams := make([]audioformat.Params, len(sources))
	frames := ^uint32(0)
	for i, s := range sources {
		p := s.Params()
		srcParams[i] = p
		af := frameCount(s.Avail(), p)
		if af < frames {
			frames = af
		}
	}
	for i, s := range sinks {
		if i >= len(x.masks) || x.masks[i] == nil {
			return dsperr.New(dsperr.CodeBadParam, "muxdemux: missing routing for a connected sink")
		}
		ff := frameCount(s.Free(), s.Params())
		if ff < frames {
			frames = ff
		}
	}
	if frames == 0 || frames == ^uint32(0) {
		return component.ErrNoData
	}

	var inChans []inChannel
	inRegions := make([][]byte, len(sources))
	for i, p := range srcParams {
		sb, _ := p.Format.SampleBytes()
		fb, _ := p.FrameBytes()
		want := frames * fb
		r := sources[i].GetSourceRegion(want)
		if uint32(len(r.Data)) < want {
			frames = uint32(len(r.Data)) / fb
		}
		inRegions[i] = r.Data
		for c := 0; c < int(p.Channels); c++ {
			inChans = append(inChans, inChannel{srcIdx: i, localCh: c, sb: sb, fb: fb, format: p.Format})
		}
	}
	if frames == 0 {
		return component.ErrNoData
	}

	for sinkIdx, sink := range sinks {
		p := sink.Params()
		sb, _ := p.Format.SampleBytes()
		fb, _ := p.FrameBytes()
		n := frames * fb
		out := sink.GetSinkRegion(n)
		if uint32(len(out.Data)) < n {
			return component.ErrNoSpace
		}
		masks := x.masks[sinkIdx]
		for f := uint32(0); f < frames; f++ {
			for outCh := 0; outCh < int(p.Channels) && outCh < len(masks); outCh++ {
				mask := masks[outCh]
				var sum int64
				for gi, ic := range inChans {
					if mask&(uint64(1)<<uint(gi)) == 0 {
						continue
					}
					off := f*ic.fb + uint32(ic.localCh)*ic.sb
					sum += readSample(inRegions[ic.srcIdx], off, ic.format)
				}
				off := f*fb + uint32(outCh)*sb
				writeSample(out.Data, off, p.Format, sum)
			}
		}
		sink.Produce(n)
	}

	for i, s := range sources {
		fb, _ := srcParams[i].FrameBytes()
		s.Consume(frames * fb)
	}
	return nil
}

// Reset returns to ready keeping the routing masks; they are
// configuration, not runtime state.
func (x *MuxDemux) Reset() error {
	return x.Transition(component.StateReady)
}

func (x *MuxDemux) Free() error {
	if x.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "muxdemux: free requires ready state")
	}
	return nil
}
