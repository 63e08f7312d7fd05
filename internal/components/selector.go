package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Selector is the channel selector: it extracts a configured
// subset of the input's channels into the output, one source channel per
// output channel. The common tuning is 4-mic capture narrowed to the one
// or two channels a downstream detector wants, so unlike MuxDemux there
// is no summing — each output channel copies exactly one input channel.
type Selector struct {
	component.Base
	Ports

	// routes[outCh] names the source channel feeding output channel
	// outCh. Empty routes means identity: channel i feeds channel i for
	// as many channels as both sides carry.
	routes []uint32
}

// NewSelector constructs a channel selector with identity routing.
func NewSelector(id ids.ComponentID, name string) *Selector {
	s := &Selector{Base: component.NewBase(id, ids.TypeSelector, name)}
	_ = s.Transition(component.StateReady)
	return s
}

// SetRoutes installs the output-channel-to-input-channel map. The slice
// index is the output channel; the value is the source channel it copies.
func (s *Selector) SetRoutes(routes []uint32) {
	s.routes = append([]uint32(nil), routes...)
}

// AsymmetricFormat marks the selector's edges as legitimately differing
// in channel count, for the pipeline negotiation walk.
func (s *Selector) AsymmetricFormat() bool { return true }

func (s *Selector) Prepare(_ context.Context) error {
	sources := s.Sources()
	sinks := s.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "selector: requires exactly one source and one sink")
	}
	in := sources[0].Params()
	out := sinks[0].Params()
	if len(s.routes) > 0 && uint32(len(s.routes)) != out.Channels {
		return dsperr.New(dsperr.CodeBadParam, "selector: route count does not match sink channel count")
	}
	for _, ch := range s.routes {
		if ch >= in.Channels {
			return dsperr.New(dsperr.CodeBadParam, "selector: route names a source channel past the input's channel count")
		}
	}
	return s.Transition(component.StatePrepared)
}

func (s *Selector) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return s.Transition(component.StateActive)
	case component.TriggerPause:
		return s.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return s.Transition(component.StateReady)
	case component.TriggerReset:
		return s.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "selector: unknown trigger command")
	}
}

func (s *Selector) Copy(_ context.Context) error {
	sources := s.Sources()
	sinks := s.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "selector: requires exactly one source and one sink")
	}
	src, sink := sources[0], sinks[0]
	inP, outP := src.Params(), sink.Params()
	inFB, err := inP.FrameBytes()
	if err != nil || inFB == 0 {
		return dsperr.New(dsperr.CodeBadParam, "selector: no negotiated source frame format")
	}
	outFB, err := outP.FrameBytes()
	if err != nil || outFB == 0 {
		return dsperr.New(dsperr.CodeBadParam, "selector: no negotiated sink frame format")
	}

	frames := frameCount(src.Avail(), inP)
	if ff := frameCount(sink.Free(), outP); ff < frames {
		frames = ff
	}
	if frames == 0 {
		if frameCount(sink.Free(), outP) == 0 {
			return component.ErrNoSpace
		}
		return component.ErrNoData
	}

	in := src.GetSourceRegion(frames * inFB)
	if uint32(len(in.Data)) < frames*inFB {
		frames = uint32(len(in.Data)) / inFB
	}
	out := sink.GetSinkRegion(frames * outFB)
	if uint32(len(out.Data)) < frames*outFB {
		frames = uint32(len(out.Data)) / outFB
	}
	if frames == 0 {
		return component.ErrNoData
	}

	inSB, _ := inP.Format.SampleBytes()
	outSB, _ := outP.Format.SampleBytes()
	outChans := int(outP.Channels)
	for f := uint32(0); f < frames; f++ {
		for ch := 0; ch < outChans; ch++ {
			srcCh := uint32(ch)
			if ch < len(s.routes) {
				srcCh = s.routes[ch]
			}
			if srcCh >= inP.Channels {
				// identity fallback past the input's width: silence
				writeSample(out.Data, f*outFB+uint32(ch)*outSB, outP.Format, 0)
				continue
			}
			v := readSample(in.Data, f*inFB+srcCh*inSB, inP.Format)
			writeSample(out.Data, f*outFB+uint32(ch)*outSB, outP.Format, v)
		}
	}

	src.Consume(frames * inFB)
	sink.Produce(frames * outFB)
	return nil
}

func (s *Selector) Reset() error {
	return s.Transition(component.StateReady)
}

func (s *Selector) Free() error {
	if s.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "selector: free requires ready state")
	}
	return nil
}
