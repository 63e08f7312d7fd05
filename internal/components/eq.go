package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// EQTopology selects the filter structure an EQ instance runs: a direct-
// form FIR or a cascade of direct-form-II-transposed IIR biquad
// sections.
type EQTopology int

const (
	EQTopologyFIR EQTopology = iota
	EQTopologyIIR
)

// biquad is one direct-form-II-transposed IIR section: y = b0*x + b1*x1 +
// b2*x2 - a1*y1 - a2*y2, with per-channel state (w1, w2) to keep several
// channels independent.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	w1, w2     []float64 // per-channel transposed-form state
}

// EQ is the parametric equalizer component: coefficients arrive
// wholesale via configuration (a coefficient blob sent by the host
// rather than computed on-device) and are applied per channel.
type EQ struct {
	component.Base
	Ports

	topology EQTopology
	channels int

	// FIR state
	firCoeffs []float64
	firHist   [][]float64 // per-channel circular history, same length as firCoeffs
	firPos    []int

	// IIR state
	sections []biquad
}

// NewEQ constructs an EQ component with no coefficients loaded;
// SetFIRCoeffs or SetIIRSections must be called before Prepare.
func NewEQ(id ids.ComponentID, name string, topology EQTopology) *EQ {
	typ := ids.TypeEQFIR
	if topology == EQTopologyIIR {
		typ = ids.TypeEQIIR
	}
	e := &EQ{Base: component.NewBase(id, typ, name), topology: topology}
	_ = e.Transition(component.StateReady)
	return e
}

// SetFIRCoeffs loads a direct-form FIR tap set, applied identically to
// every channel.
func (e *EQ) SetFIRCoeffs(taps []float64) error {
	if e.topology != EQTopologyFIR {
		return dsperr.New(dsperr.CodeBadParam, "eq: fir coefficients set on an iir instance")
	}
	e.firCoeffs = append([]float64(nil), taps...)
	return nil
}

// SetIIRSections loads a cascade of biquad sections, applied identically
// to every channel, each with independent per-channel state.
func (e *EQ) SetIIRSections(sections []struct{ B0, B1, B2, A1, A2 float64 }) error {
	if e.topology != EQTopologyIIR {
		return dsperr.New(dsperr.CodeBadParam, "eq: iir sections set on a fir instance")
	}
	e.sections = make([]biquad, len(sections))
	for i, s := range sections {
		e.sections[i] = biquad{b0: s.B0, b1: s.B1, b2: s.B2, a1: s.A1, a2: s.A2}
	}
	return nil
}

func (e *EQ) Prepare(_ context.Context) error {
	e.channels = int(e.CurrentParams().Channels)
	if e.channels <= 0 {
		return dsperr.New(dsperr.CodeBadParam, "eq: prepare with zero channels negotiated")
	}
	switch e.topology {
	case EQTopologyFIR:
		if len(e.firCoeffs) == 0 {
			return dsperr.New(dsperr.CodeBadParam, "eq: prepare with no fir coefficients loaded")
		}
		e.firHist = make([][]float64, e.channels)
		e.firPos = make([]int, e.channels)
		for ch := range e.firHist {
			e.firHist[ch] = make([]float64, len(e.firCoeffs))
		}
	case EQTopologyIIR:
		if len(e.sections) == 0 {
			return dsperr.New(dsperr.CodeBadParam, "eq: prepare with no iir sections loaded")
		}
		for i := range e.sections {
			e.sections[i].w1 = make([]float64, e.channels)
			e.sections[i].w2 = make([]float64, e.channels)
		}
	}
	return e.Transition(component.StatePrepared)
}

func (e *EQ) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return e.Transition(component.StateActive)
	case component.TriggerPause:
		return e.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return e.Transition(component.StateReady)
	case component.TriggerReset:
		return e.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "eq: unknown trigger command")
	}
}

func (e *EQ) Copy(_ context.Context) error {
	sources := e.Sources()
	sinks := e.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "eq: requires exactly one source and one sink")
	}
	params := e.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "eq: no negotiated frame format")
	}

	frames := frameCount(sources[0].Avail(), params)
	if wantFrames := frameCount(sinks[0].Free(), params); wantFrames < frames {
		frames = wantFrames
	}
	if frames == 0 {
		if sources[0].Avail() < fb {
			return component.ErrNoData
		}
		return component.ErrNoSpace
	}

	n := frames * fb
	in := sources[0].GetSourceRegion(n)
	if uint32(len(in.Data)) < n {
		frames = uint32(len(in.Data)) / fb
		n = frames * fb
	}
	if frames == 0 {
		return component.ErrNoData
	}
	out := sinks[0].GetSinkRegion(n)
	if uint32(len(out.Data)) < n {
		frames = uint32(len(out.Data)) / fb
		n = frames * fb
		if frames == 0 {
			return component.ErrNoSpace
		}
	}

	sampleBytes, _ := params.Format.SampleBytes()
	for f := uint32(0); f < frames; f++ {
		for ch := 0; ch < e.channels; ch++ {
			off := f*fb + uint32(ch)*sampleBytes
			x := float64(readSample(in.Data, off, params.Format))
			var y float64
			switch e.topology {
			case EQTopologyFIR:
				y = e.stepFIR(ch, x)
			case EQTopologyIIR:
				y = e.stepIIR(ch, x)
			}
			writeSample(out.Data, off, params.Format, int64(y))
		}
	}

	sources[0].Consume(n)
	sinks[0].Produce(n)
	return nil
}

// stepFIR pushes x into channel ch's circular history and convolves
// against firCoeffs, direct form.
func (e *EQ) stepFIR(ch int, x float64) float64 {
	hist := e.firHist[ch]
	pos := e.firPos[ch]
	hist[pos] = x
	var y float64
	idx := pos
	for _, c := range e.firCoeffs {
		y += c * hist[idx]
		idx--
		if idx < 0 {
			idx = len(hist) - 1
		}
	}
	e.firPos[ch] = (pos + 1) % len(hist)
	return y
}

// stepIIR runs x through the biquad cascade in direct-form-II-transposed,
// one section at a time, channel ch's state threaded through each.
func (e *EQ) stepIIR(ch int, x float64) float64 {
	for i := range e.sections {
		s := &e.sections[i]
		y := s.b0*x + s.w1[ch]
		s.w1[ch] = s.b1*x - s.a1*y + s.w2[ch]
		s.w2[ch] = s.b2*x - s.a2*y
		x = y
	}
	return x
}

func (e *EQ) Reset() error {
	for ch := range e.firHist {
		for i := range e.firHist[ch] {
			e.firHist[ch][i] = 0
		}
		e.firPos[ch] = 0
	}
	for i := range e.sections {
		for ch := range e.sections[i].w1 {
			e.sections[i].w1[ch] = 0
			e.sections[i].w2[ch] = 0
		}
	}
	return e.Transition(component.StateReady)
}

func (e *EQ) Free() error {
	if e.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "eq: free requires ready state")
	}
	return nil
}
