package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// farrowInterp evaluates a cubic Lagrange interpolant at fractional
// offset mu (0..1) between h[1] and h[2], given the four consecutive
// samples h = [y(-1), y(0), y(1), y(2)]. This is the Farrow-structure
// asynchronous SRC's core primitive: unlike the synchronous SRC's
// precomputed polyphase bank, the interpolation position is a runtime
// value that drifts continuously rather than stepping through a fixed
// phase table.
func farrowInterp(h [4]float64, mu float64) float64 {
	c0 := -mu * (mu - 1) * (mu - 2) / 6
	c1 := (mu + 1) * (mu - 1) * (mu - 2) / 2
	c2 := -(mu + 1) * mu * (mu - 2) / 2
	c3 := (mu + 1) * mu * (mu - 1) / 6
	return c0*h[0] + c1*h[1] + c2*h[2] + c3*h[3]
}

// shiftIn pushes a new sample into a 4-tap history, discarding the
// oldest.
func shiftIn(h *[4]float64, x float64) {
	h[0], h[1], h[2] = h[1], h[2], h[3]
	h[3] = x
}

// ASRC is an asynchronous sample-rate converter for two clock domains that are nominally the
// same rate but drift relative to each other (e.g. a DAI clocked from an independent
// crystal versus the host mailbox clock). Unlike SRC, the
// conversion ratio is not selected once from a table; it is adjusted at
// runtime from measured drift and the interpolation position free-runs
// between input samples via a 4-tap Farrow interpolator.
type ASRC struct {
	component.Base
	Ports

	channels int
	ratio    float64 // output_rate / input_rate, nominally 1.0
	frac     float64 // 0..1 position between the current sample pair

	hist         [][4]float64
	bootstrapped bool
}

// NewASRC constructs an asynchronous SRC with an initial 1:1 ratio.
func NewASRC(id ids.ComponentID, name string) *ASRC {
	a := &ASRC{Base: component.NewBase(id, ids.TypeASRC, name), ratio: 1.0}
	_ = a.Transition(component.StateReady)
	return a
}

// SetRatio pins the instantaneous output/input rate ratio directly.
func (a *ASRC) SetRatio(ratio float64) error {
	if ratio <= 0 {
		return dsperr.New(dsperr.CodeBadParam, "asrc: ratio must be positive")
	}
	a.ratio = ratio
	return nil
}

// AdjustDrift nudges the current ratio by driftPPM parts per million, the
// gradual correction a host or LLP-comparison loop applies once it
// measures clock drift between the two domains.
func (a *ASRC) AdjustDrift(driftPPM float64) {
	a.ratio += driftPPM / 1e6
}

// AsymmetricFormat marks the ASRC's two edges as legitimately carrying
// different stream shapes for the pipeline negotiation walk.
func (a *ASRC) AsymmetricFormat() bool { return true }

func (a *ASRC) Prepare(_ context.Context) error {
	sources := a.Sources()
	sinks := a.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "asrc: requires exactly one source and one sink")
	}
	inParams := sources[0].Params()
	outParams := sinks[0].Params()
	if inParams.Channels == 0 || inParams.Channels != outParams.Channels {
		return dsperr.New(dsperr.CodeBadParam, "asrc: source/sink channel counts must match and be nonzero")
	}
	a.channels = int(inParams.Channels)
	a.hist = make([][4]float64, a.channels)
	a.frac = 0
	a.bootstrapped = false
	return a.Transition(component.StatePrepared)
}

func (a *ASRC) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return a.Transition(component.StateActive)
	case component.TriggerPause:
		return a.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return a.Transition(component.StateReady)
	case component.TriggerReset:
		return a.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "asrc: unknown trigger command")
	}
}

func (a *ASRC) Copy(_ context.Context) error {
	sources := a.Sources()
	sinks := a.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "asrc: requires exactly one source and one sink")
	}
	inParams := sources[0].Params()
	outParams := sinks[0].Params()
	inFb, err := inParams.FrameBytes()
	if err != nil || inFb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "asrc: no negotiated source frame format")
	}
	outFb, err := outParams.FrameBytes()
	if err != nil || outFb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "asrc: no negotiated sink frame format")
	}

	availFrames := frameCount(sources[0].Avail(), inParams)
	freeFrames := frameCount(sinks[0].Free(), outParams)

	if !a.bootstrapped && availFrames < 4 {
		return component.ErrNoData
	}

	in := sources[0].GetSourceRegion(availFrames * inFb)
	actualInFrames := uint32(len(in.Data)) / inFb
	out := sinks[0].GetSinkRegion(freeFrames * outFb)
	actualOutFrames := uint32(len(out.Data)) / outFb

	inSampleBytes, _ := inParams.Format.SampleBytes()
	outSampleBytes, _ := outParams.Format.SampleBytes()

	var inCursor uint32
	if !a.bootstrapped {
		if actualInFrames < 4 {
			return component.ErrNoData
		}
		for ; inCursor < 4; inCursor++ {
			for ch := 0; ch < a.channels; ch++ {
				off := inCursor*inFb + uint32(ch)*inSampleBytes
				shiftIn(&a.hist[ch], float64(readSample(in.Data, off, inParams.Format)))
			}
		}
		a.bootstrapped = true
	}

	step := 1.0 / a.ratio
	var outCursor uint32
	blocked := false
	for outCursor < actualOutFrames {
		for a.frac >= 1.0 {
			if inCursor >= actualInFrames {
				blocked = true
				break
			}
			for ch := 0; ch < a.channels; ch++ {
				off := inCursor*inFb + uint32(ch)*inSampleBytes
				shiftIn(&a.hist[ch], float64(readSample(in.Data, off, inParams.Format)))
			}
			inCursor++
			a.frac -= 1.0
		}
		if blocked {
			break
		}
		for ch := 0; ch < a.channels; ch++ {
			y := farrowInterp(a.hist[ch], a.frac)
			off := outCursor*outFb + uint32(ch)*outSampleBytes
			writeSample(out.Data, off, outParams.Format, int64(y))
		}
		outCursor++
		a.frac += step
	}

	sources[0].Consume(inCursor * inFb)
	sinks[0].Produce(outCursor * outFb)

	if outCursor == 0 {
		if actualOutFrames == 0 {
			return component.ErrNoSpace
		}
		return component.ErrNoData
	}
	return nil
}

func (a *ASRC) Reset() error {
	for ch := range a.hist {
		a.hist[ch] = [4]float64{}
	}
	a.frac = 0
	a.bootstrapped = false
	return a.Transition(component.StateReady)
}

func (a *ASRC) Free() error {
	if a.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "asrc: free requires ready state")
	}
	return nil
}
