package components

import (
	"context"
	"math"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Mixer sums N source buffers into one sink with saturation at the
// target sample width.
// Sources may have different frame counts available; the block size is
// the minimum available across sources that are not marked
// underrun-permitted. A stalled source (no frames available) contributes
// nothing to the sum and is not consumed from at all for that period; a
// source holding zero-valued samples is summed and consumed as usual.
type Mixer struct {
	component.Base
	Ports

	underrunOK []bool
}

// NewMixer constructs a mixer with no sources connected yet.
func NewMixer(id ids.ComponentID, name string) *Mixer {
	m := &Mixer{Base: component.NewBase(id, ids.TypeMixer, name)}
	_ = m.Transition(component.StateReady)
	return m
}

// SetSourceUnderrunPermitted marks source index i as allowed to run dry
// without stalling the whole mix; its shortfall is filled with silence
// instead. Index i is the connection order AddSource was called in.
func (m *Mixer) SetSourceUnderrunPermitted(i int, permitted bool) error {
	if i < 0 || i >= len(m.Sources()) {
		return dsperr.New(dsperr.CodeBadParam, "mixer: source index out of range")
	}
	for len(m.underrunOK) <= i {
		m.underrunOK = append(m.underrunOK, false)
	}
	m.underrunOK[i] = permitted
	return nil
}

func (m *Mixer) underrunPermitted(i int) bool {
	if i >= len(m.underrunOK) {
		return false
	}
	return m.underrunOK[i]
}

func (m *Mixer) Prepare(_ context.Context) error {
	if len(m.Sources()) == 0 {
		return dsperr.New(dsperr.CodeBadParam, "mixer: no sources connected")
	}
	return m.Transition(component.StatePrepared)
}

func (m *Mixer) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return m.Transition(component.StateActive)
	case component.TriggerPause:
		return m.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return m.Transition(component.StateReady)
	case component.TriggerReset:
		return m.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "mixer: unknown trigger command")
	}
}

func (m *Mixer) Copy(_ context.Context) error {
	sinks := m.Sinks()
	sources := m.Sources()
	if len(sinks) != 1 || len(sources) == 0 {
		return dsperr.New(dsperr.CodeBadState, "mixer: requires one sink and at least one source")
	}
	params := m.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "mixer: no negotiated frame format")
	}

	sinkFreeFrames := frameCount(sinks[0].Free(), params)

	availFrames := make([]uint32, len(sources))
	hardMin := uint32(math.MaxUint32)
	haveHard := false
	softMax := uint32(0)
	for i, src := range sources {
		af := frameCount(src.Avail(), params)
		availFrames[i] = af
		if m.underrunPermitted(i) {
			if af > softMax {
				softMax = af
			}
		} else {
			haveHard = true
			if af < hardMin {
				hardMin = af
			}
		}
	}
	frames := softMax
	if haveHard {
		frames = hardMin
	}
	if frames > sinkFreeFrames {
		frames = sinkFreeFrames
	}
	if frames == 0 {
		if sinkFreeFrames == 0 {
			return component.ErrNoSpace
		}
		return component.ErrNoData
	}

	n := frames * fb
	out := sinks[0].GetSinkRegion(n)
	if uint32(len(out.Data)) < n {
		frames = uint32(len(out.Data)) / fb
		n = frames * fb
		if frames == 0 {
			return component.ErrNoSpace
		}
	}
	for i := range out.Data[:n] {
		out.Data[i] = 0
	}

	sampleBytes, _ := params.Format.SampleBytes()
	channels := int(params.Channels)
	for i, src := range sources {
		use := availFrames[i]
		if use > frames {
			use = frames
		}
		if use == 0 {
			continue // stalled source: no contribution, no consume
		}
		want := use * fb
		in := src.GetSourceRegion(want)
		if uint32(len(in.Data)) < want {
			use = uint32(len(in.Data)) / fb
			want = use * fb
		}
		if use == 0 {
			continue
		}
		for f := uint32(0); f < use; f++ {
			for ch := 0; ch < channels; ch++ {
				off := f*fb + uint32(ch)*sampleBytes
				a := readSample(out.Data, off, params.Format)
				b := readSample(in.Data, off, params.Format)
				writeSample(out.Data, off, params.Format, a+b)
			}
		}
		src.Consume(want)
	}
	sinks[0].Produce(n)
	return nil
}

// Reset returns to ready keeping the per-source underrun configuration,
// so an xrun-recovery restart mixes exactly as before.
func (m *Mixer) Reset() error {
	return m.Transition(component.StateReady)
}

func (m *Mixer) Free() error {
	if m.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "mixer: free requires ready state")
	}
	return nil
}
