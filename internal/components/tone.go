package components

import (
	"context"
	"math"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Tone is a source-only sine generator used both as a standalone
// signal path and as a test
// fixture. It has no source ports; Copy always succeeds once Prepare has
// negotiated a sink format, producing exactly one period's worth of
// samples per call.
type Tone struct {
	component.Base
	Ports

	freqHz      float64
	amplitude   float64 // 0..1 linear
	phase       float64 // radians, wraps at 2*pi
	periodBytes uint32
}

// NewTone constructs a tone generator at freqHz with amplitude (0..1
// linear, 1.0 = full scale).
func NewTone(id ids.ComponentID, name string, freqHz, amplitude float64) *Tone {
	t := &Tone{
		Base:      component.NewBase(id, ids.TypeTone, name),
		freqHz:    freqHz,
		amplitude: amplitude,
	}
	_ = t.Transition(component.StateReady)
	return t
}

// SetFrequency retunes the generator; takes effect on the next Copy.
func (t *Tone) SetFrequency(freqHz float64) { t.freqHz = freqHz }

// SetAmplitude rescales the generator's output; takes effect on the next Copy.
func (t *Tone) SetAmplitude(amplitude float64) { t.amplitude = amplitude }

func (t *Tone) SetPeriodFrames(frames uint32) {
	fb, err := t.CurrentParams().FrameBytes()
	if err != nil {
		return
	}
	t.periodBytes = frames * fb
}

func (t *Tone) Prepare(_ context.Context) error {
	if t.CurrentParams().Channels == 0 {
		return dsperr.New(dsperr.CodeBadParam, "tone: prepare with zero channels negotiated")
	}
	return t.Transition(component.StatePrepared)
}

func (t *Tone) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return t.Transition(component.StateActive)
	case component.TriggerPause:
		return t.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return t.Transition(component.StateReady)
	case component.TriggerReset:
		return t.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "tone: unknown trigger command")
	}
}

func (t *Tone) Copy(_ context.Context) error {
	sinks := t.Sinks()
	if len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "tone: requires exactly one sink")
	}
	params := t.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "tone: no negotiated frame format")
	}
	want := t.periodBytes
	free := sinks[0].Free()
	if want == 0 || want > free {
		want = free / fb * fb
	}
	if want == 0 {
		return component.ErrNoSpace
	}
	out := sinks[0].GetSinkRegion(want)
	if uint32(len(out.Data)) < want {
		want = uint32(len(out.Data)) / fb * fb
	}
	frames := want / fb
	if frames == 0 {
		return component.ErrNoSpace
	}

	scale := fullScale(params.Format)
	sampleBytes, _ := params.Format.SampleBytes()
	channels := int(params.Channels)
	step := 2 * math.Pi * t.freqHz / float64(params.Rate)
	for f := uint32(0); f < frames; f++ {
		v := int64(t.amplitude * scale * math.Sin(t.phase))
		for ch := 0; ch < channels; ch++ {
			off := f*fb + uint32(ch)*sampleBytes
			writeSample(out.Data, off, params.Format, v)
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	sinks[0].Produce(frames * fb)
	return nil
}

// fullScale returns the fixed-point scale writeSample/readSample use for
// the given format, so amplitude-normalized generators can target it
// without duplicating the format's bit width.
func fullScale(format audioformat.Format) float64 {
	switch format {
	case audioformat.FormatS16LE:
		return float64(int64(1)<<15 - 1)
	case audioformat.FormatS24LE:
		return float64(int64(1)<<23 - 1)
	case audioformat.FormatS32LE:
		return float64(int64(1)<<31 - 1)
	case audioformat.FormatFloatLE:
		return float64(int64(1) << 23)
	default:
		return 1
	}
}

func (t *Tone) Reset() error {
	t.phase = 0
	return t.Transition(component.StateReady)
}

func (t *Tone) Free() error {
	if t.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "tone: free requires ready state")
	}
	return nil
}
