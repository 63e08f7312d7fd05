package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// defaultDCBlockR is the pole position used when no configuration blob
// supplies one. Its -3 dB corner sits near 0.00315 x the sample rate:
// about 25 Hz at 8 kHz and about 151 Hz at 48 kHz.
const defaultDCBlockR = 0.98

// DCBlock is a first-order recursive
// high-pass, y[n] = x[n] - x[n-1] + R*y[n-1], run independently per
// channel to strip the DC offset cheap microphone paths accumulate
// before it reaches gain staging or a detector.
type DCBlock struct {
	component.Base
	Ports

	r     float64
	prevX []int64 // per-channel x[n-1]
	prevY []int64 // per-channel y[n-1]
}

// NewDCBlock constructs a DC blocker with the default pole position.
func NewDCBlock(id ids.ComponentID, name string) *DCBlock {
	d := &DCBlock{Base: component.NewBase(id, ids.TypeDCBlock, name), r: defaultDCBlockR}
	_ = d.Transition(component.StateReady)
	return d
}

// SetR moves the filter pole; valid range is (0, 1).
func (d *DCBlock) SetR(r float64) error {
	if r <= 0 || r >= 1 {
		return dsperr.New(dsperr.CodeBadParam, "dcblock: pole must be in (0, 1)")
	}
	d.r = r
	return nil
}

func (d *DCBlock) Prepare(_ context.Context) error {
	if len(d.Sources()) != 1 || len(d.Sinks()) != 1 {
		return dsperr.New(dsperr.CodeBadState, "dcblock: requires exactly one source and one sink")
	}
	ch := int(d.CurrentParams().Channels)
	if ch == 0 {
		return dsperr.New(dsperr.CodeBadParam, "dcblock: prepare with zero channels negotiated")
	}
	d.prevX = make([]int64, ch)
	d.prevY = make([]int64, ch)
	return d.Transition(component.StatePrepared)
}

func (d *DCBlock) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return d.Transition(component.StateActive)
	case component.TriggerPause:
		return d.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return d.Transition(component.StateReady)
	case component.TriggerReset:
		return d.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "dcblock: unknown trigger command")
	}
}

func (d *DCBlock) Copy(_ context.Context) error {
	sources := d.Sources()
	sinks := d.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "dcblock: requires exactly one source and one sink")
	}
	src, sink := sources[0], sinks[0]
	params := d.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "dcblock: no negotiated frame format")
	}

	frames := frameCount(src.Avail(), params)
	if ff := frameCount(sink.Free(), params); ff < frames {
		frames = ff
	}
	if frames == 0 {
		if frameCount(sink.Free(), params) == 0 {
			return component.ErrNoSpace
		}
		return component.ErrNoData
	}

	n := frames * fb
	in := src.GetSourceRegion(n)
	if uint32(len(in.Data)) < n {
		frames = uint32(len(in.Data)) / fb
		n = frames * fb
	}
	out := sink.GetSinkRegion(n)
	if uint32(len(out.Data)) < n {
		frames = uint32(len(out.Data)) / fb
		n = frames * fb
	}
	if frames == 0 {
		return component.ErrNoData
	}

	sb, _ := params.Format.SampleBytes()
	channels := int(params.Channels)
	if len(d.prevX) < channels {
		d.prevX = make([]int64, channels)
		d.prevY = make([]int64, channels)
	}
	for f := uint32(0); f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := f*fb + uint32(ch)*sb
			x := readSample(in.Data, off, params.Format)
			y := x - d.prevX[ch] + int64(d.r*float64(d.prevY[ch]))
			d.prevX[ch] = x
			d.prevY[ch] = y
			writeSample(out.Data, off, params.Format, y)
		}
	}

	src.Consume(n)
	sink.Produce(n)
	return nil
}

func (d *DCBlock) Reset() error {
	d.prevX = nil
	d.prevY = nil
	return d.Transition(component.StateReady)
}

func (d *DCBlock) Free() error {
	if d.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "dcblock: free requires ready state")
	}
	return nil
}
