package components

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

// RampShape selects the gain-ramping behavior for Volume: a straight linear ramp, a perceptual log ramp, a hybrid that
// only log-ramps around the zero crossing, or a fixed-duration Windows-
// style fade.
type RampShape int

const (
	RampLinear RampShape = iota
	RampLog
	RampLinearLogZeroCross
	RampWindowsFade
)

// qShift is the fractional bit count of the Q8.16 gain representation
// this component uses internally (Q1.23 is the common alternative;
// Q8.16 gives more integer headroom for gains above unity, which
// is the more common tuning case, so it is the default here).
const qShift = 16

// unityGain is 1.0 in Q8.16.
const unityGain = int64(1) << qShift

// Volume applies per-channel gain sample-wise with saturating
// accumulation, gain ramped toward a target
// over RampSamples samples in the shape RampShape, plus a per-channel
// peak meter updated once per Copy call.
type Volume struct {
	component.Base
	Ports

	channels    int
	targetGain  []int64 // Q8.16 per channel
	currentGain []int64 // Q8.16 per channel, ramps toward targetGain
	rampShape   RampShape
	rampSamples int64
	peak        []int64 // per-channel peak, same fixed-point scale as samples

	pending []pendingGain // config blob gains arriving before channel count is known
}

// pendingGain is one Configure-supplied gain request, held until Prepare
// has negotiated the channel count and allocated the per-channel slices
// SetGain requires.
type pendingGain struct {
	ch          int
	linear      float64
	shape       RampShape
	rampSamples int64
}

// NewVolume constructs a volume component with unity gain on every
// channel and no ramp in progress.
func NewVolume(id ids.ComponentID, name string) *Volume {
	v := &Volume{
		Base:      component.NewBase(id, ids.TypeVolume, name),
		rampShape: RampLinear,
	}
	_ = v.Transition(component.StateReady)
	return v
}

// SetGain sets channel ch's target gain as a linear multiplier (1.0 =
// unity) and begins ramping toward it over rampSamples samples; a
// rampSamples of zero applies the gain immediately, matching the "start
// of stream" / "test fixture" case.
func (v *Volume) SetGain(ch int, linear float64, shape RampShape, rampSamples int64) error {
	if ch < 0 || ch >= len(v.targetGain) {
		return dsperr.New(dsperr.CodeBadParam, "volume: channel index out of range")
	}
	v.targetGain[ch] = int64(linear * float64(unityGain))
	v.rampShape = shape
	v.rampSamples = rampSamples
	if rampSamples <= 0 {
		v.currentGain[ch] = v.targetGain[ch]
	}
	return nil
}

// Configure decodes a TLV configuration blob into per-channel gain
// requests, per the token ids in internal/components/tokens.go. Since the channel count isn't known
// until Prepare negotiates stream params, gains are queued and applied
// once Prepare allocates the per-channel slices — calling Configure
// again before Prepare replaces the queue rather than appending to it.
func (v *Volume) Configure(blob []byte) error {
	var pending []pendingGain
	shape := RampLinear
	rampSamples := int64(0)
	if err := tlv.Walk(blob, func(t tlv.Token) error {
		switch t.ID {
		case TokenVolumeGainQ16:
			if len(t.Value) != 8 {
				return dsperr.New(dsperr.CodeBadParam, "volume: malformed gain token")
			}
			ch := int(binary.LittleEndian.Uint32(t.Value[0:4]))
			gainQ16 := int32(binary.LittleEndian.Uint32(t.Value[4:8]))
			pending = append(pending, pendingGain{ch: ch, linear: float64(gainQ16) / float64(unityGain)})
		case TokenVolumeRampShape:
			v32, err := tlv.Uint32At(t)
			if err != nil {
				return err
			}
			shape = RampShape(v32)
		case TokenVolumeRampSamples:
			if len(t.Value) != 8 {
				return dsperr.New(dsperr.CodeBadParam, "volume: malformed ramp-samples token")
			}
			rampSamples = int64(binary.LittleEndian.Uint64(t.Value))
		}
		return nil
	}); err != nil {
		return err
	}
	for i := range pending {
		pending[i].shape = shape
		pending[i].rampSamples = rampSamples
	}
	v.pending = pending
	if v.channels > 0 {
		return v.applyPending()
	}
	return nil
}

func (v *Volume) applyPending() error {
	for _, p := range v.pending {
		if err := v.SetGain(p.ch, p.linear, p.shape, p.rampSamples); err != nil {
			return err
		}
	}
	return nil
}

// Peak returns the most recent per-channel peak sample magnitude.
func (v *Volume) Peak() []int64 {
	out := make([]int64, len(v.peak))
	copy(out, v.peak)
	return out
}

func (v *Volume) Prepare(_ context.Context) error {
	v.channels = int(v.CurrentParams().Channels)
	if v.channels <= 0 {
		return dsperr.New(dsperr.CodeBadParam, "volume: prepare with zero channels negotiated")
	}
	if len(v.targetGain) != v.channels {
		v.targetGain = make([]int64, v.channels)
		v.currentGain = make([]int64, v.channels)
		v.peak = make([]int64, v.channels)
		for i := range v.targetGain {
			v.targetGain[i] = unityGain
			v.currentGain[i] = unityGain
		}
	}
	if err := v.applyPending(); err != nil {
		return err
	}
	return v.Transition(component.StatePrepared)
}

func (v *Volume) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return v.Transition(component.StateActive)
	case component.TriggerPause:
		return v.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return v.Transition(component.StateReady)
	case component.TriggerReset:
		return v.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "volume: unknown trigger command")
	}
}

func (v *Volume) Copy(_ context.Context) error {
	sources := v.Sources()
	sinks := v.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "volume: requires exactly one source and one sink")
	}
	params := v.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "volume: no negotiated frame format")
	}

	avail := sources[0].Avail()
	free := sinks[0].Free()
	frames := frameCount(avail, params)
	if wantFrames := frameCount(free, params); wantFrames < frames {
		frames = wantFrames
	}
	if frames == 0 {
		if avail < fb {
			return component.ErrNoData
		}
		return component.ErrNoSpace
	}

	n := frames * fb
	in := sources[0].GetSourceRegion(n)
	if uint32(len(in.Data)) < n {
		n = uint32(len(in.Data)) / fb * fb
		frames = n / fb
	}
	if frames == 0 {
		return component.ErrNoData
	}
	out := sinks[0].GetSinkRegion(n)
	if uint32(len(out.Data)) < n {
		n = uint32(len(out.Data)) / fb * fb
		frames = n / fb
		if frames == 0 {
			return component.ErrNoSpace
		}
	}

	sampleBytes, _ := params.Format.SampleBytes()
	for f := uint32(0); f < frames; f++ {
		for ch := 0; ch < v.channels; ch++ {
			off := f*fb + uint32(ch)*sampleBytes
			v.stepRamp(ch)
			sample := readSample(in.Data, off, params.Format)
			scaled := (sample * v.currentGain[ch]) >> qShift
			mag := scaled
			if mag < 0 {
				mag = -mag
			}
			if mag > v.peak[ch] {
				v.peak[ch] = mag
			}
			writeSample(out.Data, off, params.Format, scaled)
		}
	}

	sources[0].Consume(n)
	sinks[0].Produce(n)
	return nil
}

// stepRamp advances channel ch's current gain one sample closer to its
// target, per the configured ramp shape. Linear steps by a fixed delta;
// log and the zero-cross hybrid step multiplicatively in the log domain
// for a perceptually even fade; Windows fade is a fixed-duration linear
// ramp regardless of distance.
func (v *Volume) stepRamp(ch int) {
	cur, target := v.currentGain[ch], v.targetGain[ch]
	if cur == target || v.rampSamples <= 0 {
		return
	}
	switch v.rampShape {
	case RampLog, RampLinearLogZeroCross:
		ratio := math.Pow(float64(target)/float64(max64(cur, 1)), 1.0/float64(v.rampSamples))
		next := int64(float64(cur) * ratio)
		if (target > cur && next > target) || (target < cur && next < target) {
			next = target
		}
		v.currentGain[ch] = next
	default: // RampLinear, RampWindowsFade
		delta := (target - cur) / v.rampSamples
		if delta == 0 {
			if target > cur {
				delta = 1
			} else {
				delta = -1
			}
		}
		next := cur + delta
		if (target > cur && next > target) || (target < cur && next < target) {
			next = target
		}
		v.currentGain[ch] = next
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (v *Volume) Reset() error {
	for i := range v.currentGain {
		v.currentGain[i] = v.targetGain[i]
	}
	return v.Transition(component.StateReady)
}

func (v *Volume) Free() error {
	if v.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "volume: free requires ready state")
	}
	return nil
}
