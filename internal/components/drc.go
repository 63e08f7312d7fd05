package components

import (
	"context"
	"math"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// DRCConfig holds the tunables of a dynamic range compressor, matching
// the usual parameter set: a threshold/ratio/knee static
// curve, attack/release envelope time constants, and a lookahead window
// that delays the signal path so the envelope follower can react to a
// transient before it is written out.
type DRCConfig struct {
	ThresholdDB  float64
	RatioToOne   float64
	KneeWidthDB  float64
	AttackMs     float64
	ReleaseMs    float64
	LookaheadMs  float64
	MakeupGainDB float64
}

// maxLookaheadFrames bounds the per-channel pre-delay buffer Prepare
// allocates; a longer lookahead is rejected with bad_param. Prepare
// allocates fresh delay lines on every call.
const maxLookaheadFrames = 4096

// DRC is a feed-forward dynamic range compressor with a
// soft-knee gain curve, one-pole attack/release envelope smoothing per
// channel, and a lookahead delay line so the gain reduction anticipates
// the peak it is compressing rather than chasing it.
type DRC struct {
	component.Base
	Ports

	cfg      DRCConfig
	channels int
	rate     uint32

	envelope []float64 // per-channel envelope state, linear
	delay    [][]float64
	delayPos []int
	delayLen int

	attackCoeff, releaseCoeff float64
}

// NewDRC constructs a compressor with cfg's static curve and time
// constants; call Prepare once the pipeline format is negotiated to size
// the lookahead buffer.
func NewDRC(id ids.ComponentID, name string, cfg DRCConfig) *DRC {
	d := &DRC{Base: component.NewBase(id, ids.TypeDRC, name), cfg: cfg}
	_ = d.Transition(component.StateReady)
	return d
}

// SetConfig updates the compressor curve and timing in place; takes
// effect on the next Copy, no state reset required.
func (d *DRC) SetConfig(cfg DRCConfig) { d.cfg = cfg }

func (d *DRC) Prepare(_ context.Context) error {
	params := d.CurrentParams()
	d.channels = int(params.Channels)
	d.rate = params.Rate
	if d.channels <= 0 || d.rate == 0 {
		return dsperr.New(dsperr.CodeBadParam, "drc: prepare with no negotiated rate/channels")
	}

	d.delayLen = int(d.cfg.LookaheadMs * float64(d.rate) / 1000.0)
	if d.delayLen > maxLookaheadFrames {
		return dsperr.New(dsperr.CodeBadParam, "drc: lookahead exceeds configured maximum")
	}
	if d.delayLen < 1 {
		d.delayLen = 1
	}

	d.envelope = make([]float64, d.channels)
	d.delay = make([][]float64, d.channels)
	d.delayPos = make([]int, d.channels)
	for ch := range d.delay {
		d.delay[ch] = make([]float64, d.delayLen)
	}

	d.attackCoeff = timeConstant(d.cfg.AttackMs, d.rate)
	d.releaseCoeff = timeConstant(d.cfg.ReleaseMs, d.rate)
	return d.Transition(component.StatePrepared)
}

// timeConstant converts a millisecond time constant into a one-pole
// smoothing coefficient at the given sample rate.
func timeConstant(ms float64, rate uint32) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (ms / 1000.0 * float64(rate)))
}

func (d *DRC) Trigger(cmd component.TriggerCmd) error {
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
		return dsperr.New(dsperr.CodeBadParam, "drc: unknown trigger command")
	}
}

func (d *DRC) Copy(_ context.Context) error {
	sources := d.Sources()
	sinks := d.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "drc: requires exactly one source and one sink")
	}
	params := d.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "drc: no negotiated frame format")
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

	scale := fullScale(params.Format)
	sampleBytes, _ := params.Format.SampleBytes()
	makeup := math.Pow(10, d.cfg.MakeupGainDB/20.0)
	for f := uint32(0); f < frames; f++ {
		for ch := 0; ch < d.channels; ch++ {
			off := f*fb + uint32(ch)*sampleBytes
			x := float64(readSample(in.Data, off, params.Format)) / scale

			delayed := d.pushDelay(ch, x)

			mag := math.Abs(x)
			coeff := d.releaseCoeff
			if mag > d.envelope[ch] {
				coeff = d.attackCoeff
			}
			d.envelope[ch] = coeff*d.envelope[ch] + (1-coeff)*mag

			gain := d.gainFor(d.envelope[ch]) * makeup
			y := delayed * gain * scale
			writeSample(out.Data, off, params.Format, int64(y))
		}
	}

	sources[0].Consume(n)
	sinks[0].Produce(n)
	return nil
}

// pushDelay writes x into channel ch's lookahead ring and returns the
// sample that has aged through the full delay length.
func (d *DRC) pushDelay(ch int, x float64) float64 {
	ring := d.delay[ch]
	pos := d.delayPos[ch]
	out := ring[pos]
	ring[pos] = x
	d.delayPos[ch] = (pos + 1) % len(ring)
	return out
}

// gainFor evaluates the soft-knee compression curve at envelope level
// env (linear 0..1) and returns a linear gain multiplier.
func (d *DRC) gainFor(env float64) float64 {
	if env <= 0 {
		return 1
	}
	levelDB := 20 * math.Log10(env)
	knee := d.cfg.KneeWidthDB
	thresh := d.cfg.ThresholdDB
	ratio := d.cfg.RatioToOne
	if ratio <= 0 {
		ratio = 1
	}

	var gainDB float64
	switch {
	case levelDB < thresh-knee/2:
		gainDB = 0
	case levelDB > thresh+knee/2:
		gainDB = (thresh + (levelDB-thresh)/ratio) - levelDB
	default:
		// soft knee: smooth quadratic interpolation across the knee width
		x := levelDB - thresh + knee/2
		gainDB = ((1/ratio - 1) * x * x / (2 * knee))
	}
	return math.Pow(10, gainDB/20.0)
}

func (d *DRC) Reset() error {
	for ch := range d.envelope {
		d.envelope[ch] = 0
		for i := range d.delay[ch] {
			d.delay[ch][i] = 0
		}
		d.delayPos[ch] = 0
	}
	return d.Transition(component.StateReady)
}

func (d *DRC) Free() error {
	if d.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "drc: free requires ready state")
	}
	return nil
}
