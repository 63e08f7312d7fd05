package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/srcdesign"
)

// convState is the per-channel running state of one rational-ratio
// multirate stage: a convolution history ring the length of the stage's
// coefficients, plus a decimation phase counter, both carried across
// Copy calls so the stage behaves as one continuous filter rather than
// resetting at every period boundary.
type convState struct {
	hist         []float64
	pos          int
	decimCounter int
}

func newConvState(n int) convState { return convState{hist: make([]float64, n)} }

func (cs *convState) step(coeffs []float64, x float64) float64 {
	cs.hist[cs.pos] = x
	var y float64
	idx := cs.pos
	for _, c := range coeffs {
		y += c * cs.hist[idx]
		idx--
		if idx < 0 {
			idx = len(cs.hist) - 1
		}
	}
	cs.pos = (cs.pos + 1) % len(cs.hist)
	return y
}

// processStage runs in through one zero-stuff/filter/decimate rational
// resampling stage: each input sample is followed by Up-1 inserted
// zeros, the resulting stream is filtered by coeffs, and every Down-th
// filtered sample is kept. Scaling the non-zero sample by Up compensates
// for the energy the zero-stuffing would otherwise lose.
func processStage(stage srcdesign.Stage, cs *convState, in []float64) []float64 {
	if stage.Up == 1 && stage.Down == 1 {
		return in
	}
	out := make([]float64, 0, len(in)*stage.Up/stage.Down+1)
	for _, x := range in {
		for u := 0; u < stage.Up; u++ {
			var sampleIn float64
			if u == 0 {
				sampleIn = x * float64(stage.Up)
			}
			y := cs.step(stage.Coeffs, sampleIn)
			if cs.decimCounter == 0 {
				out = append(out, y)
			}
			cs.decimCounter = (cs.decimCounter + 1) % stage.Down
		}
	}
	return out
}

// SRC is a synchronous sample-rate converter whose stage plan is
// selected once, at Prepare time, from the declared (in_rate, out_rate)
// matrix via internal/srcdesign rather than computed per sample.
type SRC struct {
	component.Base
	Ports

	channels int
	plan     srcdesign.Plan
	stage1   []convState
	stage2   []convState

	totalUp, totalDown int
}

// NewSRC constructs an SRC component; the conversion ratio is derived at
// Prepare time from the negotiated source/sink buffer rates.
func NewSRC(id ids.ComponentID, name string) *SRC {
	s := &SRC{Base: component.NewBase(id, ids.TypeSRC, name)}
	_ = s.Transition(component.StateReady)
	return s
}

// AsymmetricFormat marks the SRC's source and sink edges as legitimately
// carrying different stream shapes, so the pipeline's negotiation walk
// skips its uniform-format consistency check here.
func (s *SRC) AsymmetricFormat() bool { return true }

func (s *SRC) Prepare(_ context.Context) error {
	sources := s.Sources()
	sinks := s.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "src: requires exactly one source and one sink")
	}
	inParams := sources[0].Params()
	outParams := sinks[0].Params()
	if inParams.Channels == 0 || inParams.Channels != outParams.Channels {
		return dsperr.New(dsperr.CodeBadParam, "src: source/sink channel counts must match and be nonzero")
	}
	s.channels = int(inParams.Channels)

	plan, err := srcdesign.Design(int(inParams.Rate), int(outParams.Rate))
	if err != nil {
		return dsperr.Wrap(dsperr.CodeBadParam, "src: no stage plan for requested rate pair", err)
	}
	s.plan = plan
	s.totalUp = plan.Stage1.Up * plan.Stage2.Up
	s.totalDown = plan.Stage1.Down * plan.Stage2.Down

	s.stage1 = make([]convState, s.channels)
	s.stage2 = make([]convState, s.channels)
	for ch := 0; ch < s.channels; ch++ {
		s.stage1[ch] = newConvState(len(plan.Stage1.Coeffs))
		s.stage2[ch] = newConvState(len(plan.Stage2.Coeffs))
	}
	return s.Transition(component.StatePrepared)
}

func (s *SRC) Trigger(cmd component.TriggerCmd) error {
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
		return dsperr.New(dsperr.CodeBadParam, "src: unknown trigger command")
	}
}

// maxInputFrames bounds how many source frames this Copy call drains so
// the resampled output is confident to fit in the sink's currently free
// space, leaving a small margin for rounding in the rational ratio.
func maxInputFrames(avail, sinkFreeFrames uint32, up, down int) uint32 {
	if up == 0 {
		return 0
	}
	bound := sinkFreeFrames * uint32(down) / uint32(up)
	if bound > 1 {
		bound--
	}
	if avail < bound {
		return avail
	}
	return bound
}

func (s *SRC) Copy(_ context.Context) error {
	sources := s.Sources()
	sinks := s.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "src: requires exactly one source and one sink")
	}
	inParams := sources[0].Params()
	outParams := sinks[0].Params()
	inFb, err := inParams.FrameBytes()
	if err != nil || inFb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "src: no negotiated source frame format")
	}
	outFb, err := outParams.FrameBytes()
	if err != nil || outFb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "src: no negotiated sink frame format")
	}

	availFrames := frameCount(sources[0].Avail(), inParams)
	sinkFreeFrames := frameCount(sinks[0].Free(), outParams)
	inFrames := maxInputFrames(availFrames, sinkFreeFrames, s.totalUp, s.totalDown)
	if inFrames == 0 {
		if availFrames == 0 {
			return component.ErrNoData
		}
		return component.ErrNoSpace
	}

	want := inFrames * inFb
	in := sources[0].GetSourceRegion(want)
	if uint32(len(in.Data)) < want {
		inFrames = uint32(len(in.Data)) / inFb
		want = inFrames * inFb
	}
	if inFrames == 0 {
		return component.ErrNoData
	}

	inSampleBytes, _ := inParams.Format.SampleBytes()
	outSampleBytes, _ := outParams.Format.SampleBytes()

	chanSamples := make([][]float64, s.channels)
	for ch := 0; ch < s.channels; ch++ {
		chanSamples[ch] = make([]float64, inFrames)
		for f := uint32(0); f < inFrames; f++ {
			off := f*inFb + uint32(ch)*inSampleBytes
			chanSamples[ch][f] = float64(readSample(in.Data, off, inParams.Format))
		}
	}

	outChan := make([][]float64, s.channels)
	outFrames := 0
	for ch := 0; ch < s.channels; ch++ {
		mid := processStage(s.plan.Stage1, &s.stage1[ch], chanSamples[ch])
		outChan[ch] = processStage(s.plan.Stage2, &s.stage2[ch], mid)
		if len(outChan[ch]) > outFrames {
			outFrames = len(outChan[ch])
		}
	}

	outWant := uint32(outFrames) * outFb
	out := sinks[0].GetSinkRegion(outWant)
	actualFrames := uint32(len(out.Data)) / outFb
	if actualFrames < uint32(outFrames) {
		outFrames = int(actualFrames)
	}
	for ch := 0; ch < s.channels; ch++ {
		for f := 0; f < outFrames && f < len(outChan[ch]); f++ {
			off := uint32(f)*outFb + uint32(ch)*outSampleBytes
			writeSample(out.Data, off, outParams.Format, int64(outChan[ch][f]))
		}
	}

	sources[0].Consume(want)
	sinks[0].Produce(uint32(outFrames) * outFb)
	return nil
}

func (s *SRC) Reset() error {
	for ch := range s.stage1 {
		s.stage1[ch] = newConvState(len(s.stage1[ch].hist))
	}
	for ch := range s.stage2 {
		s.stage2[ch] = newConvState(len(s.stage2[ch].hist))
	}
	return s.Transition(component.StateReady)
}

func (s *SRC) Free() error {
	if s.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "src: free requires ready state")
	}
	return nil
}
