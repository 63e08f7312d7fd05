package components

import (
	"context"

	"github.com/jangala-audio/dspcore/internal/buffer"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// defaultKPBHistoryMs sizes the history ring when no configuration blob
// supplies a duration: two seconds covers the longest supported wake
// phrase plus the detector's own latency.
const defaultKPBHistoryMs = 2000

// KPB is the key-phrase buffer: a pass-through on the capture path
// that additionally records the most recent history window of audio into
// an internal ring. While a keyword detector chews on the live stream,
// the audio that carried the phrase is already gone from the pipeline
// buffers — so when the host reacts to a phrase_detected notification it
// asks the KPB to drain, and Copy then replays the buffered history into
// the sink ahead of the live feed, giving the host the phrase itself and
// not just what followed it.
type KPB struct {
	component.Base
	Ports

	historyMs uint32

	hist     []byte // circular history ring, sized at Prepare
	histPos  uint32 // next write offset into hist
	histFill uint32 // bytes of valid history, grows to len(hist) and stays

	draining  bool
	drainPos  uint32 // read offset into the unrolled history while draining
	drainLeft uint32
}

// NewKPB constructs a key-phrase buffer with the default history window.
func NewKPB(id ids.ComponentID, name string) *KPB {
	k := &KPB{Base: component.NewBase(id, ids.TypeKPB, name), historyMs: defaultKPBHistoryMs}
	_ = k.Transition(component.StateReady)
	return k
}

// SetHistoryMs resizes the history window; takes effect at next Prepare.
func (k *KPB) SetHistoryMs(ms uint32) error {
	if ms == 0 {
		return dsperr.New(dsperr.CodeBadParam, "kpb: history window must be non-zero")
	}
	k.historyMs = ms
	return nil
}

// StartDraining switches Copy into replay mode: buffered history is
// produced into the sink ahead of live data until the ring is empty.
// Called by the host (via set_config) after a phrase_detected
// notification.
func (k *KPB) StartDraining() {
	if k.histFill == 0 {
		return
	}
	k.draining = true
	k.drainLeft = k.histFill
	// oldest byte first: the ring's write position is also where the
	// oldest data starts once the ring has wrapped.
	if k.histFill == uint32(len(k.hist)) {
		k.drainPos = k.histPos
	} else {
		k.drainPos = 0
	}
}

// Draining reports whether a history replay is in progress.
func (k *KPB) Draining() bool { return k.draining }

func (k *KPB) Prepare(_ context.Context) error {
	if len(k.Sources()) != 1 || len(k.Sinks()) != 1 {
		return dsperr.New(dsperr.CodeBadState, "kpb: requires exactly one source and one sink")
	}
	params := k.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 || params.Rate == 0 {
		return dsperr.New(dsperr.CodeBadParam, "kpb: prepare without negotiated stream shape")
	}
	frames := uint64(params.Rate) * uint64(k.historyMs) / 1000
	size := uint32(frames) * fb
	if size == 0 {
		return dsperr.New(dsperr.CodeBadParam, "kpb: history window rounds to zero bytes")
	}
	k.hist = make([]byte, size)
	k.histPos = 0
	k.histFill = 0
	k.draining = false
	return k.Transition(component.StatePrepared)
}

func (k *KPB) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return k.Transition(component.StateActive)
	case component.TriggerPause:
		return k.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return k.Transition(component.StateReady)
	case component.TriggerReset:
		return k.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "kpb: unknown trigger command")
	}
}

// record appends data to the history ring, overwriting the oldest bytes
// once the window is full.
func (k *KPB) record(data []byte) {
	size := uint32(len(k.hist))
	if size == 0 {
		return
	}
	for len(data) > 0 {
		n := copy(k.hist[k.histPos:], data)
		data = data[n:]
		k.histPos = (k.histPos + uint32(n)) % size
		k.histFill += uint32(n)
		if k.histFill > size {
			k.histFill = size
		}
	}
}

// drain produces up to want bytes of buffered history into sink,
// returning how many it wrote. Replay ends when the recorded window is
// exhausted.
func (k *KPB) drain(sink *buffer.Buffer, want uint32) uint32 {
	size := uint32(len(k.hist))
	written := uint32(0)
	for written < want && k.drainLeft > 0 {
		out := sink.GetSinkRegion(want - written)
		if len(out.Data) == 0 {
			break
		}
		n := uint32(len(out.Data))
		if n > k.drainLeft {
			n = k.drainLeft
		}
		for i := uint32(0); i < n; i++ {
			out.Data[i] = k.hist[(k.drainPos+i)%size]
		}
		sink.Produce(n)
		k.drainPos = (k.drainPos + n) % size
		k.drainLeft -= n
		written += n
	}
	if k.drainLeft == 0 {
		k.draining = false
	}
	return written
}

func (k *KPB) Copy(_ context.Context) error {
	sources := k.Sources()
	sinks := k.Sinks()
	if len(sources) != 1 || len(sinks) != 1 {
		return dsperr.New(dsperr.CodeBadState, "kpb: requires exactly one source and one sink")
	}
	src, sink := sources[0], sinks[0]
	params := k.CurrentParams()
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return dsperr.New(dsperr.CodeBadParam, "kpb: no negotiated frame format")
	}

	if k.draining {
		// history replay takes the whole period; live data keeps
		// accumulating upstream and is passed through next tick.
		want := sink.Free()
		if want == 0 {
			return component.ErrNoSpace
		}
		k.drain(sink, want)
		return nil
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
		n = uint32(len(in.Data)) / fb * fb
	}
	if n == 0 {
		return component.ErrNoData
	}

	k.record(in.Data[:n])

	written := uint32(0)
	for written < n {
		out := sink.GetSinkRegion(n - written)
		if len(out.Data) == 0 {
			break
		}
		m := copy(out.Data, in.Data[written:n])
		sink.Produce(uint32(m))
		written += uint32(m)
	}
	src.Consume(written)
	return nil
}

func (k *KPB) Reset() error {
	k.hist = nil
	k.histPos = 0
	k.histFill = 0
	k.draining = false
	return k.Transition(component.StateReady)
}

func (k *KPB) Free() error {
	if k.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "kpb: free requires ready state")
	}
	return nil
}
