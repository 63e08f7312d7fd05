package components

import (
	"context"
	"sync"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Direction mirrors dai.Direction without introducing an import cycle
// between components and dai; the two enums are kept deliberately
// identical in ordinal value so Copier can translate trivially.
type Direction int

const (
	DirectionPlayback Direction = iota
	DirectionCapture
)

// Host is the host-endpoint component: the pipeline endpoint that
// drains the host-facing mailbox buffer into the first
// interior buffer (playback) or drains the last interior buffer back to
// the mailbox (capture). The mailbox side is a plain byte staging ring
// this type exposes via WriteHost/ReadHost so internal/ipc's PCM data
// path and tests can feed or collect audio without reaching into the
// pipeline's interior buffers directly.
type Host struct {
	component.Base
	Ports

	dir Direction

	mu          sync.Mutex
	staging     []byte // ring content, simplest FIFO: a growable byte slice
	periodBytes uint32
}

// NewHost constructs a host endpoint component for the given direction.
func NewHost(id ids.ComponentID, name string, dir Direction) *Host {
	h := &Host{
		Base: component.NewBase(id, ids.TypeHost, name),
		dir:  dir,
	}
	_ = h.Transition(component.StateReady)
	return h
}

// SetPeriodFrames is consulted by the pipeline during Prepare to set how
// many bytes each Copy moves: one period's worth. The staging ring is a
// growable slice and is not sized by it.
func (h *Host) SetPeriodFrames(frames uint32) {
	fb, err := h.CurrentParams().FrameBytes()
	if err != nil {
		return
	}
	h.periodBytes = frames * fb
}

// WriteHost appends host-originated audio data (playback direction) to
// the staging ring, for the IPC PCM data path to call.
func (h *Host) WriteHost(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.staging = append(h.staging, data...)
}

// ReadHost drains up to len(out) bytes of staged capture audio for the
// host to collect. Returns the number of bytes actually copied.
func (h *Host) ReadHost(out []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := copy(out, h.staging)
	h.staging = h.staging[n:]
	return n
}

// Pending reports how many bytes are currently staged, for tests and
// xrun diagnosis.
func (h *Host) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.staging)
}

func (h *Host) Params(p audioformat.Params) error {
	if h.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "host: params only valid in ready state")
	}
	return h.Base.Params(p)
}

func (h *Host) Prepare(_ context.Context) error {
	return h.Transition(component.StatePrepared)
}

func (h *Host) Trigger(cmd component.TriggerCmd) error {
	switch cmd {
	case component.TriggerStart, component.TriggerRelease:
		return h.Transition(component.StateActive)
	case component.TriggerPause:
		return h.Transition(component.StatePaused)
	case component.TriggerStop, component.TriggerXrun:
		return h.Transition(component.StateReady)
	case component.TriggerReset:
		return h.Reset()
	default:
		return dsperr.New(dsperr.CodeBadParam, "host: unknown trigger command")
	}
}

// Copy moves one period's worth of bytes between the staging ring and
// the connected pipeline buffer: for playback, staged host data is
// written into the sink buffer; for capture, the source buffer's
// contents are drained into the staging ring for the host to collect.
func (h *Host) Copy(_ context.Context) error {
	switch h.dir {
	case DirectionPlayback:
		sinks := h.Sinks()
		if len(sinks) == 0 {
			return dsperr.New(dsperr.CodeBadState, "host: playback copy with no sink connected")
		}
		want := h.periodBytes
		h.mu.Lock()
		if uint32(len(h.staging)) < want {
			want = uint32(len(h.staging))
		}
		chunk := h.staging[:want]
		h.staging = h.staging[want:]
		h.mu.Unlock()
		if want == 0 {
			return component.ErrNoData
		}
		_, err := sinks[0].Write(chunk)
		return err
	case DirectionCapture:
		sources := h.Sources()
		if len(sources) == 0 {
			return dsperr.New(dsperr.CodeBadState, "host: capture copy with no source connected")
		}
		if h.periodBytes == 0 {
			return component.ErrNoData
		}
		out := make([]byte, h.periodBytes)
		n, err := sources[0].Read(out)
		if err != nil {
			return err
		}
		if n == 0 {
			return component.ErrNoData
		}
		h.mu.Lock()
		h.staging = append(h.staging, out[:n]...)
		h.mu.Unlock()
		return nil
	default:
		return dsperr.New(dsperr.CodeBadParam, "host: unknown direction")
	}
}

func (h *Host) Reset() error {
	h.mu.Lock()
	h.staging = nil
	h.mu.Unlock()
	return h.Transition(component.StateReady)
}

func (h *Host) Free() error {
	if h.State() != component.StateReady {
		return dsperr.New(dsperr.CodeBadState, "host: free requires ready state")
	}
	return nil
}
