package dai

import (
	"context"
	"sync"
)

// Loopback is an in-memory Transport that feeds playback data straight
// back out as capture data, standing in for physical SSP/DMIC hardware
// in the simulated multi-core runtime. It tracks a monotonic frame
// counter as its LLP so pipeline scenario tests can assert forward
// progress without real silicon.
type Loopback struct {
	mu     sync.Mutex
	hw     HWParams
	queue  [][]byte
	frames uint64
}

// NewLoopback returns a Loopback transport with no configured params.
func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Configure(_ context.Context, hw HWParams) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hw = hw
	return nil
}

func (l *Loopback) Trigger(_ context.Context, _ TransportCmd) error {
	return nil
}

func (l *Loopback) Push(_ context.Context, frames []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := make([]byte, len(frames))
	copy(buf, frames)
	l.queue = append(l.queue, buf)
	fb, err := l.hw.FrameBytes()
	if err == nil && fb > 0 {
		l.frames += uint64(uint32(len(frames)) / fb)
	}
	return nil
}

func (l *Loopback) Pull(_ context.Context, out []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return 0, nil
	}
	buf := l.queue[0]
	l.queue = l.queue[1:]
	n := copy(out, buf)
	fb, err := l.hw.FrameBytes()
	if err == nil && fb > 0 {
		l.frames += uint64(uint32(n) / fb)
	}
	return n, nil
}

func (l *Loopback) LLP() (high, low uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint32(l.frames >> 32), uint32(l.frames)
}
