// Package dai implements the DAI gateway abstraction: a
// component-facing handle over a physical transport (SSP/DMIC/etc, or a
// loopback for tests), with claim/release lifecycle, hardware params
// negotiation, and an atomic LLP (Link Linear Position) reporting slot.
//
package dai

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/dsperr"
	"github.com/jangala-audio/dspcore/internal/ids"
)

// Direction is the data flow direction of a DAI binding.
type Direction int

const (
	DirectionPlayback Direction = iota
	DirectionCapture
)

func (d Direction) String() string {
	if d == DirectionCapture {
		return "capture"
	}
	return "playback"
}

// HWParams describes the negotiated hardware configuration of a binding.
type HWParams struct {
	audioformat.Params
	PeriodFrames uint32
	Periods      uint32
}

// Transport is the physical/DMA-facing side of a DAI binding. A real
// port implements this against SSP/DMIC register blocks and a DMA
// engine; Loopback (loopback.go) implements it purely in memory for
// simulation and tests.
type Transport interface {
	// Configure applies hw params before first trigger.
	Configure(ctx context.Context, hw HWParams) error
	// Trigger starts, stops, pauses, or resumes the transport.
	Trigger(ctx context.Context, cmd TransportCmd) error
	// Push writes one period of frames out (playback).
	Push(ctx context.Context, frames []byte) error
	// Pull reads one period of frames in (capture).
	Pull(ctx context.Context, frames []byte) (int, error)
	// LLP returns the transport's current link linear position pair,
	// as raw (high, low) 32-bit halves. The writer updates the low
	// half last, so a reader noticing the high half change knows to
	// re-read.
	LLP() (high, low uint32)
}

// TransportCmd mirrors component.TriggerCmd for the transport boundary,
// kept as a separate type so a Transport implementation never needs to
// import the component package.
type TransportCmd int

const (
	TransportStart TransportCmd = iota
	TransportStop
	TransportPause
)

// Binding is one claimed DAI instance bound into a pipeline.
type Binding struct {
	ID        ids.DAIBindingID
	Type      string
	Index     int
	Direction Direction
	FIFODepth int

	transport Transport

	mu     sync.Mutex
	claimed bool
	hw      HWParams

	llpHigh atomic.Uint32
	llpLow  atomic.Uint32
}

// NewBinding wraps a transport as a named, indexed DAI binding.
func NewBinding(id ids.DAIBindingID, daiType string, index int, dir Direction, fifoDepth int, t Transport) *Binding {
	return &Binding{ID: id, Type: daiType, Index: index, Direction: dir, FIFODepth: fifoDepth, transport: t}
}

// Claim marks the binding as in use. A second claim without an
// intervening Release is rejected.
func (b *Binding) Claim() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.claimed {
		return dsperr.New(dsperr.CodeBusy, "dai: binding already claimed")
	}
	b.claimed = true
	return nil
}

// Release frees the binding for another pipeline to claim.
func (b *Binding) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.claimed {
		return dsperr.New(dsperr.CodeBadState, "dai: binding not claimed")
	}
	b.claimed = false
	return nil
}

// SetConfig negotiates hardware params for this binding.
func (b *Binding) SetConfig(ctx context.Context, hw HWParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.claimed {
		return dsperr.New(dsperr.CodeBadState, "dai: configure before claim")
	}
	if err := b.transport.Configure(ctx, hw); err != nil {
		return err
	}
	b.hw = hw
	return nil
}

// GetHWParams returns the last negotiated hardware params.
func (b *Binding) GetHWParams() HWParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hw
}

// Trigger forwards a lifecycle command to the transport.
func (b *Binding) Trigger(ctx context.Context, cmd TransportCmd) error {
	return b.transport.Trigger(ctx, cmd)
}

// Get pulls one period from a capture binding.
func (b *Binding) Get(ctx context.Context, frames []byte) (int, error) {
	if b.Direction != DirectionCapture {
		return 0, dsperr.New(dsperr.CodeBadParam, "dai: Get called on non-capture binding")
	}
	n, err := b.transport.Pull(ctx, frames)
	if err != nil {
		return n, err
	}
	b.refreshLLP()
	return n, nil
}

// Put pushes one period to a playback binding.
func (b *Binding) Put(ctx context.Context, frames []byte) error {
	if b.Direction != DirectionPlayback {
		return dsperr.New(dsperr.CodeBadParam, "dai: Put called on non-playback binding")
	}
	if err := b.transport.Push(ctx, frames); err != nil {
		return err
	}
	b.refreshLLP()
	return nil
}

// refreshLLP stores the freshly observed pair using seqlock-style
// ordering: high half first, low half last,
// so a reader that sees a stable high half before and after reading low
// knows the pair did not straddle a wraparound update.
func (b *Binding) refreshLLP() {
	high, low := b.transport.LLP()
	b.llpHigh.Store(high)
	b.llpLow.Store(low)
}

// LLP returns a consistent (high, low) snapshot using the re-read-on-
// high-change discipline: if the high half changes between the two
// reads, the low-half read may have straddled a wraparound, so it
// re-reads until a stable pair is observed.
func (b *Binding) LLP() (high, low uint32) {
	for {
		h1 := b.llpHigh.Load()
		l := b.llpLow.Load()
		h2 := b.llpHigh.Load()
		if h1 == h2 {
			return h1, l
		}
	}
}

// Probe reports whether the binding's transport is currently reachable
// (a real port would check link/DMA channel health).
func (b *Binding) Probe(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport == nil {
		return dsperr.New(dsperr.CodeNoResource, "dai: no transport bound")
	}
	return nil
}
