package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/components"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
)

var testAllocator = ids.NewAllocator(1)

func stereoParams(rate uint32) audioformat.Params {
	return audioformat.Params{Rate: rate, Channels: 2, Format: audioformat.FormatS16LE, Interlv: audioformat.Interleaved}
}

// buildChain wires host -> volume -> host, a minimal two-edge graph
// exercising connect, negotiate, prepare and trigger all at once.
func buildChain(t *testing.T) (*Pipeline, *components.Host, *components.Volume, *components.Host) {
	t.Helper()
	pool := memory.NewPool("buffer", 1<<20, memory.CapRAM|memory.CapDMA)

	src := components.NewHost(ids.ComponentID(testAllocator.Next()), "src", components.DirectionPlayback)
	vol := components.NewVolume(ids.ComponentID(testAllocator.Next()), "vol")
	sink := components.NewHost(ids.ComponentID(testAllocator.Next()), "sink", components.DirectionCapture)

	p := New(ids.PipelineID(1))
	require.NoError(t, p.AddComponent(src))
	require.NoError(t, p.AddComponent(vol))
	require.NoError(t, p.AddComponent(sink))

	params := stereoParams(48000)
	_, err := p.Connect(src.ID(), vol.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, params)
	require.NoError(t, err)
	_, err = p.Connect(vol.ID(), sink.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, params)
	require.NoError(t, err)

	return p, src, vol, sink
}

func TestPipelineNegotiatePrepareTriggerHappyPath(t *testing.T) {
	p, _, _, _ := buildChain(t)

	require.NoError(t, p.NegotiateParams(context.Background()))
	require.NoError(t, p.PrepareAll(context.Background(), 256))
	assert.Equal(t, StatePrepared, p.State())

	require.NoError(t, p.TriggerAll(component.TriggerStart))
	assert.Equal(t, StateActive, p.State())

	require.NoError(t, p.TriggerAll(component.TriggerStop))
	assert.Equal(t, StateReady, p.State())
}

func TestPipelineTopoOrderIsSourceToSinkForward(t *testing.T) {
	p, src, vol, sink := buildChain(t)
	order, err := p.topoOrder(forward)
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, src.ID(), order[0])
	assert.Equal(t, vol.ID(), order[1])
	assert.Equal(t, sink.ID(), order[2])
}

func TestPipelineTopoOrderBackwardIsReversed(t *testing.T) {
	p, src, vol, sink := buildChain(t)
	order, err := p.topoOrder(backward)
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, sink.ID(), order[0])
	assert.Equal(t, vol.ID(), order[1])
	assert.Equal(t, src.ID(), order[2])
}

func TestPipelineFreeRejectsWhilePaused(t *testing.T) {
	p, _, _, _ := buildChain(t)
	require.NoError(t, p.NegotiateParams(context.Background()))
	require.NoError(t, p.PrepareAll(context.Background(), 256))
	require.NoError(t, p.TriggerAll(component.TriggerStart))
	require.NoError(t, p.TriggerAll(component.TriggerPause))

	err := p.Free()
	assert.Error(t, err)
}

func TestPipelineFreeSucceedsOnceNotPaused(t *testing.T) {
	p, _, _, _ := buildChain(t)
	require.NoError(t, p.NegotiateParams(context.Background()))
	require.NoError(t, p.PrepareAll(context.Background(), 256))
	require.NoError(t, p.TriggerAll(component.TriggerStart))
	require.NoError(t, p.TriggerAll(component.TriggerStop))

	assert.NoError(t, p.Free())
}

func TestPipelineNegotiateRejectsFormatMismatchAcrossNonConvertingComponent(t *testing.T) {
	pool := memory.NewPool("buffer", 1<<20, memory.CapRAM|memory.CapDMA)
	src := components.NewHost(ids.ComponentID(testAllocator.Next()), "src", components.DirectionPlayback)
	vol := components.NewVolume(ids.ComponentID(testAllocator.Next()), "vol")
	sink := components.NewHost(ids.ComponentID(testAllocator.Next()), "sink", components.DirectionCapture)

	p := New(ids.PipelineID(2))
	require.NoError(t, p.AddComponent(src))
	require.NoError(t, p.AddComponent(vol))
	require.NoError(t, p.AddComponent(sink))

	_, err := p.Connect(src.ID(), vol.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, stereoParams(48000))
	require.NoError(t, err)
	_, err = p.Connect(vol.ID(), sink.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, stereoParams(96000))
	require.NoError(t, err)

	err = p.NegotiateParams(context.Background())
	assert.Error(t, err)
}

func TestSchedulerRunsTicksUntilCancelled(t *testing.T) {
	p, _, _, _ := buildChain(t)
	require.NoError(t, p.NegotiateParams(context.Background()))
	require.NoError(t, p.PrepareAll(context.Background(), 64))
	require.NoError(t, p.TriggerAll(component.TriggerStart))

	core := NewCore(0, TimeDomainTimer, time.Millisecond, nil)
	core.Add(p)
	sched := NewScheduler(core)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sched.Run(ctx)
	assert.NoError(t, err)
}

func TestXrunAccumulatesAndTripsErrorStop(t *testing.T) {
	p, _, _, _ := buildChain(t)
	require.NoError(t, p.NegotiateParams(context.Background()))
	require.NoError(t, p.PrepareAll(context.Background(), 256))
	require.NoError(t, p.TriggerAll(component.TriggerStart))
	p.SetXrunLimit(100)

	err := p.Xrun(50)
	assert.NoError(t, err)
	assert.Equal(t, StateActive, p.State())

	err = p.Xrun(60)
	assert.Error(t, err)
	assert.Equal(t, StateErrorStop, p.State())
}
