package pipeline

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/components"
	"github.com/jangala-audio/dspcore/internal/dai"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
)

// buildPlaybackToDAI wires host -> volume -> copier(loopback), the
// simple-playback shape, returning the loopback so the test can read
// what "hardware" received.
func buildPlaybackToDAI(t *testing.T) (*Pipeline, *components.Host, *components.Volume, *dai.Loopback) {
	t.Helper()
	pool := memory.NewPool("buffer", 1<<20, memory.CapRAM|memory.CapDMA)

	src := components.NewHost(ids.ComponentID(testAllocator.Next()), "host0", components.DirectionPlayback)
	vol := components.NewVolume(ids.ComponentID(testAllocator.Next()), "vol0")
	lb := dai.NewLoopback()
	binding := dai.NewBinding(ids.DAIBindingID(1), "ssp", 0, dai.DirectionPlayback, 2, lb)
	require.NoError(t, binding.Claim())
	cop := components.NewCopier(ids.ComponentID(testAllocator.Next()), "dai0", binding)

	p := New(ids.PipelineID(testAllocator.Next()))
	require.NoError(t, p.AddComponent(src))
	require.NoError(t, p.AddComponent(vol))
	require.NoError(t, p.AddComponent(cop))

	params := stereoParams(48000)
	_, err := p.Connect(src.ID(), vol.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, params)
	require.NoError(t, err)
	_, err = p.Connect(vol.ID(), cop.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, params)
	require.NoError(t, err)

	require.NoError(t, p.NegotiateParams(context.Background()))
	return p, src, vol, lb
}

func TestPlaybackDeliversAttenuatedSamplesToDAI(t *testing.T) {
	p, src, vol, lb := buildPlaybackToDAI(t)
	require.NoError(t, p.PrepareAll(context.Background(), 16))
	require.NoError(t, vol.SetGain(0, 0.5, components.RampLinear, 0))
	require.NoError(t, vol.SetGain(1, 0.5, components.RampLinear, 0))
	require.NoError(t, p.TriggerAll(component.TriggerStart))

	// one period of stereo s16 frames, every sample 0x1000.
	in := make([]byte, 16*4)
	for i := 0; i < len(in); i += 2 {
		binary.LittleEndian.PutUint16(in[i:], 0x1000)
	}
	src.WriteHost(in)

	for i := 0; i < 4; i++ {
		require.NoError(t, p.runPeriod(context.Background()))
	}

	high, low := lb.LLP()
	assert.Equal(t, uint32(0), high)
	assert.Equal(t, uint32(16), low) // 16 frames pushed

	out := make([]byte, len(in))
	n, err := lb.Pull(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, len(in), n)
	for i := 0; i < n; i += 2 {
		assert.Equal(t, int16(0x0800), int16(binary.LittleEndian.Uint16(out[i:])), "sample at byte %d", i)
	}
}

func TestPauseReleaseReturnsToActive(t *testing.T) {
	p, _, _, _ := buildPlaybackToDAI(t)
	require.NoError(t, p.PrepareAll(context.Background(), 16))
	require.NoError(t, p.TriggerAll(component.TriggerStart))
	require.NoError(t, p.TriggerAll(component.TriggerPause))
	assert.Equal(t, StatePaused, p.State())

	require.NoError(t, p.TriggerAll(component.TriggerRelease))
	assert.Equal(t, StateActive, p.State())
}

func TestXrunLimitStopsPipelineButNotCore(t *testing.T) {
	p, _, _, _ := buildPlaybackToDAI(t)
	require.NoError(t, p.PrepareAll(context.Background(), 16))
	p.SetXrunLimit(20)
	require.NoError(t, p.TriggerAll(component.TriggerStart))

	// host never writes: every period underruns until the limit trips.
	core := NewCore(0, TimeDomainTimer, 0, nil)
	core.Add(p)
	for i := 0; i < 8; i++ {
		require.NoError(t, core.tick(context.Background()))
	}
	assert.Equal(t, StateErrorStop, p.State())

	// recovery: reset back to ready, restart.
	require.NoError(t, p.Reset())
	p.ResetXrunStats()
	assert.Equal(t, StateReady, p.State())
}

func TestCrossCoreConnectMarksBufferShared(t *testing.T) {
	pool := memory.NewPool("buffer", 1<<20, memory.CapRAM|memory.CapDMA)
	src := components.NewHost(ids.ComponentID(testAllocator.Next()), "h", components.DirectionPlayback)
	sink := components.NewHost(ids.ComponentID(testAllocator.Next()), "c", components.DirectionCapture)
	sink.SetCoreID(1)

	p := New(ids.PipelineID(testAllocator.Next()))
	require.NoError(t, p.AddComponent(src))
	require.NoError(t, p.AddComponent(sink))
	b, err := p.Connect(src.ID(), sink.ID(), ids.BufferID(testAllocator.Next()), pool, 4096, memory.CapRAM, stereoParams(48000))
	require.NoError(t, err)
	assert.True(t, b.CrossCore())
}
