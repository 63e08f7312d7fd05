package runtime

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/components"
	"github.com/jangala-audio/dspcore/internal/config"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/logging"
	"github.com/jangala-audio/dspcore/internal/memory"
	"github.com/jangala-audio/dspcore/internal/platform"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

var testAllocator = ids.NewAllocator(1)

func hostDirectionBlob(dir components.Direction) []byte {
	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], uint32(dir))
	return tlv.Encode(nil, components.TokenDirection, v[:])
}

func stereoParams(rate uint32) audioformat.Params {
	return audioformat.Params{Rate: rate, Channels: 2, Format: audioformat.FormatS16LE, Interlv: audioformat.Interleaved}
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Runtime.Cores = 1
	rt, err := New(cfg, platform.Default(), logging.NewDefault())
	require.NoError(t, err)
	return rt
}

// buildPlaybackPipeline drives host -> volume -> host through the exact
// IPC command sequence a mailbox client would send for a simple
// playback pipeline: pipe_new, comp_new x3, buffer_new x2, comp_connect
// x2, pipe_complete.
func buildPlaybackPipeline(t *testing.T, rt *Runtime) (pipelineID ids.PipelineID, src, vol, sink ids.ComponentID) {
	t.Helper()
	pipelineID = ids.PipelineID(testAllocator.Next())
	require.NoError(t, rt.PipelineNew(pipelineID, 0))

	src = ids.ComponentID(testAllocator.Next())
	require.NoError(t, rt.ComponentNew(ids.TypeHost, src, pipelineID, "src", hostDirectionBlob(components.DirectionPlayback)))

	vol = ids.ComponentID(testAllocator.Next())
	require.NoError(t, rt.ComponentNew(ids.TypeVolume, vol, pipelineID, "vol", nil))

	sink = ids.ComponentID(testAllocator.Next())
	require.NoError(t, rt.ComponentNew(ids.TypeHost, sink, pipelineID, "sink", hostDirectionBlob(components.DirectionCapture)))

	params := stereoParams(48000)
	buf1 := ids.BufferID(testAllocator.Next())
	require.NoError(t, rt.BufferNew(buf1, pipelineID, 4096, memory.CapRAM|memory.CapDMA, params))
	require.NoError(t, rt.ComponentConnect(pipelineID, src, vol, buf1))

	buf2 := ids.BufferID(testAllocator.Next())
	require.NoError(t, rt.BufferNew(buf2, pipelineID, 4096, memory.CapRAM|memory.CapDMA, params))
	require.NoError(t, rt.ComponentConnect(pipelineID, vol, sink, buf2))

	require.NoError(t, rt.PipelineComplete(context.Background(), pipelineID))
	return pipelineID, src, vol, sink
}

func TestRuntimeFullLifecycleHappyPath(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID, _, _, _ := buildPlaybackPipeline(t, rt)

	require.NoError(t, rt.PCMParams(context.Background(), pipelineID, 256, stereoParams(48000)))
	require.NoError(t, rt.Trigger(pipelineID, component.TriggerStart))

	require.NoError(t, rt.Trigger(pipelineID, component.TriggerStop))
	require.NoError(t, rt.PCMFree(pipelineID))
	require.NoError(t, rt.PipelineFree(pipelineID))
}

func TestRuntimeComponentConnectRejectsUnknownBuffer(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID := ids.PipelineID(testAllocator.Next())
	require.NoError(t, rt.PipelineNew(pipelineID, 0))

	src := ids.ComponentID(testAllocator.Next())
	require.NoError(t, rt.ComponentNew(ids.TypeHost, src, pipelineID, "src", hostDirectionBlob(components.DirectionPlayback)))
	sink := ids.ComponentID(testAllocator.Next())
	require.NoError(t, rt.ComponentNew(ids.TypeHost, sink, pipelineID, "sink", hostDirectionBlob(components.DirectionCapture)))

	err := rt.ComponentConnect(pipelineID, src, sink, ids.BufferID(999999))
	assert.Error(t, err)
}

func TestRuntimeComponentNewRejectsDAIType(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID := ids.PipelineID(testAllocator.Next())
	require.NoError(t, rt.PipelineNew(pipelineID, 0))

	err := rt.ComponentNew(ids.TypeDAI, ids.ComponentID(testAllocator.Next()), pipelineID, "dai", nil)
	assert.Error(t, err)
}

func TestRuntimeHostComponentNewRequiresDirectionToken(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID := ids.PipelineID(testAllocator.Next())
	require.NoError(t, rt.PipelineNew(pipelineID, 0))

	err := rt.ComponentNew(ids.TypeHost, ids.ComponentID(testAllocator.Next()), pipelineID, "src", nil)
	assert.Error(t, err)
}

func TestRuntimeDAIConfigClaimsBindingAndAddsCopier(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID := ids.PipelineID(testAllocator.Next())
	require.NoError(t, rt.PipelineNew(pipelineID, 0))

	compID := ids.ComponentID(testAllocator.Next())
	plat := platform.Default()
	require.NotEmpty(t, plat.DAIs)
	dai0 := plat.DAIs[0]

	err := rt.DAIConfig(pipelineID, compID, "dai0", dai0.Type, dai0.Index, directionFromString(dai0.Direction))
	require.NoError(t, err)

	p, err := rt.pipelineFor(pipelineID)
	require.NoError(t, err)
	_, ok := p.Component(compID)
	assert.True(t, ok)

	// claiming the same binding again must fail: it is already in use.
	err = rt.DAIConfig(pipelineID, ids.ComponentID(testAllocator.Next()), "dai1", dai0.Type, dai0.Index, directionFromString(dai0.Direction))
	assert.Error(t, err)
}

func TestRuntimePipelineFreeReleasesLiveBuffers(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID, _, _, _ := buildPlaybackPipeline(t, rt)
	assert.NotEmpty(t, rt.liveBufs)

	require.NoError(t, rt.PipelineFree(pipelineID))
	for _, lb := range rt.liveBufs {
		assert.NotEqual(t, pipelineID, lb.pipelineID)
	}
}

func TestRuntimeMemDumpReportsEveryPool(t *testing.T) {
	rt := newTestRuntime(t)
	data, err := rt.MemDump(0)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRuntimeCoreManagementRejectsOutOfRangeCore(t *testing.T) {
	rt := newTestRuntime(t)
	assert.Error(t, rt.CtxSave(99))
	assert.Error(t, rt.CoreEnable(99, true))
}

func TestRuntimeCoreEnableTogglesScheduling(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.CoreEnable(0, false))
	assert.False(t, rt.cores[0].Enabled())
	require.NoError(t, rt.CoreEnable(0, true))
	assert.True(t, rt.cores[0].Enabled())
}

func TestRuntimeConfigBlobRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	pipelineID, _, vol, _ := buildPlaybackPipeline(t, rt)
	_ = pipelineID

	var gain [8]byte
	binary.LittleEndian.PutUint32(gain[0:], 0)       // channel
	binary.LittleEndian.PutUint32(gain[4:], 0x8000)  // 0.5 in Q8.16
	blob := tlv.Encode(nil, components.TokenVolumeGainQ16, gain[:])

	require.NoError(t, rt.ComponentConfigure(vol, blob))
	got, err := rt.ComponentGetConfig(vol)
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestRuntimeGetConfigUnknownComponent(t *testing.T) {
	rt := newTestRuntime(t)
	_, err := rt.ComponentGetConfig(ids.ComponentID(424242))
	assert.Error(t, err)
}
