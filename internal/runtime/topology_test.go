package runtime

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/components"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
	"github.com/jangala-audio/dspcore/internal/tlv"
	"github.com/jangala-audio/dspcore/internal/topology"
)

func u32Token(dst []byte, id, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return tlv.Encode(dst, id, b[:])
}

// playbackTopologyBlob declares pipe 1 with host(2) -> volume(3) ->
// host(4) and two buffer edges, the blob-borne equivalent of
// buildPlaybackPipeline's IPC sequence.
func playbackTopologyBlob(t *testing.T) []byte {
	t.Helper()

	var blob []byte

	var pipe []byte
	pipe = u32Token(pipe, topology.TknPipelineID, 1)
	blob = topology.EncodeBlock(blob, topology.BlockPipeline, 0, 0, pipe)

	compBlock := func(id uint32, typ ids.ComponentType, name string, cfg []byte) {
		var body []byte
		body = u32Token(body, topology.TknCompID, id)
		body = u32Token(body, topology.TknCompPipeline, 1)
		u := uuid.UUID(typ)
		body = tlv.Encode(body, topology.TknCompTypeUUID, u[:])
		body = tlv.Encode(body, topology.TknCompName, []byte(name))
		if cfg != nil {
			body = tlv.Encode(body, topology.TknCompConfig, cfg)
		}
		blob = topology.EncodeBlock(blob, topology.BlockComponent, 0, 0, body)
	}
	compBlock(2, ids.TypeHost, "host-in", hostDirectionBlob(components.DirectionPlayback))
	compBlock(3, ids.TypeVolume, "vol", nil)
	compBlock(4, ids.TypeHost, "host-out", hostDirectionBlob(components.DirectionCapture))

	bufBlock := func(id, from, to uint32) {
		var body []byte
		body = u32Token(body, topology.TknBufID, id)
		body = u32Token(body, topology.TknBufPipeline, 1)
		body = u32Token(body, topology.TknBufFromComp, from)
		body = u32Token(body, topology.TknBufToComp, to)
		body = u32Token(body, topology.TknBufSize, 4096)
		body = u32Token(body, topology.TknBufCaps, uint32(memory.CapRAM|memory.CapDMA))
		body = u32Token(body, topology.TknBufRate, 48000)
		body = u32Token(body, topology.TknBufChannels, 2)
		body = u32Token(body, topology.TknBufFormat, uint32(audioformat.FormatS16LE))
		blob = topology.EncodeBlock(blob, topology.BlockBuffer, 0, 0, body)
	}
	bufBlock(5, 2, 3)
	bufBlock(6, 3, 4)

	return blob
}

func TestLoadTopologyBuildsRunnablePipeline(t *testing.T) {
	rt := newTestRuntime(t)
	require.NoError(t, rt.LoadTopology(context.Background(), playbackTopologyBlob(t)))

	require.NoError(t, rt.PCMParams(context.Background(), ids.PipelineID(1), 256, stereoParams(48000)))
	require.NoError(t, rt.Trigger(ids.PipelineID(1), component.TriggerStart))
	require.NoError(t, rt.Trigger(ids.PipelineID(1), component.TriggerStop))
}

func TestLoadTopologySkipsUnknownTokensAndBlocks(t *testing.T) {
	rt := newTestRuntime(t)
	blob := playbackTopologyBlob(t)

	// an unknown block kind and a stray unknown token must both be
	// ignored, not rejected.
	var extra []byte
	extra = u32Token(extra, 9999, 7)
	blob = topology.EncodeBlock(blob, topology.BlockType(42), 0, 0, extra)

	err := rt.LoadTopology(context.Background(), blob)
	assert.NoError(t, err)
}

func TestLoadTopologyRejectsTruncatedBlob(t *testing.T) {
	rt := newTestRuntime(t)
	blob := playbackTopologyBlob(t)
	err := rt.LoadTopology(context.Background(), blob[:len(blob)-3])
	assert.Error(t, err)
}

func TestLoadTopologyRejectsBufferEdgeToUnknownComponent(t *testing.T) {
	rt := newTestRuntime(t)

	var blob []byte
	var pipe []byte
	pipe = u32Token(pipe, topology.TknPipelineID, 1)
	blob = topology.EncodeBlock(blob, topology.BlockPipeline, 0, 0, pipe)

	var body []byte
	body = u32Token(body, topology.TknBufID, 5)
	body = u32Token(body, topology.TknBufPipeline, 1)
	body = u32Token(body, topology.TknBufFromComp, 98)
	body = u32Token(body, topology.TknBufToComp, 99)
	body = u32Token(body, topology.TknBufSize, 4096)
	blob = topology.EncodeBlock(blob, topology.BlockBuffer, 0, 0, body)

	err := rt.LoadTopology(context.Background(), blob)
	assert.Error(t, err)
}
