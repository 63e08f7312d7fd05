package components

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/buffer"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
)

func TestMuxCombinesTwoMonoSourcesIntoStereoSink(t *testing.T) {
	x := NewMuxDemux(ids.ComponentID(testAllocator.Next()), "mux")
	mono := func() *buffer.Buffer {
		p := stereo16(48000)
		p.Channels = 1
		return newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, p)
	}
	left := mono()
	right := mono()
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, x.AddSource(left))
	require.NoError(t, x.AddSource(right))
	require.NoError(t, x.AddSink(sink))
	// global input channel index: 0 = left source ch0, 1 = right source ch0
	require.NoError(t, x.SetRouting(0, []uint64{1 << 0, 1 << 1}))
	require.NoError(t, x.Prepare(context.Background()))
	require.NoError(t, x.Trigger(component.TriggerStart))

	_, _ = left.Write([]byte{0xE8, 0x03}) // 1000 as s16le
	_, _ = right.Write([]byte{0x2C, 0x01}) // 300 as s16le

	require.NoError(t, x.Copy(context.Background()))
	out := make([]byte, 4)
	_, _ = sink.Read(out)
	l, r := readS16Frame(out)
	assert.Equal(t, int16(1000), l)
	assert.Equal(t, int16(300), r)
}

func TestMuxMissingRoutingRejectedAtPrepare(t *testing.T) {
	x := NewMuxDemux(ids.ComponentID(testAllocator.Next()), "mux-unrouted")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, x.AddSource(src))
	require.NoError(t, x.AddSink(sink))

	err := x.Prepare(context.Background())
	assert.Error(t, err)
}

func TestDemuxSplitsStereoSourceIntoTwoMonoSinks(t *testing.T) {
	x := NewMuxDemux(ids.ComponentID(testAllocator.Next()), "demux")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	monoParams := stereo16(48000)
	monoParams.Channels = 1
	sinkL := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, monoParams)
	sinkR := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, monoParams)
	require.NoError(t, x.AddSource(src))
	require.NoError(t, x.AddSink(sinkL))
	require.NoError(t, x.AddSink(sinkR))
	require.NoError(t, x.SetRouting(0, []uint64{1 << 0})) // sink 0 out ch0 <- global ch0 (source left)
	require.NoError(t, x.SetRouting(1, []uint64{1 << 1})) // sink 1 out ch0 <- global ch1 (source right)
	require.NoError(t, x.Prepare(context.Background()))
	require.NoError(t, x.Trigger(component.TriggerStart))

	writeS16Frame(src, 4000, -4000)
	require.NoError(t, x.Copy(context.Background()))

	outL := make([]byte, 2)
	_, _ = sinkL.Read(outL)
	outR := make([]byte, 2)
	_, _ = sinkR.Read(outR)
	assert.Equal(t, int16(4000), int16(binary.LittleEndian.Uint16(outL)))
	assert.Equal(t, int16(-4000), int16(binary.LittleEndian.Uint16(outR)))
}
