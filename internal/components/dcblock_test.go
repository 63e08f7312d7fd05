package components

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

func TestDCBlockRemovesConstantOffset(t *testing.T) {
	d := NewDCBlock(ids.ComponentID(testAllocator.Next()), "dc")
	require.NoError(t, d.Params(mono16(48000)))
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 1024, mono16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 1024, mono16(48000))
	require.NoError(t, d.AddSource(src))
	require.NoError(t, d.AddSink(sink))
	require.NoError(t, d.Prepare(context.Background()))
	require.NoError(t, d.Trigger(component.TriggerStart))

	// a long run of constant DC input must decay toward zero at the output.
	const samples = 256
	in := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(in[i*2:], uint16(int16(8000)))
	}
	written := 0
	out := make([]byte, 0, samples*2)
	for written < len(in) {
		n, err := src.Write(in[written:])
		require.NoError(t, err)
		written += n
		require.NoError(t, d.Copy(context.Background()))
		chunk := make([]byte, samples*2)
		m, _ := sink.Read(chunk)
		out = append(out, chunk[:m]...)
	}
	require.GreaterOrEqual(t, len(out), samples*2)

	first := int16(binary.LittleEndian.Uint16(out[0:]))
	last := int16(binary.LittleEndian.Uint16(out[len(out)-2:]))
	assert.Equal(t, int16(8000), first) // y[0] = x[0] with zero history
	assert.Less(t, math.Abs(float64(last)), math.Abs(float64(first))/4)
}

func TestDCBlockPassesStepEdge(t *testing.T) {
	d := NewDCBlock(ids.ComponentID(testAllocator.Next()), "dc-step")
	require.NoError(t, d.Params(mono16(48000)))
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, mono16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, mono16(48000))
	require.NoError(t, d.AddSource(src))
	require.NoError(t, d.AddSink(sink))
	require.NoError(t, d.Prepare(context.Background()))
	require.NoError(t, d.Trigger(component.TriggerStart))

	var in [4]byte
	binary.LittleEndian.PutUint16(in[0:], 0)
	binary.LittleEndian.PutUint16(in[2:], uint16(int16(5000)))
	_, err := src.Write(in[:])
	require.NoError(t, err)
	require.NoError(t, d.Copy(context.Background()))

	out := make([]byte, 4)
	_, _ = sink.Read(out)
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(out[0:])))
	assert.Equal(t, int16(5000), int16(binary.LittleEndian.Uint16(out[2:])))
}

func TestDCBlockSetRRejectsOutOfRange(t *testing.T) {
	d := NewDCBlock(ids.ComponentID(testAllocator.Next()), "dc-r")
	assert.Error(t, d.SetR(0))
	assert.Error(t, d.SetR(1))
	assert.Error(t, d.SetR(1.5))
	assert.NoError(t, d.SetR(0.995))
}

func TestDCBlockConfigureDecodesPoleToken(t *testing.T) {
	d := NewDCBlock(ids.ComponentID(testAllocator.Next()), "dc-cfg")
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], math.Float64bits(0.9))
	blob := tlv.Encode(nil, TokenDCBlockR, v[:])
	require.NoError(t, d.Configure(blob))
	assert.InDelta(t, 0.9, d.r, 1e-12)
}
