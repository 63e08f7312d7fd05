package components

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/tlv"
)

func quad16(rate uint32) audioformat.Params {
	return audioformat.Params{Rate: rate, Channels: 4, Format: audioformat.FormatS16LE}
}

func mono16(rate uint32) audioformat.Params {
	return audioformat.Params{Rate: rate, Channels: 1, Format: audioformat.FormatS16LE}
}

func TestSelectorExtractsConfiguredChannel(t *testing.T) {
	s := NewSelector(ids.ComponentID(testAllocator.Next()), "sel")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, quad16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, mono16(48000))
	require.NoError(t, s.AddSource(src))
	require.NoError(t, s.AddSink(sink))
	s.SetRoutes([]uint32{2}) // output ch 0 <- input ch 2
	require.NoError(t, s.Prepare(context.Background()))
	require.NoError(t, s.Trigger(component.TriggerStart))

	// one quad frame: channels 0..3 carry 10, 20, 30, 40.
	frame := make([]byte, 8)
	for ch, v := range []int16{10, 20, 30, 40} {
		binary.LittleEndian.PutUint16(frame[ch*2:], uint16(v))
	}
	_, err := src.Write(frame)
	require.NoError(t, err)

	require.NoError(t, s.Copy(context.Background()))
	out := make([]byte, 2)
	n, _ := sink.Read(out)
	require.Equal(t, 2, n)
	assert.Equal(t, int16(30), int16(binary.LittleEndian.Uint16(out)))
	assert.Equal(t, uint32(0), src.Avail())
}

func TestSelectorIdentityRoutingByDefault(t *testing.T) {
	s := NewSelector(ids.ComponentID(testAllocator.Next()), "sel-id")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, s.AddSource(src))
	require.NoError(t, s.AddSink(sink))
	require.NoError(t, s.Prepare(context.Background()))
	require.NoError(t, s.Trigger(component.TriggerStart))

	writeS16Frame(src, 111, -222)
	require.NoError(t, s.Copy(context.Background()))
	out := make([]byte, 4)
	_, _ = sink.Read(out)
	l, r := readS16Frame(out)
	assert.Equal(t, int16(111), l)
	assert.Equal(t, int16(-222), r)
}

func TestSelectorPrepareRejectsRouteOutOfRange(t *testing.T) {
	s := NewSelector(ids.ComponentID(testAllocator.Next()), "sel-bad")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, mono16(48000))
	require.NoError(t, s.AddSource(src))
	require.NoError(t, s.AddSink(sink))
	s.SetRoutes([]uint32{7})
	assert.Error(t, s.Prepare(context.Background()))
}

func TestSelectorConfigureDecodesRouteTokens(t *testing.T) {
	s := NewSelector(ids.ComponentID(testAllocator.Next()), "sel-cfg")
	var blob []byte
	for _, ch := range []uint32{3, 1} {
		var v [4]byte
		binary.LittleEndian.PutUint32(v[:], ch)
		blob = tlv.Encode(blob, TokenSelRoute, v[:])
	}
	require.NoError(t, s.Configure(blob))
	assert.Equal(t, []uint32{3, 1}, s.routes)
}

func TestSelectorEmptySourceIsRecoverable(t *testing.T) {
	s := NewSelector(ids.ComponentID(testAllocator.Next()), "sel-dry")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, s.AddSource(src))
	require.NoError(t, s.AddSink(sink))
	require.NoError(t, s.Prepare(context.Background()))
	require.NoError(t, s.Trigger(component.TriggerStart))

	err := s.Copy(context.Background())
	require.Error(t, err)
	assert.True(t, component.IsRecoverable(err))
}
