package components

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
)

func TestMixerSumsTwoSources(t *testing.T) {
	m := NewMixer(ids.ComponentID(testAllocator.Next()), "mix")
	require.NoError(t, m.Params(stereo16(48000)))
	srcA := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	srcB := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, m.AddSource(srcA))
	require.NoError(t, m.AddSource(srcB))
	require.NoError(t, m.AddSink(sink))
	require.NoError(t, m.Prepare(context.Background()))
	require.NoError(t, m.Trigger(component.TriggerStart))

	writeS16Frame(srcA, 1000, 1000)
	writeS16Frame(srcB, 500, -200)

	require.NoError(t, m.Copy(context.Background()))
	out := make([]byte, 4)
	_, _ = sink.Read(out)
	l, r := readS16Frame(out)
	assert.Equal(t, int16(1500), l)
	assert.Equal(t, int16(800), r)
}

func TestMixerStalledUnderrunPermittedSourceContributesSilenceWithoutConsume(t *testing.T) {
	m := NewMixer(ids.ComponentID(testAllocator.Next()), "mix-underrun")
	require.NoError(t, m.Params(stereo16(48000)))
	hard := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	soft := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, m.AddSource(hard))
	require.NoError(t, m.AddSource(soft))
	require.NoError(t, m.AddSink(sink))
	require.NoError(t, m.SetSourceUnderrunPermitted(1, true))
	require.NoError(t, m.Prepare(context.Background()))
	require.NoError(t, m.Trigger(component.TriggerStart))

	writeS16Frame(hard, 1000, 1000) // soft source left empty: all-zero/stalled

	require.NoError(t, m.Copy(context.Background()))
	assert.Equal(t, uint32(0), soft.Avail()) // never consumed from
	out := make([]byte, 4)
	_, _ = sink.Read(out)
	l, r := readS16Frame(out)
	assert.Equal(t, int16(1000), l)
	assert.Equal(t, int16(1000), r)
}

func TestMixerHardSourceAbsentStallsWholeMix(t *testing.T) {
	m := NewMixer(ids.ComponentID(testAllocator.Next()), "mix-stall")
	require.NoError(t, m.Params(stereo16(48000)))
	hard := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	soft := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, m.AddSource(hard))
	require.NoError(t, m.AddSource(soft))
	require.NoError(t, m.AddSink(sink))
	require.NoError(t, m.SetSourceUnderrunPermitted(1, true))
	require.NoError(t, m.Prepare(context.Background()))
	require.NoError(t, m.Trigger(component.TriggerStart))

	writeS16Frame(soft, 1000, 1000) // only the underrun-permitted source has data

	err := m.Copy(context.Background())
	require.Error(t, err)
	assert.True(t, component.IsRecoverable(err))
}
