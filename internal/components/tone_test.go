package components

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
)

func TestToneProducesOnePeriodPerCopy(t *testing.T) {
	tone := NewTone(ids.ComponentID(testAllocator.Next()), "tone", 1000, 0.5)
	require.NoError(t, tone.Params(stereo16(48000)))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, tone.AddSink(sink))
	require.NoError(t, tone.Prepare(context.Background()))
	tone.SetPeriodFrames(8)
	require.NoError(t, tone.Trigger(component.TriggerStart))

	require.NoError(t, tone.Copy(context.Background()))
	assert.Equal(t, uint32(32), sink.Avail()) // 8 frames * 4 bytes/frame
}

func TestToneHasNoSourcePorts(t *testing.T) {
	tone := NewTone(ids.ComponentID(testAllocator.Next()), "tone-noports", 440, 1.0)
	assert.Empty(t, tone.Sources())
}

func TestToneResetClearsPhase(t *testing.T) {
	tone := NewTone(ids.ComponentID(testAllocator.Next()), "tone-reset", 440, 1.0)
	require.NoError(t, tone.Params(stereo16(48000)))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 256, stereo16(48000))
	require.NoError(t, tone.AddSink(sink))
	require.NoError(t, tone.Prepare(context.Background()))
	tone.SetPeriodFrames(4)
	require.NoError(t, tone.Trigger(component.TriggerStart))
	require.NoError(t, tone.Copy(context.Background()))

	require.NoError(t, tone.Reset())
	assert.Equal(t, float64(0), tone.phase)
	assert.Len(t, tone.Sinks(), 1)
}
