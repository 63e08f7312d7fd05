package components

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/buffer"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
)

func newPreparedASRC(t *testing.T) (*ASRC, *buffer.Buffer, *buffer.Buffer) {
	t.Helper()
	a := NewASRC(ids.ComponentID(testAllocator.Next()), "asrc")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 1<<16, stereo16(48000))
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 1<<16, stereo16(48000))
	require.NoError(t, a.AddSource(src))
	require.NoError(t, a.AddSink(sink))
	require.NoError(t, a.Prepare(context.Background()))
	require.NoError(t, a.Trigger(component.TriggerStart))
	return a, src, sink
}

func TestASRCUnityRatioPassesOneOutputPerInputFrame(t *testing.T) {
	a, src, sink := newPreparedASRC(t)
	for i := 0; i < 100; i++ {
		writeS16Frame(src, int16(i), int16(-i))
	}
	require.NoError(t, a.Copy(context.Background()))
	// unity ratio: every input frame becomes one output frame once the
	// 4-frame Farrow bootstrap has primed the history, so 100 input
	// frames yield 100-3 output frames this call.
	assert.Equal(t, uint32(97), sink.Avail()/4)
}

func TestASRCBootstrapNeedsFourFramesMinimum(t *testing.T) {
	a, src, _ := newPreparedASRC(t)
	writeS16Frame(src, 1, 1)
	writeS16Frame(src, 2, 2)
	err := a.Copy(context.Background())
	require.Error(t, err)
	assert.True(t, component.IsRecoverable(err))
}

func TestASRCDriftedRatioChangesOutputRate(t *testing.T) {
	a, src, sink := newPreparedASRC(t)
	require.NoError(t, a.SetRatio(2.0)) // output domain runs at double the input domain's rate
	for i := 0; i < 40; i++ {
		writeS16Frame(src, 100, 100)
	}
	require.NoError(t, a.Copy(context.Background()))
	producedFrames := sink.Avail() / 4
	assert.Greater(t, int(producedFrames), 40) // ratio > 1 means more output frames than input frames
}

func TestASRCRejectsNonPositiveRatio(t *testing.T) {
	a := NewASRC(ids.ComponentID(testAllocator.Next()), "asrc-badratio")
	err := a.SetRatio(0)
	assert.Error(t, err)
	err = a.SetRatio(-1)
	assert.Error(t, err)
}
