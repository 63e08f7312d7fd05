package components

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/component"
	"github.com/jangala-audio/dspcore/internal/ids"
)

func TestSRCUpsamplesByTwo(t *testing.T) {
	inParams := audioformat.Params{Rate: 8000, Channels: 1, Format: audioformat.FormatS16LE}
	outParams := audioformat.Params{Rate: 16000, Channels: 1, Format: audioformat.FormatS16LE}
	s := NewSRC(ids.ComponentID(testAllocator.Next()), "src-up")
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 1<<16, inParams)
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 1<<16, outParams)
	require.NoError(t, s.AddSource(src))
	require.NoError(t, s.AddSink(sink))
	require.NoError(t, s.Prepare(context.Background()))
	require.NoError(t, s.Trigger(component.TriggerStart))

	const frames = 2000
	inFb, _ := inParams.FrameBytes()
	for i := 0; i < frames; i++ {
		_, _ = src.Write(make([]byte, inFb))
	}

	beforeAvail := src.Avail()
	for i := 0; i < 500 && src.Avail() > 0; i++ {
		err := s.Copy(context.Background())
		if err != nil {
			require.True(t, component.IsRecoverable(err))
			break
		}
	}
	consumedBytes := beforeAvail - src.Avail()
	producedBytes := sink.Avail()
	outFb, _ := outParams.FrameBytes()

	consumedFrames := consumedBytes / inFb
	producedFrames := producedBytes / outFb
	require.Greater(t, consumedFrames, uint32(0))
	ratio := float64(producedFrames) / float64(consumedFrames)
	assert.InDelta(t, 2.0, ratio, 0.2)
}

func TestSRCPrepareRejectsMismatchedChannelCounts(t *testing.T) {
	s := NewSRC(ids.ComponentID(testAllocator.Next()), "src-mismatch")
	inParams := audioformat.Params{Rate: 8000, Channels: 1, Format: audioformat.FormatS16LE}
	outParams := audioformat.Params{Rate: 16000, Channels: 2, Format: audioformat.FormatS16LE}
	src := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 4096, inParams)
	sink := newTestPCMBuffer(t, ids.BufferID(testAllocator.Next()), 4096, outParams)
	require.NoError(t, s.AddSource(src))
	require.NoError(t, s.AddSink(sink))
	err := s.Prepare(context.Background())
	assert.Error(t, err)
}
