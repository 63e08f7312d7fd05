package components

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/buffer"
	"github.com/jangala-audio/dspcore/internal/ids"
	"github.com/jangala-audio/dspcore/internal/memory"
)

var testAllocator = ids.NewAllocator(1)

func newTestPCMBuffer(t *testing.T, id ids.BufferID, sizeBytes uint32, p audioformat.Params) *buffer.Buffer {
	t.Helper()
	pool := memory.NewPool("test", sizeBytes*4, memory.CapRAM)
	b, err := buffer.New(id, pool, sizeBytes, memory.CapRAM)
	require.NoError(t, err)
	require.NoError(t, b.SetParams(p))
	return b
}

func stereo16(rate uint32) audioformat.Params {
	return audioformat.Params{Rate: rate, Channels: 2, Format: audioformat.FormatS16LE}
}
