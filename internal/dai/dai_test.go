package dai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/audioformat"
	"github.com/jangala-audio/dspcore/internal/ids"
)

func TestClaimRejectsSecondClaim(t *testing.T) {
	b := NewBinding(1, "SSP", 0, DirectionPlayback, 256, NewLoopback())
	require.NoError(t, b.Claim())
	assert.Error(t, b.Claim())
}

func TestConfigureBeforeClaimRejected(t *testing.T) {
	b := NewBinding(1, "SSP", 0, DirectionPlayback, 256, NewLoopback())
	hw := HWParams{Params: audioformat.Params{Rate: 48000, Channels: 2, Format: audioformat.FormatS16LE}, PeriodFrames: 48}
	err := b.SetConfig(context.Background(), hw)
	assert.Error(t, err)
}

func TestPlaybackLoopsBackToCapture(t *testing.T) {
	ctx := context.Background()
	tx := NewLoopback()
	play := NewBinding(1, "SSP", 0, DirectionPlayback, 256, tx)
	capture := NewBinding(ids.DAIBindingID(2), "SSP", 0, DirectionCapture, 256, tx)
	hw := HWParams{Params: audioformat.Params{Rate: 48000, Channels: 2, Format: audioformat.FormatS16LE}, PeriodFrames: 4}

	require.NoError(t, play.Claim())
	require.NoError(t, play.SetConfig(ctx, hw))
	require.NoError(t, capture.Claim())
	require.NoError(t, capture.SetConfig(ctx, hw))

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	require.NoError(t, play.Put(ctx, data))

	out := make([]byte, len(data))
	n, err := capture.Get(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, out)
}

func TestLLPAdvancesMonotonicallyAfterTransfers(t *testing.T) {
	ctx := context.Background()
	tx := NewLoopback()
	play := NewBinding(1, "SSP", 0, DirectionPlayback, 256, tx)
	hw := HWParams{Params: audioformat.Params{Rate: 48000, Channels: 2, Format: audioformat.FormatS16LE}, PeriodFrames: 4}
	require.NoError(t, play.Claim())
	require.NoError(t, play.SetConfig(ctx, hw))

	_, low0 := play.LLP()
	require.NoError(t, play.Put(ctx, make([]byte, 32)))
	_, low1 := play.LLP()
	assert.Greater(t, low1, low0)
}
