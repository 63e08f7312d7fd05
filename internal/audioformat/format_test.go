package audioformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBytesStereoS16(t *testing.T) {
	p := Params{Rate: 48000, Channels: 2, Format: FormatS16LE}
	fb, err := p.FrameBytes()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), fb)
}

func TestPeriodBytes(t *testing.T) {
	p := Params{Rate: 48000, Channels: 2, Format: FormatS32LE}
	pb, err := p.PeriodBytes(48)
	require.NoError(t, err)
	assert.Equal(t, uint32(48*2*4), pb)
}

func TestS24StoredInFourByteContainer(t *testing.T) {
	sb, err := FormatS24LE.SampleBytes()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), sb)
}

func TestParamsEqual(t *testing.T) {
	a := Params{Rate: 48000, Channels: 2, Format: FormatS16LE}
	b := Params{Rate: 48000, Channels: 2, Format: FormatS16LE}
	c := Params{Rate: 44100, Channels: 2, Format: FormatS16LE}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestChannelConfigChannelCounts(t *testing.T) {
	assert.Equal(t, 2, ChannelConfigStereo.Channels())
	assert.Equal(t, 6, ChannelConfig5Point1.Channels())
}
