// Package audioformat defines the sample format, interleaving, and
// channel-configuration enums shared by every component and buffer in
// the pipeline, plus the frame/period byte-size arithmetic everything
// builds on: frame_bytes = channels * sample_bytes(format),
// period_bytes = frames * frame_bytes.
package audioformat

import "fmt"

// Format is a PCM sample encoding.
type Format int

const (
	FormatS16LE Format = iota
	FormatS24LE
	FormatS32LE
	FormatFloatLE
)

func (f Format) String() string {
	switch f {
	case FormatS16LE:
		return "s16_le"
	case FormatS24LE:
		return "s24_le"
	case FormatS32LE:
		return "s32_le"
	case FormatFloatLE:
		return "float_le"
	default:
		return "unknown"
	}
}

// SampleBytes returns the storage width of one sample in this format.
// S24LE is stored in a 32-bit container: 24 valid bits, 4-byte stride.
func (f Format) SampleBytes() (uint32, error) {
	switch f {
	case FormatS16LE:
		return 2, nil
	case FormatS24LE:
		return 4, nil
	case FormatS32LE:
		return 4, nil
	case FormatFloatLE:
		return 4, nil
	default:
		return 0, fmt.Errorf("audioformat: unknown format %d", f)
	}
}

// Interleaving describes how channels are arranged in a period buffer.
type Interleaving int

const (
	Interleaved Interleaving = iota
	NonInterleaved
)

func (i Interleaving) String() string {
	if i == NonInterleaved {
		return "non_interleaved"
	}
	return "interleaved"
}

// ChannelConfig names a fixed channel layout, mirroring the sum of
// layouts streams negotiate (mono/stereo up to the full surround
// configurations); components that do per-channel routing
// (mux/demux) index channels positionally rather than by this enum, so
// it exists for negotiation and logging, not for indexing.
type ChannelConfig int

const (
	ChannelConfigMono ChannelConfig = iota
	ChannelConfigStereo
	ChannelConfig2Point1
	ChannelConfig4Point0
	ChannelConfig5Point1
	ChannelConfig7Point1
)

func (c ChannelConfig) String() string {
	switch c {
	case ChannelConfigMono:
		return "mono"
	case ChannelConfigStereo:
		return "stereo"
	case ChannelConfig2Point1:
		return "2.1"
	case ChannelConfig4Point0:
		return "4.0"
	case ChannelConfig5Point1:
		return "5.1"
	case ChannelConfig7Point1:
		return "7.1"
	default:
		return "unknown"
	}
}

// Channels returns the channel count implied by a named configuration.
func (c ChannelConfig) Channels() int {
	switch c {
	case ChannelConfigMono:
		return 1
	case ChannelConfigStereo:
		return 2
	case ChannelConfig2Point1:
		return 3
	case ChannelConfig4Point0:
		return 4
	case ChannelConfig5Point1:
		return 6
	case ChannelConfig7Point1:
		return 8
	default:
		return 0
	}
}

// Params fully describes a stream's audio shape, the unit pipeline
// params negotiation passes hop by hop.
type Params struct {
	Rate     uint32
	Channels uint32
	Format   Format
	Interlv  Interleaving
}

// FrameBytes returns the byte size of one frame (one sample per channel).
func (p Params) FrameBytes() (uint32, error) {
	sb, err := p.Format.SampleBytes()
	if err != nil {
		return 0, err
	}
	return p.Channels * sb, nil
}

// PeriodBytes returns the byte size of a period of the given frame count.
func (p Params) PeriodBytes(frames uint32) (uint32, error) {
	fb, err := p.FrameBytes()
	if err != nil {
		return 0, err
	}
	return frames * fb, nil
}

// Equal reports whether two params describe the same stream shape.
func (p Params) Equal(o Params) bool {
	return p.Rate == o.Rate && p.Channels == o.Channels && p.Format == o.Format && p.Interlv == o.Interlv
}
