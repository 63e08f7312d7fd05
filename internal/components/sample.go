// Package components implements the concrete processing components:
// volume, mixer, mux/demux, channel selector, DC blocker, key-phrase
// buffer, the synchronous and
// asynchronous sample-rate converters, a dynamic range compressor,
// FIR/IIR equalizers, a tone generator, and the host/copier shim
// components that bind a pipeline endpoint to the mailbox or a DAI
// gateway. Every type here implements component.Component; the pipeline
// package never knows these concrete names, only the vtable.
//
package components

import (
	"encoding/binary"
	"math"

	"github.com/jangala-audio/dspcore/internal/audioformat"
)

// readSample decodes one sample at byte offset off in the given format,
// returning it sign-extended into an int64 so saturating arithmetic has
// headroom regardless of the source bit width.
func readSample(b []byte, off uint32, format audioformat.Format) int64 {
	switch format {
	case audioformat.FormatS16LE:
		return int64(int16(binary.LittleEndian.Uint16(b[off:])))
	case audioformat.FormatS24LE, audioformat.FormatS32LE:
		return int64(int32(binary.LittleEndian.Uint32(b[off:])))
	case audioformat.FormatFloatLE:
		f := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		return int64(f * (1 << 23))
	default:
		return 0
	}
}

// writeSample encodes v (at the same fixed-point scale readSample uses)
// back into the given format at byte offset off, saturating to the
// format's valid range first.
func writeSample(b []byte, off uint32, format audioformat.Format, v int64) {
	switch format {
	case audioformat.FormatS16LE:
		binary.LittleEndian.PutUint16(b[off:], uint16(int16(saturate(v, 16))))
	case audioformat.FormatS24LE:
		binary.LittleEndian.PutUint32(b[off:], uint32(int32(saturate(v, 24))))
	case audioformat.FormatS32LE:
		binary.LittleEndian.PutUint32(b[off:], uint32(int32(saturate(v, 32))))
	case audioformat.FormatFloatLE:
		f := float32(v) / (1 << 23)
		binary.LittleEndian.PutUint32(b[off:], math.Float32bits(f))
	}
}

// saturate clamps v to the signed range representable in `bits` bits.
func saturate(v int64, bits int) int64 {
	max := int64(1)<<(bits-1) - 1
	min := -(int64(1) << (bits - 1))
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

// frameCount returns how many whole frames of params fit in n bytes.
func frameCount(n uint32, params audioformat.Params) uint32 {
	fb, err := params.FrameBytes()
	if err != nil || fb == 0 {
		return 0
	}
	return n / fb
}
