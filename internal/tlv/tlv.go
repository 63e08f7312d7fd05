// Package tlv implements the bounds-checked, skip-unknown token walker
// shared by the binary topology blob parser (internal/topology) and the
// IPC extended-init preamble (internal/ipc): a sequence
// of {token uint32, length uint32, value []byte} entries, where an
// unrecognized token is skipped by its declared length rather than
// aborting the walk.
package tlv

import (
	"encoding/binary"
	"fmt"
)

// Token is one decoded entry: a 32-bit token id, its declared value
// length, and the raw value bytes (still encoded, interpretation is up
// to the caller's token table).
type Token struct {
	ID    uint32
	Value []byte
}

// entryHeaderSize is the {token, length} prefix every entry carries.
const entryHeaderSize = 8

// Walk decodes every entry in data, calling visit for each one. If visit
// returns an error the walk stops and returns it. A truncated trailing
// entry (fewer than entryHeaderSize bytes left, or a declared length
// that would run past the end of data) is a bounds error, never a panic
// or an out-of-range slice.
func Walk(data []byte, visit func(Token) error) error {
	off := 0
	for off < len(data) {
		if off+entryHeaderSize > len(data) {
			return fmt.Errorf("tlv: truncated entry header at offset %d", off)
		}
		id := binary.LittleEndian.Uint32(data[off:])
		length := binary.LittleEndian.Uint32(data[off+4:])
		start := off + entryHeaderSize
		end := start + int(length)
		if end < start || end > len(data) {
			return fmt.Errorf("tlv: entry at offset %d declares length %d past end of blob", off, length)
		}
		if err := visit(Token{ID: id, Value: data[start:end]}); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// Encode appends a token to dst, for callers constructing blobs, such
// as tests.
func Encode(dst []byte, id uint32, value []byte) []byte {
	var hdr [entryHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], id)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(value)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, value...)
	return dst
}

// Uint32At decodes a little-endian uint32 token value, erroring if the
// value isn't exactly 4 bytes.
func Uint32At(t Token) (uint32, error) {
	if len(t.Value) != 4 {
		return 0, fmt.Errorf("tlv: token %d: expected 4-byte value, got %d", t.ID, len(t.Value))
	}
	return binary.LittleEndian.Uint32(t.Value), nil
}
