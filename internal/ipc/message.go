package ipc

import (
	"encoding/binary"
	"fmt"
)

// Envelope is one mailbox-delivered message: the 32-bit primary header
// plus its size-prefixed payload.
type Envelope struct {
	Header Header
	Body   []byte
}

// headerSize is the wire width of the primary header.
const headerSize = 4

// Encode serializes the envelope as the host would find it in the
// mailbox window: header, then body verbatim.
func (e Envelope) Encode() []byte {
	out := make([]byte, headerSize+len(e.Body))
	binary.LittleEndian.PutUint32(out, uint32(e.Header))
	copy(out[headerSize:], e.Body)
	return out
}

// DecodeEnvelope reads one envelope off the mailbox, bounds-checking the
// header before touching the body.
func DecodeEnvelope(data []byte) (Envelope, error) {
	if len(data) < headerSize {
		return Envelope{}, fmt.Errorf("ipc: message shorter than primary header")
	}
	h := Header(binary.LittleEndian.Uint32(data))
	return Envelope{Header: h, Body: data[headerSize:]}, nil
}

// reply builds the response envelope for req: same class/command, status
// in the payload field, body is whatever the handler produced.
func reply(req Envelope, status uint32, body []byte) Envelope {
	return Envelope{Header: req.Header.WithPayload(status), Body: body}
}

// --- small wire helpers shared by payloads.go ---

// a cursor reads sequential fixed-width fields and length-prefixed
// variable sections out of a body buffer, returning a bounds error
// instead of panicking on a short or malicious message.
type cursor struct {
	data []byte
	off  int
}

func newCursor(data []byte) *cursor { return &cursor{data: data} }

func (c *cursor) need(n int) error {
	if c.off+n > len(c.data) {
		return fmt.Errorf("ipc: message truncated at offset %d, need %d more bytes", c.off, n)
	}
	return nil
}

func (c *cursor) u8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) i64() (int64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return int64(v), nil
}

func (c *cursor) bytes16() ([16]byte, error) {
	var out [16]byte
	if err := c.need(16); err != nil {
		return out, err
	}
	copy(out[:], c.data[c.off:c.off+16])
	c.off += 16
	return out, nil
}

// lenPrefixed reads a uint32 byte count followed by that many bytes —
// the shared shape for names and config blobs.
func (c *cursor) lenPrefixed() ([]byte, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	if err := c.need(int(n)); err != nil {
		return nil, err
	}
	out := c.data[c.off : c.off+int(n)]
	c.off += int(n)
	return out, nil
}

func (c *cursor) string() (string, error) {
	b, err := c.lenPrefixed()
	return string(b), err
}

func putU32(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func putLenPrefixed(dst []byte, v []byte) []byte {
	dst = putU32(dst, uint32(len(v)))
	return append(dst, v...)
}
