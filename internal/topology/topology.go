// Package topology parses the binary topology blob: a
// sequence of blocks, each a fixed header ({block_type, block_size,
// vendor_id, sub_id}) followed by block_size bytes of TLV token entries
// describing one pipeline, component, or DAI binding to instantiate.
//
package topology

import (
	"encoding/binary"
	"fmt"

	"github.com/jangala-audio/dspcore/internal/tlv"
)

// BlockType names the kind of entity one topology block declares.
type BlockType uint32

const (
	BlockPipeline BlockType = iota
	BlockComponent
	BlockBuffer
	BlockDAI
)

func (b BlockType) String() string {
	switch b {
	case BlockPipeline:
		return "pipeline"
	case BlockComponent:
		return "component"
	case BlockBuffer:
		return "buffer"
	case BlockDAI:
		return "dai"
	default:
		return "unknown"
	}
}

// blockHeaderSize is the fixed {block_type, block_size, vendor_id, sub_id}
// prefix of every block, four uint32 fields.
const blockHeaderSize = 16

// Block is one parsed topology block: its header fields plus the token
// array describing it.
type Block struct {
	Type     BlockType
	VendorID uint32
	SubID    uint32
	Tokens   []tlv.Token
}

// Parser is a one-shot binary topology blob parser.
type Parser struct{}

// NewParser returns a topology blob parser.
func NewParser() *Parser { return &Parser{} }

// Parse decodes every block in a binary topology blob. A block whose
// declared block_size would run past the end of the blob is a bounds
// error; an unrecognized BlockType is kept (not rejected) so that future
// block kinds can be skipped by callers that don't understand them yet.
func (p *Parser) Parse(content []byte) ([]Block, error) {
	var blocks []Block
	off := 0
	for off < len(content) {
		if off+blockHeaderSize > len(content) {
			return nil, fmt.Errorf("topology: truncated block header at offset %d", off)
		}
		blockType := BlockType(binary.LittleEndian.Uint32(content[off:]))
		blockSize := binary.LittleEndian.Uint32(content[off+4:])
		vendorID := binary.LittleEndian.Uint32(content[off+8:])
		subID := binary.LittleEndian.Uint32(content[off+12:])

		start := off + blockHeaderSize
		end := start + int(blockSize)
		if end < start || end > len(content) {
			return nil, fmt.Errorf("topology: block at offset %d declares size %d past end of blob", off, blockSize)
		}

		var tokens []tlv.Token
		if err := tlv.Walk(content[start:end], func(t tlv.Token) error {
			tokens = append(tokens, t)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("topology: block at offset %d: %w", off, err)
		}

		blocks = append(blocks, Block{Type: blockType, VendorID: vendorID, SubID: subID, Tokens: tokens})
		off = end
	}
	return blocks, nil
}

// EncodeBlock appends one block (header + token TLV body) to dst, used
// by tests constructing fixtures.
func EncodeBlock(dst []byte, blockType BlockType, vendorID, subID uint32, body []byte) []byte {
	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(blockType))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(body)))
	binary.LittleEndian.PutUint32(hdr[8:], vendorID)
	binary.LittleEndian.PutUint32(hdr[12:], subID)
	dst = append(dst, hdr[:]...)
	dst = append(dst, body...)
	return dst
}
