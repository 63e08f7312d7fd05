package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-audio/dspcore/internal/tlv"
)

func TestParseDecodesBlockHeaderAndTokens(t *testing.T) {
	var body []byte
	body = tlv.Encode(body, 1, []byte{0x01, 0x00, 0x00, 0x00})
	var blob []byte
	blob = EncodeBlock(blob, BlockComponent, 0xABCD, 1, body)

	blocks, err := NewParser().Parse(blob)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockComponent, blocks[0].Type)
	assert.Equal(t, uint32(0xABCD), blocks[0].VendorID)
	require.Len(t, blocks[0].Tokens, 1)
}

func TestParseHandlesMultipleBlocks(t *testing.T) {
	var blob []byte
	blob = EncodeBlock(blob, BlockPipeline, 0, 0, nil)
	blob = EncodeBlock(blob, BlockBuffer, 0, 1, nil)

	blocks, err := NewParser().Parse(blob)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, BlockPipeline, blocks[0].Type)
	assert.Equal(t, BlockBuffer, blocks[1].Type)
}

func TestParseRejectsOversizedBlockDeclaration(t *testing.T) {
	blob := []byte{0, 0, 0, 0, 255, 255, 255, 255, 0, 0, 0, 0, 0, 0, 0, 0}
	_, err := NewParser().Parse(blob)
	assert.Error(t, err)
}
