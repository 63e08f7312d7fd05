package tlv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkDecodesEveryToken(t *testing.T) {
	var blob []byte
	blob = Encode(blob, 1, []byte{0xAA})
	blob = Encode(blob, 2, []byte{0xBB, 0xCC})

	var got []Token
	require.NoError(t, Walk(blob, func(tok Token) error {
		got = append(got, tok)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, uint32(1), got[0].ID)
	assert.Equal(t, []byte{0xAA}, got[0].Value)
}

func TestWalkSkipsUnknownTokensWithoutAborting(t *testing.T) {
	var blob []byte
	blob = Encode(blob, 99, []byte{1, 2, 3, 4})
	blob = Encode(blob, 1, []byte{0xFF})

	var seen []uint32
	require.NoError(t, Walk(blob, func(tok Token) error {
		seen = append(seen, tok.ID)
		return nil
	}))
	assert.Equal(t, []uint32{99, 1}, seen)
}

func TestWalkRejectsTruncatedEntry(t *testing.T) {
	blob := []byte{1, 0, 0, 0, 255, 255, 255, 255} // length says huge, no value bytes follow
	err := Walk(blob, func(Token) error { return nil })
	assert.Error(t, err)
}

func TestUint32AtRejectsWrongWidth(t *testing.T) {
	_, err := Uint32At(Token{ID: 1, Value: []byte{1, 2}})
	assert.Error(t, err)
}
