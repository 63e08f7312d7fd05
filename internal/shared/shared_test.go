package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteRoundTrip(t *testing.T) {
	s := New(42)
	s.Write(0, 0, func(v int) int { return v + 1 })
	assert.Equal(t, 43, s.Value())
}

func TestWrappedRangeSplitsAtBoundary(t *testing.T) {
	var calls [][2]uint32
	op := func(offset, length uint32) { calls = append(calls, [2]uint32{offset, length}) }
	s := WithRegion(0, make([]byte, 16), op, op)

	s.WriteWrapped(12, 8, 16, func(v int) int { return v })

	assert.Equal(t, [][2]uint32{{12, 4}, {0, 4}}, calls)
}

func TestNonWrappingRangeIsSingleCall(t *testing.T) {
	var calls [][2]uint32
	op := func(offset, length uint32) { calls = append(calls, [2]uint32{offset, length}) }
	s := WithRegion(0, make([]byte, 16), op, op)

	s.ReadWrapped(2, 4, 16, func(int) {})

	assert.Equal(t, [][2]uint32{{2, 4}}, calls)
}

func TestZeroCapacityIsNoop(t *testing.T) {
	called := false
	op := func(offset, length uint32) { called = true }
	s := WithRegion(0, nil, op, op)
	s.WriteWrapped(0, 4, 0, func(v int) int { return v })
	assert.False(t, called)
}
