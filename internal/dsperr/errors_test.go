package dsperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMatchesSentinel(t *testing.T) {
	err := New(CodeBadState, "component not ready")
	assert.True(t, errors.Is(err, BadState))
	assert.False(t, errors.Is(err, Busy))
	assert.Equal(t, CodeBadState, CodeOf(err))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("pool exhausted")
	err := Wrap(CodeNoMemory, "alloc failed", cause)
	assert.True(t, errors.Is(err, NoMemory))
	assert.ErrorIs(t, err, cause)
}

func TestReplyStatusSuccessIsZero(t *testing.T) {
	assert.Equal(t, uint32(0), ReplyStatus(CodeNone))
	assert.NotEqual(t, uint32(0), ReplyStatus(CodeBadParam))
}

func TestCodeOfNonDspErrorIsNone(t *testing.T) {
	assert.Equal(t, CodeNone, CodeOf(errors.New("plain")))
}
