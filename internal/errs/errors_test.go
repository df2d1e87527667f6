package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := New(KindUnknownSchema, "unknown schema: %s", "Nope")
	assert.True(t, errors.Is(err, ErrUnknownSchema))
	assert.False(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, ErrCodeUnknown, err.Code)

	wrapped := fmt.Errorf("structuring: %w", err)
	assert.True(t, errors.Is(wrapped, ErrUnknownSchema))
	assert.Equal(t, KindUnknownSchema, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindConnectionFailure, cause, "vector store unreachable").WithDetail("index", "x")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp: refused")
	assert.Equal(t, "x", err.Details["index"])
}
