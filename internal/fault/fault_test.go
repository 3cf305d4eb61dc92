package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindInvalidRatio, "ratio mismatch")
	assert.Equal(t, KindInvalidRatio, KindOf(err))

	wrapped := fmt.Errorf("ingest: %w", err)
	assert.Equal(t, KindInvalidRatio, KindOf(wrapped))

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindStorage, cause, "put object")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "StorageFailed")
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsInput(t *testing.T) {
	assert.True(t, IsInput(New(KindFileNotSupported, "nope")))
	assert.True(t, IsInput(New(KindMissingFile, "nope")))
	assert.False(t, IsInput(New(KindStorage, "nope")))
	assert.False(t, IsInput(errors.New("plain")))
}
