package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := New(KindInsufficientStock, "only %d left", 3)

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "only 3 left", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	base := Busy("sku %s is locked", "SKU-1")
	wrapped := fmt.Errorf("record transaction: %w", base)

	assert.Equal(t, KindBusy, KindOf(wrapped))
	assert.Equal(t, "sku SKU-1 is locked", Message(wrapped))
	assert.True(t, Retryable(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, Retryable(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUnavailable, cause, "database unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "database unavailable: connection refused", err.Error())
}
