package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfThroughWrapping(t *testing.T) {
	base := NotFound("document_not_found", "document not found")
	wrapped := fmt.Errorf("delete document: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "document_not_found", CodeOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(wrapped, KindValidation))
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal_error", CodeOf(err))
	assert.False(t, Is(nil, KindInternal))
}

func TestStorageUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage("write chunks failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "write chunks failed: connection reset", err.Error())
	assert.Equal(t, "storage", err.Kind.String())
}
