package utils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError(ErrCodeDatabase, "Failed to save log", "disk full")
	assert.Equal(t, "DATABASE_ERROR: Failed to save log (disk full)", err.Error())
	assert.NotEmpty(t, err.File)
	assert.NotZero(t, err.Line)

	bare := NewAppError(ErrCodeNotFound, "No article found")
	assert.Equal(t, "NOT_FOUND: No article found", bare.Error())
}

func TestErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("list logs: %w", NewAppError(ErrCodeStorageUnavailable, "Mongo not connected"))

	assert.Equal(t, ErrCodeStorageUnavailable, ErrorCode(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeStorageUnavailable))
	assert.Equal(t, ErrCodeInternal, ErrorCode(fmt.Errorf("plain")))
	assert.False(t, HasCode(nil, ErrCodeInternal))
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	err := InitLogger("loud", "json", "discard", "")
	assert.True(t, HasCode(err, ErrCodeConfiguration))

	assert.NoError(t, InitLogger("debug", "text", "discard", ""))
	assert.Equal(t, "debug", GetLogger().GetLevel().String())
}
