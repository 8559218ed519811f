package journal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictError_OmitsContent(t *testing.T) {
	err := &ConflictError{
		Key:           Key{Date: "2026-10-01", Type: TypeDaily},
		LocalVersion:  1,
		RemoteVersion: 2,
		RemoteContent: "private thoughts",
	}
	assert.NotContains(t, err.Error(), "private")
	assert.Contains(t, err.Error(), "local=1")
	assert.Contains(t, err.Error(), "remote=2")
}

func TestStorageError_HidesCause(t *testing.T) {
	cause := errors.New("sqlite3: disk I/O error near table entries")
	err := NewStorageError("save", Key{Date: "2026-10-01", Type: TypeDaily}, cause)

	assert.NotContains(t, err.Error(), "sqlite3")
	assert.ErrorIs(t, err, cause)
	assert.True(t, err.Retryable)
}

func TestNewStorageError_Timeout(t *testing.T) {
	err := NewStorageError("save", Key{}, fmt.Errorf("begin: %w", context.DeadlineExceeded))
	assert.Equal(t, "timeout", err.Op)
	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewStorageError_KeepsExisting(t *testing.T) {
	inner := &StorageError{Op: "delete", Retryable: false}
	got := NewStorageError("save", Key{}, fmt.Errorf("wrapped: %w", inner))
	assert.Same(t, inner, got)
}

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCode
	}{
		{&ValidationError{Field: "date"}, CodeValidation},
		{fmt.Errorf("save: %w", &ConflictError{}), CodeConflict},
		{&StorageError{Op: "save"}, CodeStorage},
		{errors.New("other"), ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Code(tt.err), "%v", tt.err)
	}
}
