package journal

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode categorizes errors surfaced to callers.
type ErrorCode string

const (
	// CodeValidation marks a rejected request. Never retried.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeConflict marks a lost-update conflict. Never auto-resolved.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeStorage marks an I/O, lock or timeout failure.
	CodeStorage ErrorCode = "STORAGE"
)

// ValidationError reports a malformed save request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", CodeValidation, e.Field, e.Reason)
}

// ConflictError reports that the stored version differs from the version
// the caller expected. LocalVersion is NoVersion for a create.
type ConflictError struct {
	Key           Key
	LocalVersion  int64
	RemoteVersion int64

	// RemoteContent is the currently stored content. It is never part of
	// the error string.
	RemoteContent string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s changed elsewhere (local=%d, remote=%d)",
		CodeConflict, e.Key, e.LocalVersion, e.RemoteVersion)
}

// StorageError reports a persistence failure. The wrapped cause is kept for
// logs but is not rendered by Error.
type StorageError struct {
	Op        string
	Key       Key
	Retryable bool
	Err       error
}

func (e *StorageError) Error() string {
	target := e.Key.String()
	if e.Key == (Key{}) {
		target = "store"
	}
	if e.Retryable {
		return fmt.Sprintf("%s: %s failed for %s (retryable)", CodeStorage, e.Op, target)
	}
	return fmt.Sprintf("%s: %s failed for %s", CodeStorage, e.Op, target)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err as a StorageError. Deadline and cancellation
// errors become retryable timeouts.
func NewStorageError(op string, key Key, err error) *StorageError {
	var se *StorageError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &StorageError{Op: "timeout", Key: key, Retryable: true, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return &StorageError{Op: op, Key: key, Retryable: true, Err: err}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsStorage reports whether err is or wraps a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Code returns the category of err, or "" for errors outside the taxonomy.
func Code(err error) ErrorCode {
	switch {
	case IsValidation(err):
		return CodeValidation
	case IsConflict(err):
		return CodeConflict
	case IsStorage(err):
		return CodeStorage
	}
	return ""
}
