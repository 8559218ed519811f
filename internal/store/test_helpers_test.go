package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/quill/internal/journal"
)

// fixedNow is the wall time stamped by test stores.
var fixedNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path, Options{Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// saveReq builds a save request with minimal required fields.
func saveReq(date string, typ journal.Type, content string, expected int64) journal.SaveRequest {
	return journal.SaveRequest{
		Key:             journal.Key{Date: journal.Date(date), Type: typ},
		Content:         content,
		ExpectedVersion: expected,
	}
}
