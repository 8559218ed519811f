// Package journal defines the journal data model shared by every other
// package: entries, drafts, their identity keys, the save-time
// normalization rules, and the error taxonomy surfaced to callers.
//
// # Identity
//
// An entry is identified by the pair (date, type). At most one live entry
// exists per key; saving to a key is an upsert guarded by the entry version.
//
// # Error taxonomy
//
//   - ValidationError: caller mistake, never retried
//   - ConflictError: stored version moved, caller decides Keep Mine / Keep Theirs
//   - StorageError: I/O, lock or timeout failure, retryable by policy
//
// Error strings never include entry content or storage-engine messages.
// The underlying cause stays reachable through errors.Unwrap for logging.
package journal
