// Package conflict decides whether a versioned write may proceed.
//
// Resolve is a compare-and-swap check with no I/O: a write is accepted only
// when the version the caller observed equals the stored version. Versions
// are never locked across user think-time; a lost race costs a rejected
// write, never a blocked reader or writer.
package conflict

import "github.com/roach88/quill/internal/journal"

// Outcome is the result kind of a resolution.
type Outcome int

const (
	// Accept means the write may proceed with NextVersion.
	Accept Outcome = iota + 1
	// Conflict means the stored version moved since the caller observed it.
	Conflict
)

func (o Outcome) String() string {
	switch o {
	case Accept:
		return "accept"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Decision is the outcome of comparing expected and stored versions.
type Decision struct {
	Outcome     Outcome
	NextVersion int64 // valid when Outcome == Accept
	Local       int64 // version the caller expected
	Remote      int64 // version currently stored
}

// Resolve compares the caller's expected version with the stored version.
// journal.NoVersion on either side means "absent": creating over an absent
// entry is accepted at version 1.
func Resolve(expected, stored int64) Decision {
	if expected == stored {
		return Decision{Outcome: Accept, NextVersion: stored + 1, Local: expected, Remote: stored}
	}
	return Decision{Outcome: Conflict, Local: expected, Remote: stored}
}

// Err converts a conflicting decision into a journal.ConflictError.
// It returns nil for accepted decisions.
func (d Decision) Err(key journal.Key, remoteContent string) error {
	if d.Outcome != Conflict {
		return nil
	}
	return &journal.ConflictError{
		Key:           key,
		LocalVersion:  d.Local,
		RemoteVersion: d.Remote,
		RemoteContent: remoteContent,
	}
}
