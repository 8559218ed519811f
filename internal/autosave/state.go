package autosave

import "fmt"

// State is the save state of a Document.
type State int

const (
	// Idle means the content matches the last committed version.
	Idle State = iota
	// Dirty means unsaved edits are waiting for a timer.
	Dirty
	// Saving means a save is in flight or waiting to be retried.
	Saving
	// Saved is the transient state after a successful save; the document
	// moves on to Idle, or back to Dirty when edits arrived meanwhile.
	Saved
	// Error means the last save failed for good. Content stays editable.
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
