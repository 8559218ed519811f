// Package autosave turns a stream of edits into infrequent durable saves.
//
// Each open Document runs the state machine
//
//	Idle → Dirty → Saving → {Saved → Idle | Error}
//
// driven by two timers. The debounce timer restarts on every edit. The
// ceiling timer is armed when the document becomes Dirty and is never
// reset by further edits, so continuous typing still saves periodically.
// Whichever fires first dispatches a save and clears both.
//
// Every dispatched attempt first writes a draft for (date, type, session);
// a draft failure is logged and never blocks the save, and a failed save
// never loses the draft. Storage failures are retried with exponential
// backoff; conflicts and validation failures are not.
//
// Timers only do bookkeeping. The save itself runs on its own goroutine
// and reaches the entry store through the Saver, typically the single
// writer.
package autosave
