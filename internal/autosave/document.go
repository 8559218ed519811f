package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/roach88/quill/internal/clock"
	"github.com/roach88/quill/internal/events"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/writer"
)

// Document is one open entry under auto-save.
//
// Thread-safety: all methods are safe for concurrent use.
type Document struct {
	s   *Scheduler
	key journal.Key

	mu           sync.Mutex
	state        State
	content      string // current editor content
	savedContent string // content of the last committed version
	savedDigest  string
	version      int64 // last committed version known to this document
	lastEntry    journal.Entry
	err          error
	conflict     *journal.ConflictError
	closed       bool

	// Each timer carries a generation; a callback whose generation is
	// stale is ignored.
	debounce, ceiling, retry          clock.Timer
	debounceGen, ceilingGen, retryGen uint64

	backoff  retry.Backoff
	attempt  int
	dispatch uint64        // sequence of dispatched attempts
	inflight chan struct{} // closed when the in-flight attempt completes
}

// Key returns the entry key.
func (d *Document) Key() journal.Key {
	return d.key
}

// State returns the current state.
func (d *Document) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Err returns the error that put the document into Error, if any.
func (d *Document) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Version returns the last committed version known to the document.
func (d *Document) Version() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Content returns the current editor content.
func (d *Document) Content() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content
}

// Conflict returns the pending conflict, or nil.
func (d *Document) Conflict() *journal.ConflictError {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conflict
}

// Edit records new editor content.
func (d *Document) Edit(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.content = content

	switch d.state {
	case Saving:
		// The completion handler compares against the latest content.
	case Dirty:
		d.armDebounce()
	case Error:
		if d.conflict != nil {
			// Only drafts are written until the conflict is resolved.
			d.armDebounce()
			return
		}
		d.setState(Dirty)
		d.armCeiling()
		d.armDebounce()
	default: // Idle, Saved
		if d.s.digest(content) == d.savedDigest {
			return
		}
		d.setState(Dirty)
		d.armCeiling()
		d.armDebounce()
	}
}

// SaveNow cancels both timers and saves synchronously, bypassing the
// debounce. It waits for an in-flight save first. A storage failure is
// returned after one attempt, without backoff. When nothing changed since
// the last commit it returns the last committed entry.
func (d *Document) SaveNow(ctx context.Context) (journal.Entry, error) {
	d.mu.Lock()
	if err := d.waitInflightLocked(ctx); err != nil {
		d.mu.Unlock()
		return journal.Entry{}, err
	}
	if d.closed {
		d.mu.Unlock()
		return journal.Entry{}, ErrClosed
	}
	return d.saveNowLocked(ctx)
}

// saveNowLocked is called with d.mu held and no attempt in flight; it
// releases the lock.
func (d *Document) saveNowLocked(ctx context.Context) (journal.Entry, error) {
	d.stopTimers()

	if d.conflict != nil {
		err := d.conflict
		d.mu.Unlock()
		return journal.Entry{}, err
	}

	content := d.content
	if d.s.digest(content) == d.savedDigest {
		if d.state != Idle {
			d.setState(Idle)
		}
		entry := d.lastEntry
		d.mu.Unlock()
		return entry, nil
	}

	d.attempt = 1
	d.backoff = nil
	seq, req, done := d.beginLocked(content)
	d.mu.Unlock()

	entry, err := d.attemptSave(ctx, req, 1)

	d.mu.Lock()
	d.completeLocked(seq, content, entry, err, false)
	d.finishLocked(done)
	d.mu.Unlock()
	return entry, err
}

// KeepMine resolves a pending conflict by saving the local content over
// the remote version.
func (d *Document) KeepMine(ctx context.Context) (journal.Entry, error) {
	d.mu.Lock()
	if d.conflict == nil {
		d.mu.Unlock()
		return journal.Entry{}, ErrNoConflict
	}
	d.version = d.conflict.RemoteVersion
	d.savedContent = d.conflict.RemoteContent
	d.savedDigest = d.s.digest(d.conflict.RemoteContent)
	d.conflict = nil
	d.err = nil
	if err := d.waitInflightLocked(ctx); err != nil {
		d.mu.Unlock()
		return journal.Entry{}, err
	}
	return d.saveNowLocked(ctx)
}

// KeepTheirs resolves a pending conflict by adopting the remote content
// and version, discarding local edits. It returns the adopted content.
func (d *Document) KeepTheirs() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conflict == nil {
		return "", ErrNoConflict
	}
	d.stopTimers()
	c := d.conflict
	d.content = c.RemoteContent
	d.savedContent = c.RemoteContent
	d.savedDigest = d.s.digest(c.RemoteContent)
	d.version = c.RemoteVersion
	d.conflict = nil
	d.err = nil
	d.setState(Idle)
	return c.RemoteContent, nil
}

// Close flushes unsaved content with one save attempt and stops tracking
// the document. Content that could not be saved remains in its draft.
func (d *Document) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	if err := d.waitInflightLocked(ctx); err != nil {
		d.mu.Unlock()
		return err
	}
	d.closed = true
	d.s.forget(d)

	var err error
	if d.conflict == nil && d.s.digest(d.content) != d.savedDigest {
		_, err = d.saveNowLocked(ctx)
	} else {
		d.stopTimers()
		d.mu.Unlock()
	}
	return err
}

// waitInflightLocked stops the retry timer and waits, releasing and
// reacquiring d.mu, until no attempt is in flight.
func (d *Document) waitInflightLocked(ctx context.Context) error {
	d.stopTimers()
	for d.inflight != nil {
		done := d.inflight
		d.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			d.mu.Lock()
			return journal.NewStorageError("save", d.key, ctx.Err())
		}
		d.mu.Lock()
		d.stopTimers()
	}
	return nil
}

// fire is the debounce and ceiling callback.
func (d *Document) fire(gen uint64, ceiling bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ceiling && gen != d.ceilingGen || !ceiling && gen != d.debounceGen {
		return
	}
	if d.closed {
		return
	}
	if d.conflict != nil {
		// Keep the draft current; committing would conflict again.
		d.stopTimers()
		go d.writeDraft(d.content, d.s.opts.Clock.Now())
		return
	}
	if d.state != Dirty {
		return
	}
	d.stopTimers()

	if d.s.digest(d.content) == d.savedDigest {
		d.setState(Idle)
		return
	}

	d.attempt = 0
	d.backoff = retry.WithMaxRetries(uint64(d.s.opts.MaxAttempts-1), retry.NewExponential(d.s.opts.BaseDelay))
	d.dispatchLocked()
}

// retryFire is the backoff callback.
func (d *Document) retryFire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.retryGen || d.closed || d.state != Saving || d.inflight != nil {
		return
	}
	d.retry = nil
	d.dispatchLocked()
}

// dispatchLocked starts an asynchronous attempt with the latest content.
func (d *Document) dispatchLocked() {
	d.attempt++
	attempt := d.attempt
	content := d.content
	seq, req, done := d.beginLocked(content)

	go func() {
		entry, err := d.attemptSave(context.Background(), req, attempt)

		d.mu.Lock()
		defer d.mu.Unlock()
		d.completeLocked(seq, content, entry, err, true)
		d.finishLocked(done)
	}()
}

// beginLocked enters Saving and registers a new in-flight attempt.
func (d *Document) beginLocked(content string) (uint64, journal.SaveRequest, chan struct{}) {
	d.setState(Saving)
	d.dispatch++
	done := make(chan struct{})
	d.inflight = done
	return d.dispatch, journal.SaveRequest{Key: d.key, Content: content, ExpectedVersion: d.version}, done
}

func (d *Document) finishLocked(done chan struct{}) {
	if d.inflight == done {
		d.inflight = nil
	}
	close(done)
}

// attemptSave writes the draft, then commits. Runs without d.mu.
func (d *Document) attemptSave(ctx context.Context, req journal.SaveRequest, attempt int) (journal.Entry, error) {
	d.writeDraft(req.Content, d.s.opts.Clock.Now())

	ctx, cancel := context.WithTimeout(writer.WithAttempt(ctx, attempt), d.s.opts.Timeout)
	defer cancel()
	return d.s.saver.Save(ctx, req)
}

func (d *Document) writeDraft(content string, at time.Time) {
	if d.s.drafts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.s.opts.Timeout)
	defer cancel()

	err := d.s.drafts.Put(ctx, journal.Draft{
		SessionID: d.s.opts.SessionID,
		Key:       d.key,
		Content:   content,
		SavedAt:   at,
	})
	if err != nil {
		d.s.opts.Metrics.DraftsWritten.WithLabelValues("error").Inc()
		d.s.opts.Logger.Warn("draft write failed",
			"operation", "write_draft",
			"key", d.key.String(),
			"error", err,
		)
		return
	}
	d.s.opts.Metrics.DraftsWritten.WithLabelValues("ok").Inc()
}

// completeLocked applies the result of attempt seq.
func (d *Document) completeLocked(seq uint64, content string, entry journal.Entry, err error, retryable bool) {
	if seq != d.dispatch {
		// Superseded; the version check made this result a conflict or a
		// no-op, and a newer attempt owns the state.
		return
	}

	var ce *journal.ConflictError
	switch {
	case err == nil:
		d.version = entry.Version
		d.lastEntry = entry
		d.savedContent = content
		d.savedDigest = d.s.digest(content)
		d.err = nil
		d.attempt = 0
		d.setState(Saved)
		if d.closed {
			return
		}
		if d.s.digest(d.content) != d.savedDigest {
			d.setState(Dirty)
			d.armCeiling()
			d.armDebounce()
			return
		}
		d.setState(Idle)

	case errors.As(err, &ce):
		d.conflict = ce
		d.err = err
		d.setState(Error)

	case retryable && journal.IsStorage(err) && d.backoff != nil && !d.closed:
		delay, stop := d.backoff.Next()
		if stop {
			d.fail(err)
			return
		}
		d.s.opts.Logger.Info("save failed, retrying",
			"operation", "autosave",
			"key", d.key.String(),
			"attempt", d.attempt,
			"retry_in", delay,
		)
		d.retryGen++
		gen := d.retryGen
		d.retry = d.s.opts.Clock.AfterFunc(delay, func() { d.retryFire(gen) })

	default:
		d.fail(err)
	}
}

func (d *Document) fail(err error) {
	d.err = err
	d.setState(Error)
	d.s.opts.Logger.Error("save failed",
		"operation", "autosave",
		"key", d.key.String(),
		"attempt", d.attempt,
		"error", err,
	)
	if d.s.opts.Bus != nil {
		d.s.opts.Bus.Publish(events.Event{
			Kind:   events.SaveFailed,
			Key:    d.key,
			At:     d.s.opts.Clock.Now(),
			Code:   journal.Code(err),
			Reason: err.Error(),
		})
	}
}

func (d *Document) armDebounce() {
	if d.debounce != nil {
		d.debounce.Stop()
	}
	d.debounceGen++
	gen := d.debounceGen
	d.debounce = d.s.opts.Clock.AfterFunc(d.s.opts.Debounce, func() { d.fire(gen, false) })
}

func (d *Document) armCeiling() {
	if d.ceiling != nil {
		d.ceiling.Stop()
	}
	d.ceilingGen++
	gen := d.ceilingGen
	d.ceiling = d.s.opts.Clock.AfterFunc(d.s.opts.Ceiling, func() { d.fire(gen, true) })
}

func (d *Document) stopTimers() {
	if d.debounce != nil {
		d.debounce.Stop()
		d.debounce = nil
	}
	if d.ceiling != nil {
		d.ceiling.Stop()
		d.ceiling = nil
	}
	if d.retry != nil {
		d.retry.Stop()
		d.retry = nil
	}
	d.debounceGen++
	d.ceilingGen++
	d.retryGen++
}

func (d *Document) setState(s State) {
	d.state = s
	if d.s.opts.OnStateChange != nil {
		d.s.opts.OnStateChange(d.key, s)
	}
}
