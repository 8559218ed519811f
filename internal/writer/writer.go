// Package writer serializes every mutation of the entry store through one
// goroutine.
//
// Callers submit requests from any goroutine; Run processes them strictly
// in FIFO order. Saves and deletes block the caller until the writer
// replies or the caller's context ends. Search-history records are fire
// and forget.
package writer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/quill/internal/events"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/metrics"
	"github.com/roach88/quill/internal/store"
)

// DefaultTimeout bounds each storage operation.
const DefaultTimeout = 5 * time.Second

// ErrStopped is the cause of errors returned after the writer stopped.
var ErrStopped = errors.New("writer stopped")

// Store is the persistence the writer drives. *store.Store implements it.
type Store interface {
	SaveEntry(ctx context.Context, req journal.SaveRequest) (journal.Entry, error)
	DeleteEntry(ctx context.Context, key journal.Key) (bool, error)
	RecordSearch(ctx context.Context, rec store.SearchRecord) error
}

// Options configure a Writer. Zero values select defaults.
type Options struct {
	Bus     *events.Bus
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Timeout time.Duration
	Now     func() time.Time
}

type requestKind int

const (
	requestSave requestKind = iota + 1
	requestDelete
	requestHistory
)

func (k requestKind) String() string {
	switch k {
	case requestSave:
		return "save"
	case requestDelete:
		return "delete"
	case requestHistory:
		return "record_search"
	}
	return "unknown"
}

type request struct {
	kind    requestKind
	ctx     context.Context
	seq     int64
	attempt int
	save    journal.SaveRequest
	key     journal.Key
	history store.SearchRecord
	reply   chan result // buffered, size 1; nil for fire-and-forget
}

type result struct {
	entry   journal.Entry
	existed bool
	err     error
}

// Writer is the single-writer actor.
//
// Thread-safety model:
//   - Save, Delete, RecordSearch, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Writer struct {
	store   Store
	queue   *requestQueue
	clock   Clock
	bus     *events.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// New creates a Writer over s. Call Run to start processing.
func New(s Store, opts Options) *Writer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Bus == nil {
		opts.Bus = events.NewBus(opts.Logger)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Writer{
		store:   s,
		queue:   newRequestQueue(),
		bus:     opts.Bus,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
}

type attemptKey struct{}

// WithAttempt annotates ctx with the retry attempt number of a save, for
// logging.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey{}, attempt)
}

func attemptFrom(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return 1
}

// Save submits a normalized save request and waits for its result.
func (w *Writer) Save(ctx context.Context, req journal.SaveRequest) (journal.Entry, error) {
	res := w.submit(ctx, &request{kind: requestSave, save: req, key: req.Key})
	return res.entry, res.err
}

// Delete submits a delete and waits for its result.
func (w *Writer) Delete(ctx context.Context, key journal.Key) (existed bool, err error) {
	res := w.submit(ctx, &request{kind: requestDelete, key: key})
	return res.existed, res.err
}

// RecordSearch queues a search-history record without waiting. It reports
// false if the writer has stopped.
func (w *Writer) RecordSearch(rec store.SearchRecord) bool {
	return w.queue.Enqueue(&request{
		kind:    requestHistory,
		ctx:     context.Background(),
		seq:     w.clock.Next(),
		history: rec,
	})
}

func (w *Writer) submit(ctx context.Context, r *request) result {
	r.ctx = ctx
	r.seq = w.clock.Next()
	r.attempt = attemptFrom(ctx)
	r.reply = make(chan result, 1)

	if !w.queue.Enqueue(r) {
		return result{err: journal.NewStorageError(r.kind.String(), r.key, ErrStopped)}
	}

	select {
	case res := <-r.reply:
		return res
	case <-ctx.Done():
		return result{err: journal.NewStorageError(r.kind.String(), r.key, ctx.Err())}
	}
}

// Run processes requests until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. All entry store
// mutations happen here.
func (w *Writer) Run(ctx context.Context) error {
	w.logger.Debug("writer starting")
	defer w.failPending()

	for {
		if r, ok := w.queue.TryDequeue(); ok {
			w.process(r)
			continue
		}

		select {
		case <-ctx.Done():
			w.logger.Debug("writer stopping: context cancelled")
			w.queue.Close()
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel closes when the queue is closed, so this
			// fires immediately once Stop has been called.
			if w.queue.Len() == 0 && w.isClosed() {
				w.logger.Debug("writer stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run finishes the queued requests and returns.
func (w *Writer) Stop() {
	w.queue.Close()
}

func (w *Writer) isClosed() bool {
	w.queue.mu.Lock()
	defer w.queue.mu.Unlock()
	return w.queue.closed
}

// failPending answers requests left behind by a cancelled Run.
func (w *Writer) failPending() {
	for _, r := range w.queue.Drain() {
		if r.reply != nil {
			r.reply <- result{err: journal.NewStorageError(r.kind.String(), r.key, ErrStopped)}
		}
	}
}

// process executes one request.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (w *Writer) process(r *request) {
	if err := r.ctx.Err(); err != nil {
		// The caller already gave up.
		w.reply(r, result{err: journal.NewStorageError(r.kind.String(), r.key, err)})
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, w.timeout)
	defer cancel()

	start := time.Now()
	switch r.kind {
	case requestSave:
		w.reply(r, w.processSave(ctx, r, start))
	case requestDelete:
		w.reply(r, w.processDelete(ctx, r, start))
	case requestHistory:
		if err := w.store.RecordSearch(ctx, r.history); err != nil {
			w.logger.Warn("record search failed",
				"operation", r.kind.String(),
				"seq", r.seq,
				"duration", time.Since(start),
				"error", cause(err),
			)
		}
	}
}

func (w *Writer) processSave(ctx context.Context, r *request, start time.Time) result {
	entry, err := w.store.SaveEntry(ctx, r.save)
	elapsed := time.Since(start)
	w.metrics.SaveDuration.Observe(elapsed.Seconds())

	var ce *journal.ConflictError
	switch {
	case err == nil:
		w.metrics.Saves.WithLabelValues(metrics.OutcomeOK).Inc()
		w.logger.Debug("entry saved",
			"operation", "save",
			"key", r.key.String(),
			"version", entry.Version,
			"seq", r.seq,
			"duration", elapsed,
			"attempt", r.attempt,
		)
		w.bus.Publish(events.Event{
			Kind:    events.EntrySaved,
			Key:     r.key,
			At:      w.now(),
			Version: entry.Version,
		})

	case errors.As(err, &ce):
		w.metrics.Saves.WithLabelValues(metrics.OutcomeConflict).Inc()
		w.metrics.Conflicts.Inc()
		w.logger.Info("save conflict",
			"operation", "save",
			"key", r.key.String(),
			"local_version", ce.LocalVersion,
			"remote_version", ce.RemoteVersion,
			"seq", r.seq,
			"duration", elapsed,
			"attempt", r.attempt,
		)
		w.bus.Publish(events.Event{
			Kind:          events.ConflictDetected,
			Key:           r.key,
			At:            w.now(),
			LocalVersion:  ce.LocalVersion,
			RemoteVersion: ce.RemoteVersion,
		})

	default:
		outcome := metrics.OutcomeStorage
		if journal.IsValidation(err) {
			outcome = metrics.OutcomeValidation
		}
		w.metrics.Saves.WithLabelValues(outcome).Inc()
		w.logger.Warn("save failed",
			"operation", "save",
			"key", r.key.String(),
			"seq", r.seq,
			"duration", elapsed,
			"attempt", r.attempt,
			"error", cause(err),
		)
	}

	return result{entry: entry, err: err}
}

func (w *Writer) processDelete(ctx context.Context, r *request, start time.Time) result {
	existed, err := w.store.DeleteEntry(ctx, r.key)
	if err != nil {
		w.logger.Warn("delete failed",
			"operation", "delete",
			"key", r.key.String(),
			"seq", r.seq,
			"duration", time.Since(start),
			"error", cause(err),
		)
		return result{err: err}
	}

	if existed {
		w.bus.Publish(events.Event{Kind: events.EntryDeleted, Key: r.key, At: w.now()})
	}
	return result{existed: existed}
}

func (w *Writer) reply(r *request, res result) {
	if r.reply != nil {
		r.reply <- res
	}
}

// cause returns the underlying error of a StorageError for logs.
func cause(err error) error {
	var se *journal.StorageError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err
	}
	return err
}
