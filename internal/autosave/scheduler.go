package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/quill/internal/clock"
	"github.com/roach88/quill/internal/events"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/metrics"
)

// Defaults for Options.
const (
	DefaultDebounce    = 3 * time.Second
	DefaultCeiling     = 30 * time.Second
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultTimeout     = 5 * time.Second
)

// ErrClosed is returned by operations on a closed Document.
var ErrClosed = errors.New("document closed")

// ErrNoConflict is returned by KeepMine and KeepTheirs when the document
// has no pending conflict.
var ErrNoConflict = errors.New("no pending conflict")

// Saver commits content. The service's Save, backed by the writer,
// implements it.
type Saver interface {
	Save(ctx context.Context, req journal.SaveRequest) (journal.Entry, error)
}

// DraftWriter stores recovery drafts. *drafts.Store implements it.
type DraftWriter interface {
	Put(ctx context.Context, d journal.Draft) error
}

// Options configure a Scheduler. Zero values select defaults.
type Options struct {
	Debounce         time.Duration
	Ceiling          time.Duration
	MaxAttempts      int
	BaseDelay        time.Duration
	IgnoreWhitespace bool
	Timeout          time.Duration // per save and per draft write

	SessionID string
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Bus       *events.Bus // receives SaveFailed

	// OnStateChange is called on every state transition while the
	// document's lock is held. It must not call back into the Document.
	OnStateChange func(key journal.Key, state State)
}

func (o *Options) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Ceiling <= 0 {
		o.Ceiling = DefaultCeiling
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = metrics.New(nil)
	}
}

// Scheduler owns the open documents of one session.
type Scheduler struct {
	saver  Saver
	drafts DraftWriter
	opts   Options

	mu   sync.Mutex
	docs map[journal.Key]*Document
}

// New creates a Scheduler. drafts may be nil to disable draft writes.
func New(saver Saver, drafts DraftWriter, opts Options) *Scheduler {
	opts.setDefaults()
	return &Scheduler{
		saver:  saver,
		drafts: drafts,
		opts:   opts,
		docs:   make(map[journal.Key]*Document),
	}
}

// Open starts tracking the entry at key, whose committed content and
// version the caller has just loaded (journal.NoVersion and "" for a new
// entry). Opening a key that is already open returns the open Document.
func (s *Scheduler) Open(key journal.Key, content string, version int64) *Document {
	return s.open(key, content, version, journal.Entry{})
}

// OpenEntry is Open for an entry that exists. SaveNow on an unchanged
// document returns e.
func (s *Scheduler) OpenEntry(e journal.Entry) *Document {
	return s.open(e.Key(), e.Content, e.Version, e)
}

func (s *Scheduler) open(key journal.Key, content string, version int64, last journal.Entry) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.docs[key]; ok {
		return d
	}
	d := &Document{
		s:            s,
		key:          key,
		state:        Idle,
		content:      content,
		savedContent: content,
		savedDigest:  journal.ContentDigest(content, s.opts.IgnoreWhitespace),
		version:      version,
		lastEntry:    last,
	}
	s.docs[key] = d
	return d
}

// Close closes every open document and returns the first error.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	docs := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.Unlock()

	var first error
	for _, d := range docs {
		if err := d.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Scheduler) forget(d *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[d.key] == d {
		delete(s.docs, d.key)
	}
}

func (s *Scheduler) digest(content string) string {
	return journal.ContentDigest(content, s.opts.IgnoreWhitespace)
}
