// Package drafts is the crash-recovery side store for uncommitted editor
// content, backed by BadgerDB.
//
// Drafts are keyed by (entry_date, entry_type, session_id); a newer draft
// for the same key overwrites the older one. Every draft carries a Badger
// TTL equal to the retention window, and PurgeExpired removes drafts whose
// SavedAt is older than the window. The draft store never reads or writes
// the entry store.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/roach88/quill/internal/journal"
)

const keyPrefix = "draft/"

// DefaultRetention is how long drafts survive without a clean exit.
const DefaultRetention = 7 * 24 * time.Hour

// Config holds configuration for a draft store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every draft write.
	SyncWrites bool

	// Retention is the draft lifetime.
	Retention time.Duration

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger

	// Now stamps retention checks. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns durable defaults: synchronous writes, 7-day
// retention and a 5-minute value log GC.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		Retention:      DefaultRetention,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{
		InMemory:  true,
		Retention: DefaultRetention,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store persists drafts.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db        *badger.DB
	gc        *gcRunner
	retention time.Duration
	now       func() time.Time
}

// Open opens the draft store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent draft store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create draft directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}

	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Store{db: db, retention: cfg.Retention, now: cfg.Now}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Put writes d, replacing any draft with the same id. d.ID is derived from
// d.Key and d.SessionID when empty.
func (s *Store) Put(ctx context.Context, d journal.Draft) error {
	if err := ctx.Err(); err != nil {
		return journal.NewStorageError("write draft", d.Key, err)
	}
	if d.ID == "" {
		d.ID = journal.DraftID(d.Key, d.SessionID)
	}

	value, err := json.Marshal(record{
		SessionID: d.SessionID,
		Date:      string(d.Key.Date),
		Type:      string(d.Key.Type),
		Content:   d.Content,
		SavedAt:   d.SavedAt.UnixNano(),
	})
	if err != nil {
		return journal.NewStorageError("write draft", d.Key, fmt.Errorf("put draft: marshal: %w", err))
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key(d.ID), value).WithTTL(s.retention))
	})
	if err != nil {
		return journal.NewStorageError("write draft", d.Key, fmt.Errorf("put draft: %w", err))
	}
	return nil
}

// Get returns the draft with the given id.
func (s *Store) Get(ctx context.Context, id string) (journal.Draft, bool, error) {
	k, _, err := journal.ParseDraftID(id)
	if err != nil {
		return journal.Draft{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return journal.Draft{}, false, journal.NewStorageError("read draft", k, err)
	}

	var d journal.Draft
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			d, err = decode(id, val)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return journal.Draft{}, false, nil
	}
	if err != nil {
		return journal.Draft{}, false, journal.NewStorageError("read draft", k, fmt.Errorf("get draft: %w", err))
	}
	return d, true, nil
}

// Delete removes the draft with the given id. Missing drafts are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	k, _, err := journal.ParseDraftID(id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return journal.NewStorageError("delete draft", k, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
	if err != nil {
		return journal.NewStorageError("delete draft", k, fmt.Errorf("delete draft: %w", err))
	}
	return nil
}

// List returns every live draft ordered by id.
func (s *Store) List(ctx context.Context) ([]journal.Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, journal.NewStorageError("list drafts", journal.Key{}, err)
	}

	var out []journal.Draft
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(keyPrefix):])
			err := item.Value(func(val []byte) error {
				d, err := decode(id, val)
				if err != nil {
					return err
				}
				out = append(out, d)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, journal.NewStorageError("list drafts", journal.Key{}, fmt.Errorf("list drafts: %w", err))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteWhere removes every draft for which match returns true and reports
// how many were removed.
func (s *Store) DeleteWhere(ctx context.Context, match func(journal.Draft) bool) (int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	var ids [][]byte
	for _, d := range all {
		if match(d) {
			ids = append(ids, key(d.ID))
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range ids {
		if err := wb.Delete(k); err != nil {
			return 0, journal.NewStorageError("delete drafts", journal.Key{}, fmt.Errorf("delete drafts: %w", err))
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, journal.NewStorageError("delete drafts", journal.Key{}, fmt.Errorf("delete drafts: flush: %w", err))
	}
	return len(ids), nil
}

// PurgeExpired removes drafts saved more than the retention window ago.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	return s.DeleteWhere(ctx, func(d journal.Draft) bool {
		return d.SavedAt.Before(cutoff)
	})
}

// record is the stored form of a draft.
type record struct {
	SessionID string `json:"session_id"`
	Date      string `json:"entry_date"`
	Type      string `json:"entry_type"`
	Content   string `json:"content"`
	SavedAt   int64  `json:"saved_at"` // unix nanoseconds
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}

func decode(id string, val []byte) (journal.Draft, error) {
	var r record
	if err := json.Unmarshal(val, &r); err != nil {
		return journal.Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return journal.Draft{
		ID:        id,
		SessionID: r.SessionID,
		Key:       journal.Key{Date: journal.Date(r.Date), Type: journal.Type(r.Type)},
		Content:   r.Content,
		SavedAt:   time.Unix(0, r.SavedAt).UTC(),
	}, nil
}
