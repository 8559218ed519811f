package service

import (
	"context"
	"time"

	"github.com/roach88/quill/internal/events"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/metrics"
)

// Save normalizes and commits content under key. expected is the version
// the caller last loaded, or journal.NoVersion to create the entry.
//
// Validation and storage failures are also published as SaveFailed;
// conflicts are published as ConflictDetected by the writer.
func (s *Service) Save(ctx context.Context, req journal.SaveRequest) (journal.Entry, error) {
	e, err := s.commit(ctx, req)
	if err != nil && !journal.IsConflict(err) {
		s.bus.Publish(events.Event{
			Kind:   events.SaveFailed,
			Key:    req.Key,
			At:     s.clock.Now(),
			Code:   journal.Code(err),
			Reason: err.Error(),
		})
	}
	return e, err
}

// commit is the path shared by manual saves and auto-save.
func (s *Service) commit(ctx context.Context, req journal.SaveRequest) (journal.Entry, error) {
	start := time.Now()
	norm, err := journal.Normalize(req, s.today())
	if err != nil {
		s.metrics.Saves.WithLabelValues(metrics.OutcomeValidation).Inc()
		s.logger.Warn("save rejected",
			"operation", "save",
			"key", req.Key.String(),
			"duration", time.Since(start),
			"error", err,
		)
		return journal.Entry{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.writer.Save(ctx, norm)
}

// Load returns the committed entry at key, if any.
func (s *Service) Load(ctx context.Context, key journal.Key) (journal.Entry, bool, error) {
	key, err := validKey(key)
	if err != nil {
		return journal.Entry{}, false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.LoadEntry(ctx, key)
}

// Delete removes the entry at key and its index rows. Drafts for the key
// are kept. It reports whether an entry existed.
func (s *Service) Delete(ctx context.Context, key journal.Key) (bool, error) {
	key, err := validKey(key)
	if err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.writer.Delete(ctx, key)
}

func validKey(key journal.Key) (journal.Key, error) {
	date, err := journal.ParseDate(string(key.Date))
	if err != nil {
		return journal.Key{}, err
	}
	typ, err := journal.ParseType(string(key.Type))
	if err != nil {
		return journal.Key{}, err
	}
	return journal.Key{Date: date, Type: typ}, nil
}

// committer adapts the service to autosave.Saver.
type committer struct {
	s *Service
}

func (c committer) Save(ctx context.Context, req journal.SaveRequest) (journal.Entry, error) {
	return c.s.commit(ctx, req)
}
