package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/quill/internal/autosave"
	"github.com/roach88/quill/internal/clock"
	"github.com/roach88/quill/internal/config"
	"github.com/roach88/quill/internal/drafts"
	"github.com/roach88/quill/internal/events"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/metrics"
	"github.com/roach88/quill/internal/rank"
	"github.com/roach88/quill/internal/search"
	"github.com/roach88/quill/internal/store"
	"github.com/roach88/quill/internal/writer"
)

const (
	dbFile    = "quill.db"
	draftsDir = "drafts"
)

// Options configure Open.
type Options struct {
	Config config.Config

	Logger     *slog.Logger
	Registerer prometheus.Registerer // nil leaves metrics unregistered
	Clock      clock.Clock

	// InMemoryDrafts keeps drafts in memory only.
	InMemoryDrafts bool

	// OnStateChange observes auto-save state transitions.
	OnStateChange func(key journal.Key, state autosave.State)
}

// Service is the journal service.
//
// Thread-safety: all methods are safe for concurrent use.
type Service struct {
	cfg     config.Config
	logger  *slog.Logger
	clock   clock.Clock
	session string

	store    *store.Store
	drafts   *drafts.Store
	writer   *writer.Writer
	bus      *events.Bus
	metrics  *metrics.Metrics
	searcher *search.Searcher
	sched    *autosave.Scheduler

	runDone chan error
}

// Open opens the stores under cfg.DataDir and starts the writer.
func Open(ctx context.Context, opts Options) (*Service, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	session, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("open: session id: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("open: create data dir: %w", err)
	}

	st, err := store.Open(ctx, filepath.Join(cfg.DataDir, dbFile), store.Options{
		HistoryCap: cfg.Search.HistoryCap,
		Now:        opts.Clock.Now,
	})
	if err != nil {
		return nil, err
	}

	dcfg := drafts.DefaultConfig()
	if opts.InMemoryDrafts {
		dcfg = drafts.InMemoryConfig()
	}
	dcfg.Path = filepath.Join(cfg.DataDir, draftsDir)
	dcfg.Retention = cfg.Drafts.Retention.Std()
	dcfg.Logger = opts.Logger
	dcfg.Now = opts.Clock.Now
	ds, err := drafts.Open(dcfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		logger:  opts.Logger,
		clock:   opts.Clock,
		session: session.String(),
		store:   st,
		drafts:  ds,
		bus:     events.NewBus(opts.Logger),
		metrics: metrics.New(opts.Registerer),
		runDone: make(chan error, 1),
	}

	s.writer = writer.New(st, writer.Options{
		Bus:     s.bus,
		Metrics: s.metrics,
		Logger:  s.logger,
		Timeout: cfg.Timeout.Std(),
		Now:     s.clock.Now,
	})
	go func() {
		s.runDone <- s.writer.Run(context.Background())
	}()

	s.searcher = search.New(st, search.Options{
		MaxQueryTokens: cfg.Search.MaxQueryTokens,
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxLimit:       cfg.Search.MaxLimit,
		SnippetRunes:   cfg.Search.SnippetRunes,
		Timeout:        cfg.Timeout.Std(),
		Ranking:        rankConfig(cfg.Ranking),
		Recorder:       s.writer,
		Metrics:        s.metrics,
		Logger:         s.logger,
		Now:            s.clock.Now,
	})

	s.sched = autosave.New(committer{s}, ds, autosave.Options{
		Debounce:         cfg.Autosave.Debounce.Std(),
		Ceiling:          cfg.Autosave.Ceiling.Std(),
		MaxAttempts:      cfg.Autosave.MaxAttempts,
		BaseDelay:        cfg.Autosave.BaseDelay.Std(),
		IgnoreWhitespace: cfg.Autosave.IgnoreWhitespace,
		Timeout:          cfg.Timeout.Std(),
		SessionID:        s.session,
		Clock:            s.clock,
		Logger:           s.logger,
		Metrics:          s.metrics,
		Bus:              s.bus,
		OnStateChange:    opts.OnStateChange,
	})

	if n, err := ds.PurgeExpired(ctx); err != nil {
		s.logger.Warn("purge expired drafts failed", "operation", "purge_drafts", "error", err)
	} else if n > 0 {
		s.logger.Info("purged expired drafts", "operation", "purge_drafts", "count", n)
	}

	s.logger.Debug("service open", "data_dir", cfg.DataDir, "session", s.session)
	return s, nil
}

func rankConfig(r config.Ranking) rank.Config {
	tw := make(map[journal.Type]float64, len(r.TypeWeights))
	for k, v := range r.TypeWeights {
		tw[journal.Type(k)] = v
	}
	return rank.Config{
		Weights: rank.Weights{
			Relevance: r.Weights.Relevance,
			Recency:   r.Weights.Recency,
			Length:    r.Weights.Length,
			Type:      r.Weights.Type,
		},
		K1:          r.BM25K1,
		B:           r.BM25B,
		HalfLife:    r.HalfLife.Std(),
		TypeWeights: tw,
	}
}

// Close flushes open documents, stops the writer and closes the stores.
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	if err := s.sched.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close documents: %w", err))
	}

	s.writer.Stop()
	select {
	case <-s.runDone:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("close: writer drain: %w", ctx.Err()))
	}

	if n, err := s.purgeCommittedDrafts(ctx); err != nil {
		errs = append(errs, err)
	} else if n > 0 {
		s.logger.Debug("removed committed drafts", "operation", "purge_drafts", "count", n)
	}

	s.bus.Close()
	if err := s.drafts.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close drafts: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// Session returns this run's session id.
func (s *Service) Session() string {
	return s.session
}

// Subscribe registers an event subscriber. Close the subscription when
// done.
func (s *Service) Subscribe(buffer int) *events.Subscription {
	return s.bus.Subscribe(buffer)
}

// Stats returns table sizes of the entry store.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.Stats(ctx)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.Timeout.Std())
}

func (s *Service) today() journal.Date {
	return journal.DateOf(s.clock.Now())
}
