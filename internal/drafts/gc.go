package drafts

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// gcRunner runs periodic value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

func (r *gcRunner) collect() {
	// ErrNoRewrite means nothing needed collecting.
	err := r.db.RunValueLogGC(r.ratio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && r.logger != nil {
		r.logger.Warn("draft store value log GC error", slog.String("error", err.Error()))
	}
}
