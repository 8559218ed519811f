// Package metrics defines the Prometheus collectors for saves, drafts and
// searches.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Save outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeConflict   = "conflict"
	OutcomeValidation = "validation"
	OutcomeStorage    = "storage"
)

// Metrics holds every collector. Construct with New.
type Metrics struct {
	// Saves counts entry store save attempts by outcome.
	Saves *prometheus.CounterVec

	// SaveDuration tracks save latency through the writer.
	SaveDuration prometheus.Histogram

	// Conflicts counts detected lost-update conflicts.
	Conflicts prometheus.Counter

	// DraftsWritten counts draft writes by outcome (ok, error).
	DraftsWritten *prometheus.CounterVec

	// SearchDuration tracks end-to-end search latency.
	SearchDuration prometheus.Histogram

	// SearchResults tracks the number of matches per search before limiting.
	SearchResults prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_saves_total",
			Help: "Total entry saves by outcome",
		}, []string{"outcome"}),
		SaveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_save_duration_seconds",
			Help:    "Entry save duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "quill_conflicts_total",
			Help: "Total version conflicts detected on save",
		}),
		DraftsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_drafts_written_total",
			Help: "Total draft writes by outcome",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_search_duration_seconds",
			Help:    "Search duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		SearchResults: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_search_results",
			Help:    "Matches per search before limiting",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 500},
		}),
	}
}
