package search

import (
	"context"
	"time"

	"github.com/roach88/quill/internal/rank"
)

// Suggest proposes previously run queries, best first. A non-empty prefix
// filters them with fuzzy matching. limit <= 0 selects the default limit.
func (s *Searcher) Suggest(ctx context.Context, prefix string, limit int) ([]rank.Suggestion, error) {
	limit = s.clampLimit(limit)

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	history, err := s.store.History(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]rank.HistoryRecord, len(history))
	for i, h := range history {
		records[i] = rank.HistoryRecord{
			Query:       h.Query,
			ResultCount: h.ResultCount,
			SearchedAt:  h.SearchedAt,
		}
	}

	out := rank.Match(prefix, rank.Suggestions(records, s.opts.Now(), s.halfLife()))
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Searcher) halfLife() time.Duration {
	if s.opts.Ranking.HalfLife > 0 {
		return s.opts.Ranking.HalfLife
	}
	return rank.DefaultConfig().HalfLife
}
