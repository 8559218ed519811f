package service

import (
	"context"

	"github.com/roach88/quill/internal/rank"
	"github.com/roach88/quill/internal/search"
)

// Search runs a full-text query. See package search for the grammar.
func (s *Service) Search(ctx context.Context, text string, f search.Filters, limit int) (search.Results, error) {
	return s.searcher.Search(ctx, text, f, limit)
}

// Suggest proposes earlier queries matching prefix.
func (s *Service) Suggest(ctx context.Context, prefix string, limit int) ([]rank.Suggestion, error) {
	return s.searcher.Suggest(ctx, prefix, limit)
}
