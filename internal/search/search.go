// Package search answers full-text queries over the journal.
//
// A search runs in one read snapshot:
//
//  1. parse the query text (internal/query)
//  2. select candidates with compiled SQL (internal/searchsql)
//  3. verify phrase adjacency from stored token positions, then against
//     the literal words of each candidate
//  4. gather term and prefix frequencies and corpus statistics
//  5. rank (internal/rank), then cut to the limit and build snippets
//
// Each search with non-empty text is logged to the search history through
// a HistoryRecorder, which feeds Suggest but never result ranking.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/quill/internal/analysis"
	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/metrics"
	"github.com/roach88/quill/internal/query"
	"github.com/roach88/quill/internal/rank"
	"github.com/roach88/quill/internal/searchsql"
	"github.com/roach88/quill/internal/store"
)

// Defaults for Options.
const (
	DefaultLimit        = 20
	DefaultMaxLimit     = 100
	DefaultSnippetRunes = 160
	DefaultTimeout      = 5 * time.Second
)

// prefixKey namespaces prefix clauses in rank.Corpus.DocFreq and
// rank.Doc.TermFreq so they never collide with stems.
const prefixKey = "prefix:"

// Store is the read side of the entry store.
type Store interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
	History(ctx context.Context) ([]store.SearchRecord, error)
}

// HistoryRecorder logs searches. *writer.Writer implements it.
type HistoryRecorder interface {
	RecordSearch(rec store.SearchRecord) bool
}

// Filters restrict a search by inclusive date range and entry types.
type Filters = searchsql.Filters

// Options configure a Searcher. Zero values select defaults.
type Options struct {
	MaxQueryTokens int
	DefaultLimit   int
	MaxLimit       int
	SnippetRunes   int
	Timeout        time.Duration
	Ranking        rank.Config

	Recorder HistoryRecorder // optional
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Result is one matching entry.
type Result struct {
	EntryID int64
	Date    journal.Date
	Type    journal.Type
	Snippet string
	// Highlights are [start, end) byte offsets into Snippet.
	Highlights [][2]int
	Score      float64
}

// Results is a page of matches with query metadata.
type Results struct {
	Items     []Result
	Total     int // matches before the limit was applied
	Truncated bool
	Sanitized bool
	Query     query.Query
}

// Searcher runs searches against a Store.
type Searcher struct {
	store    Store
	compiler *searchsql.Compiler
	ranker   *rank.Ranker
	opts     Options
}

// New creates a Searcher.
func New(s Store, opts Options) *Searcher {
	if opts.MaxQueryTokens <= 0 {
		opts.MaxQueryTokens = query.DefaultMaxTokens
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultMaxLimit
	}
	if opts.SnippetRunes <= 0 {
		opts.SnippetRunes = DefaultSnippetRunes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Ranking.TypeWeights == nil {
		opts.Ranking = rank.DefaultConfig()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Searcher{
		store:    s,
		compiler: searchsql.NewCompiler(),
		ranker:   rank.New(opts.Ranking),
		opts:     opts,
	}
}

// Search runs text against the index. limit <= 0 selects the default limit
// and larger limits are capped. Malformed query syntax never fails; it is
// read literally and reported through Results.Sanitized.
func (s *Searcher) Search(ctx context.Context, text string, f Filters, limit int) (Results, error) {
	start := time.Now()

	for _, t := range f.Types {
		if !t.Valid() {
			return Results{}, &journal.ValidationError{Field: "types", Reason: fmt.Sprintf("unknown entry type %q", t)}
		}
	}
	if f.From != "" && f.To != "" && f.From.After(f.To) {
		return Results{}, &journal.ValidationError{Field: "date_range", Reason: "from is after to"}
	}
	limit = s.clampLimit(limit)

	q := query.ParseWithLimit(text, s.opts.MaxQueryTokens)
	res := Results{Truncated: q.Truncated, Sanitized: q.Sanitized, Query: q}
	if q.Empty() {
		return res, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	ranked, docs, err := s.match(ctx, q, f)
	if err != nil {
		err = journal.NewStorageError("search", journal.Key{}, err)
		s.opts.Logger.Error("search failed",
			"operation", "search",
			"duration", time.Since(start),
			"error", err,
		)
		return Results{}, err
	}

	res.Total = len(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	hl := newHighlighter(q)
	res.Items = make([]Result, len(ranked))
	for i, sc := range ranked {
		e := docs[sc.ID]
		snippet, offsets := hl.snippet(e.Content, s.opts.SnippetRunes)
		res.Items[i] = Result{
			EntryID:    sc.ID,
			Date:       sc.Date,
			Type:       sc.Type,
			Snippet:    snippet,
			Highlights: offsets,
			Score:      sc.Score,
		}
	}

	s.opts.Metrics.SearchDuration.Observe(time.Since(start).Seconds())
	s.opts.Metrics.SearchResults.Observe(float64(res.Total))
	s.opts.Logger.Debug("search",
		"operation", "search",
		"matches", res.Total,
		"duration", time.Since(start),
	)

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordSearch(store.SearchRecord{
			Query:       strings.TrimSpace(text),
			ResultCount: res.Total,
			SearchedAt:  s.opts.Now(),
		})
	}
	return res, nil
}

func (s *Searcher) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		return s.opts.MaxLimit
	}
	return limit
}

// match selects, verifies and ranks candidates inside one snapshot. It
// returns the ranked matches and their entries by id.
func (s *Searcher) match(ctx context.Context, q query.Query, f Filters) ([]rank.Scored, map[int64]journal.Entry, error) {
	sn, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer sn.Close()

	stmt, args, err := s.compiler.Candidates(q, f)
	if err != nil {
		return nil, nil, fmt.Errorf("compile: %w", err)
	}
	ids, err := sn.CandidateIDs(ctx, stmt, args)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	stems := q.Stems()
	positions, err := sn.Positions(ctx, ids, stems)
	if err != nil {
		return nil, nil, err
	}
	entries, err := sn.Entries(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	phrases := q.Phrases()
	docs := make([]rank.Doc, 0, len(entries))
	byID := make(map[int64]journal.Entry, len(entries))
	for _, ie := range entries {
		pos := positions[ie.Entry.ID]
		if !containsPhrases(pos, phrases) || !literalPhrases(ie.Entry.Content, phrases) {
			continue
		}
		tf := make(map[string]int, len(stems)+len(q.Prefix))
		for _, stem := range stems {
			tf[stem] = len(pos[stem])
		}
		if len(q.Prefix) > 0 {
			countPrefixes(tf, ie.Entry.Content, q.Prefix)
		}
		docs = append(docs, rank.Doc{
			ID:       ie.Entry.ID,
			Date:     ie.Entry.Date,
			Type:     ie.Entry.Type,
			Length:   ie.TokenCount,
			TermFreq: tf,
		})
		byID[ie.Entry.ID] = ie.Entry
	}
	if len(docs) == 0 {
		return nil, nil, nil
	}

	corpus, err := s.corpus(ctx, sn, q, stems)
	if err != nil {
		return nil, nil, err
	}
	return s.ranker.Rank(docs, corpus, s.opts.Now()), byID, nil
}

func (s *Searcher) corpus(ctx context.Context, sn *store.Snapshot, q query.Query, stems []string) (rank.Corpus, error) {
	n, avg, err := sn.Corpus(ctx)
	if err != nil {
		return rank.Corpus{}, err
	}
	df, err := sn.TermDocFreq(ctx, stems)
	if err != nil {
		return rank.Corpus{}, err
	}
	for _, p := range q.Prefix {
		lo, hi := searchsql.PrefixRange(p.Word)
		c, err := sn.PrefixDocFreq(ctx, lo, hi)
		if err != nil {
			return rank.Corpus{}, err
		}
		df[prefixKey+p.Word] = c
	}
	return rank.Corpus{Docs: n, AvgLength: avg, DocFreq: df}, nil
}

// containsPhrases reports whether every multi-term phrase occurs with its
// stems at consecutive positions.
func containsPhrases(pos map[string][]int, phrases []query.Phrase) bool {
	for _, p := range phrases {
		if len(p.Terms) < 2 {
			continue
		}
		if !containsPhrase(pos, p.Terms) {
			return false
		}
	}
	return true
}

// literalPhrases confirms each multi-word phrase against the unstemmed
// words of content, so "daily walk" does not match "dailies walked".
func literalPhrases(content string, phrases []query.Phrase) bool {
	var words []string
	for _, p := range phrases {
		if len(p.Words) < 2 {
			continue
		}
		if words == nil {
			for _, tok := range analysis.Tokenize(content) {
				words = append(words, tok.Word)
			}
		}
		if !containsWords(words, p.Words) {
			return false
		}
	}
	return true
}

func containsWords(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

func containsPhrase(pos map[string][]int, terms []string) bool {
	sets := make([]map[int]bool, len(terms))
	for i, term := range terms {
		sets[i] = make(map[int]bool, len(pos[term]))
		for _, p := range pos[term] {
			sets[i][p] = true
		}
	}
next:
	for _, first := range pos[terms[0]] {
		for i := 1; i < len(terms); i++ {
			if !sets[i][first+i] {
				continue next
			}
		}
		return true
	}
	return false
}

func countPrefixes(tf map[string]int, content string, prefixes []query.Prefix) {
	for _, tok := range analysis.Tokenize(content) {
		for _, p := range prefixes {
			if strings.HasPrefix(tok.Word, p.Word) {
				tf[prefixKey+p.Word]++
			}
		}
	}
}
