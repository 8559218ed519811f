package rank

import (
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
)

// HistoryRecord is one logged search.
type HistoryRecord struct {
	Query       string
	ResultCount int
	SearchedAt  time.Time
}

// Suggestion is a previously run query proposed for reuse.
type Suggestion struct {
	Query        string
	Count        int
	LastSearched time.Time
	Score        float64
}

// Suggestions groups history by normalized query text and ranks the groups
// by 0.5*frequency + 0.5*recency, where frequency is relative to the most
// frequent query. Queries that never returned results are omitted.
func Suggestions(records []HistoryRecord, now time.Time, halfLife time.Duration) []Suggestion {
	type group struct {
		s       Suggestion
		results int
	}
	groups := make(map[string]*group)
	var order []string
	for _, rec := range records {
		text := strings.Join(strings.Fields(rec.Query), " ")
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		g, ok := groups[key]
		if !ok {
			g = &group{s: Suggestion{Query: text}}
			groups[key] = g
			order = append(order, key)
		}
		g.s.Count++
		g.results += rec.ResultCount
		if rec.SearchedAt.After(g.s.LastSearched) {
			g.s.LastSearched = rec.SearchedAt
			g.s.Query = text
		}
	}

	maxCount := 0
	for _, g := range groups {
		if g.s.Count > maxCount {
			maxCount = g.s.Count
		}
	}

	var out []Suggestion
	for _, key := range order {
		g := groups[key]
		if g.results == 0 {
			continue
		}
		s := g.s
		s.Score = 0.5*float64(s.Count)/float64(maxCount) + 0.5*decay(now.Sub(s.LastSearched), halfLife)
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].LastSearched.Equal(out[j].LastSearched) {
			return out[i].LastSearched.After(out[j].LastSearched)
		}
		return out[i].Query < out[j].Query
	})
	return out
}

type suggestionSource []Suggestion

func (s suggestionSource) String(i int) string { return s[i].Query }
func (s suggestionSource) Len() int            { return len(s) }

// Match keeps suggestions that fuzzily match pattern, preserving rank
// order. An empty pattern keeps everything.
func Match(pattern string, suggestions []Suggestion) []Suggestion {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return suggestions
	}
	matches := fuzzy.FindFrom(pattern, suggestionSource(suggestions))
	keep := make(map[int]bool, len(matches))
	for _, m := range matches {
		keep[m.Index] = true
	}
	out := make([]Suggestion, 0, len(matches))
	for i, s := range suggestions {
		if keep[i] {
			out = append(out, s)
		}
	}
	return out
}
