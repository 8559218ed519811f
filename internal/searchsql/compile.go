// Package searchsql compiles a parsed search query into parameterized SQL
// over the store's index tables.
//
// The compiled statement selects candidate entry ids only. Phrase adjacency
// and scoring happen in Go on top of the candidate set, which keeps the
// query AST independent of any engine's native full-text syntax.
//
// Every statement orders by (entry_date DESC, id ASC) so candidate order is
// deterministic, and every value is a bound parameter, never interpolated.
package searchsql

import (
	"fmt"
	"strings"

	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/query"
)

// prefixCeiling is appended to a prefix to form an exclusive upper bound.
const prefixCeiling = "\U0010FFFF"

// Filters restrict a search to a date range and a set of types.
// Zero values mean "unrestricted".
type Filters struct {
	From  journal.Date // inclusive
	To    journal.Date // inclusive
	Types []journal.Type
}

// Compiler compiles query ASTs to SQLite statements.
type Compiler struct{}

// NewCompiler creates a Compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Candidates compiles the statement selecting ids of entries that satisfy
// every term, phrase-term, prefix and exclusion clause of q within f.
//
// A query without positive clauses selects every entry in f that satisfies
// the exclusions. An empty query is an error; callers short-circuit it.
func (c *Compiler) Candidates(q query.Query, f Filters) (string, []any, error) {
	if q.Empty() {
		return "", nil, fmt.Errorf("cannot compile empty query")
	}

	var where []string
	var params []any

	if f.From != "" {
		where = append(where, "e.entry_date >= ?")
		params = append(params, string(f.From))
	}
	if f.To != "" {
		where = append(where, "e.entry_date <= ?")
		params = append(params, string(f.To))
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			if !t.Valid() {
				return "", nil, fmt.Errorf("unknown entry type %q", t)
			}
			marks[i] = "?"
			params = append(params, string(t))
		}
		where = append(where, "e.entry_type IN ("+strings.Join(marks, ", ")+")")
	}

	for _, stem := range q.Stems() {
		where = append(where, "EXISTS (SELECT 1 FROM search_postings p WHERE p.entry_id = e.id AND p.term = ?)")
		params = append(params, stem)
	}

	for _, p := range q.Prefix {
		where = append(where, "EXISTS (SELECT 1 FROM search_words w WHERE w.entry_id = e.id AND w.word >= ? AND w.word < ?)")
		params = append(params, p.Word, p.Word+prefixCeiling)
	}

	for _, t := range q.MustNot {
		where = append(where, "NOT EXISTS (SELECT 1 FROM search_postings p WHERE p.entry_id = e.id AND p.term = ?)")
		params = append(params, t.Text)
	}

	var b strings.Builder
	b.WriteString("SELECT e.id FROM entries e")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY e.entry_date DESC, e.id ASC")

	return b.String(), params, nil
}

// PrefixRange returns the bound parameters of a prefix match. Exposed for
// document-frequency lookups that must agree with Candidates.
func PrefixRange(word string) (lo, hi string) {
	return word, word + prefixCeiling
}
