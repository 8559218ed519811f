package query

import (
	"fmt"
	"strings"
)

// DefaultMaxTokens caps the number of tokens kept from a query.
const DefaultMaxTokens = 20

// Clause is a positive match requirement.
//
// This is a sealed interface; only Term and Phrase implement it.
type Clause interface {
	clauseNode()
}

// Term matches entries containing the stemmed term anywhere.
type Term struct {
	Text string // stemmed form
	Word string // folded, unstemmed form
}

func (Term) clauseNode() {}

// Phrase matches entries containing the stems contiguously and in order.
type Phrase struct {
	Terms []string // stemmed forms
	Words []string // folded, unstemmed forms
}

func (Phrase) clauseNode() {}

// Prefix matches entries with any word starting with Word.
type Prefix struct {
	Word string // folded prefix
}

// Query is a parsed search.
type Query struct {
	Must    []Clause
	MustNot []Term
	Prefix  []Prefix

	// Truncated is set when tokens beyond the cap were dropped.
	Truncated bool
	// Sanitized is set when unrecognized syntax was read literally or dropped.
	Sanitized bool
}

// Empty reports whether the query has no clauses at all.
func (q Query) Empty() bool {
	return len(q.Must) == 0 && len(q.MustNot) == 0 && len(q.Prefix) == 0
}

// Positive reports whether the query has at least one positive clause.
func (q Query) Positive() bool {
	return len(q.Must) > 0 || len(q.Prefix) > 0
}

// Stems returns the distinct stems of all positive Term and Phrase clauses
// in first-seen order.
func (q Query) Stems() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, c := range q.Must {
		switch c := c.(type) {
		case Term:
			add(c.Text)
		case Phrase:
			for _, s := range c.Terms {
				add(s)
			}
		}
	}
	return out
}

// Phrases returns the phrase clauses of the query.
func (q Query) Phrases() []Phrase {
	var out []Phrase
	for _, c := range q.Must {
		if p, ok := c.(Phrase); ok {
			out = append(out, p)
		}
	}
	return out
}

// String renders the query one clause per line. The format is stable and
// used by golden tests and the CLI's --explain flag.
func (q Query) String() string {
	var b strings.Builder
	for _, c := range q.Must {
		switch c := c.(type) {
		case Term:
			fmt.Fprintf(&b, "must term %s\n", c.Text)
		case Phrase:
			fmt.Fprintf(&b, "must phrase %q\n", strings.Join(c.Terms, " "))
		}
	}
	for _, t := range q.MustNot {
		fmt.Fprintf(&b, "not %s\n", t.Text)
	}
	for _, p := range q.Prefix {
		fmt.Fprintf(&b, "prefix %s\n", p.Word)
	}
	fmt.Fprintf(&b, "truncated=%t sanitized=%t\n", q.Truncated, q.Sanitized)
	return b.String()
}
