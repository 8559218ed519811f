package search

import (
	"strings"
	"unicode/utf8"

	"github.com/roach88/quill/internal/analysis"
	"github.com/roach88/quill/internal/query"
)

const ellipsis = "…"

// highlighter marks the words of a text that a query's positive clauses
// matched.
type highlighter struct {
	stems    map[string]bool
	prefixes []string
}

func newHighlighter(q query.Query) *highlighter {
	h := &highlighter{stems: make(map[string]bool)}
	for _, s := range q.Stems() {
		h.stems[s] = true
	}
	for _, p := range q.Prefix {
		h.prefixes = append(h.prefixes, p.Word)
	}
	return h
}

func (h *highlighter) hit(tok analysis.Token) bool {
	if h.stems[tok.Term] {
		return true
	}
	for _, p := range h.prefixes {
		if strings.HasPrefix(tok.Word, p) {
			return true
		}
	}
	return false
}

// snippet returns at most maxRunes runes of content around the first hit,
// on one line, plus the byte ranges of every hit inside it. Elided text at
// either end is marked with an ellipsis.
func (h *highlighter) snippet(content string, maxRunes int) (string, [][2]int) {
	// Line breaks and tabs become spaces; each is one byte, so token
	// offsets stay valid.
	flat := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, content)

	tokens := analysis.Tokenize(content)
	var hits []analysis.Token
	for _, tok := range tokens {
		if h.hit(tok) {
			hits = append(hits, tok)
		}
	}

	start, end := 0, len(flat)
	if utf8.RuneCountInString(flat) > maxRunes {
		start, end = window(flat, tokens, hits, maxRunes)
	}

	var b strings.Builder
	shift := -start
	if start > 0 {
		b.WriteString(ellipsis)
		shift += len(ellipsis)
	}
	b.WriteString(flat[start:end])
	if end < len(flat) {
		b.WriteString(ellipsis)
	}

	var offsets [][2]int
	for _, tok := range hits {
		if tok.Start >= start && tok.End <= end {
			offsets = append(offsets, [2]int{tok.Start + shift, tok.End + shift})
		}
	}
	return b.String(), offsets
}

// window picks byte bounds of at most maxRunes runes that start a quarter
// window before the first hit and do not split words.
func window(text string, tokens, hits []analysis.Token, maxRunes int) (start, end int) {
	if len(hits) > 0 {
		anchor := hits[0].Start
		start = anchor
		for n := 0; n < maxRunes/4 && start > 0; n++ {
			_, size := utf8.DecodeLastRuneInString(text[:start])
			start -= size
		}
		// Snap forward to a word start so the snippet opens on a whole word.
		for _, tok := range tokens {
			if tok.Start >= start {
				start = tok.Start
				break
			}
		}
		if start > anchor {
			start = anchor
		}
	}

	end = start
	for n := 0; n < maxRunes && end < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}
	if end < len(text) {
		// Back off to the last whole word inside the window.
		cut := end
		for _, tok := range tokens {
			if tok.End > end {
				break
			}
			if tok.Start >= start {
				cut = tok.End
			}
		}
		if cut > start {
			end = cut
		}
	}
	return start, end
}
