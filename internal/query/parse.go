package query

import (
	"strings"
	"unicode"

	"github.com/roach88/quill/internal/analysis"
)

// Parse parses raw query text with the default token cap.
func Parse(input string) Query {
	return ParseWithLimit(input, DefaultMaxTokens)
}

// ParseWithLimit parses raw query text keeping at most maxTokens tokens.
// A non-positive maxTokens means DefaultMaxTokens.
func ParseWithLimit(input string, maxTokens int) Query {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	p := &parser{
		input:  []rune(input),
		budget: maxTokens,
		seen:   make(map[string]bool),
	}
	p.run()
	return p.q
}

type parser struct {
	input  []rune
	pos    int
	budget int
	seen   map[string]bool
	q      Query
}

func (p *parser) run() {
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return
		}
		r := p.input[p.pos]
		switch {
		case r == '"':
			p.phrase()
		case r == '-' && p.peek(1) == '"':
			// Negated phrases are not part of the grammar; drop the clause
			// rather than invert the caller's intent.
			p.q.Sanitized = true
			p.pos++
			if _, closed := p.quoted(); !closed {
				return
			}
		default:
			p.word(p.bare())
		}
	}
}

func (p *parser) peek(n int) rune {
	if p.pos+n < len(p.input) {
		return p.input[p.pos+n]
	}
	return 0
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}

// bare consumes runes up to the next whitespace.
func (p *parser) bare() string {
	start := p.pos
	for p.pos < len(p.input) && !unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
	return string(p.input[start:p.pos])
}

// quoted consumes a quoted run starting at the opening quote. It reports
// whether a closing quote was found; unclosed runs extend to end of input.
func (p *parser) quoted() (string, bool) {
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.input) {
		if p.input[p.pos] == '"' {
			text := string(p.input[start:p.pos])
			p.pos++
			return text, true
		}
		p.pos++
	}
	return string(p.input[start:]), false
}

func (p *parser) phrase() {
	text, closed := p.quoted()
	tokens := analysis.Tokenize(text)
	if !closed {
		// Unterminated quote: read the remainder as literal words.
		p.q.Sanitized = true
		p.literal(tokens)
		return
	}
	switch len(tokens) {
	case 0:
		p.q.Sanitized = true
	case 1:
		p.addMust(tokens[0])
	default:
		p.addPhrase(tokens)
	}
}

func (p *parser) word(raw string) {
	if strings.ContainsRune(raw, '"') {
		p.q.Sanitized = true
		p.literal(analysis.Tokenize(raw))
		return
	}

	if rest, ok := strings.CutPrefix(raw, "-"); ok {
		tokens := analysis.Tokenize(rest)
		if len(tokens) == 0 || strings.ContainsRune(rest, '*') {
			p.q.Sanitized = true
		}
		for _, tok := range tokens {
			p.addMustNot(tok)
		}
		return
	}

	if strings.HasSuffix(raw, "*") {
		base := strings.TrimRight(raw, "*")
		tokens := analysis.Tokenize(base)
		if len(raw)-len(base) > 1 {
			p.q.Sanitized = true
		}
		if len(tokens) == 1 && tokens[0].Start == 0 && tokens[0].End == len(base) {
			p.addPrefix(tokens[0].Word)
			return
		}
		p.q.Sanitized = true
		p.literal(tokens)
		return
	}

	if strings.ContainsRune(raw, '*') {
		p.q.Sanitized = true
	}
	p.literal(analysis.Tokenize(raw))
}

func (p *parser) literal(tokens []analysis.Token) {
	for _, tok := range tokens {
		p.addMust(tok)
	}
}

// take reserves n tokens from the budget and returns how many fit.
func (p *parser) take(n int) int {
	if n > p.budget {
		p.q.Truncated = true
		n = p.budget
	}
	p.budget -= n
	return n
}

func (p *parser) claim(key string) bool {
	if p.seen[key] {
		return false
	}
	p.seen[key] = true
	return true
}

func (p *parser) addMust(tok analysis.Token) {
	if !p.claim("t:" + tok.Term) {
		return
	}
	if p.take(1) == 0 {
		return
	}
	p.q.Must = append(p.q.Must, Term{Text: tok.Term, Word: tok.Word})
}

func (p *parser) addMustNot(tok analysis.Token) {
	if !p.claim("n:" + tok.Term) {
		return
	}
	if p.take(1) == 0 {
		return
	}
	p.q.MustNot = append(p.q.MustNot, Term{Text: tok.Term, Word: tok.Word})
}

func (p *parser) addPrefix(word string) {
	if !p.claim("p:" + word) {
		return
	}
	if p.take(1) == 0 {
		return
	}
	p.q.Prefix = append(p.q.Prefix, Prefix{Word: word})
}

func (p *parser) addPhrase(tokens []analysis.Token) {
	terms := make([]string, len(tokens))
	words := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
		words[i] = tok.Word
	}
	if !p.claim("f:" + strings.Join(terms, " ")) {
		return
	}
	n := p.take(len(tokens))
	switch {
	case n == 0:
		return
	case n == 1:
		p.q.Must = append(p.q.Must, Term{Text: terms[0], Word: words[0]})
	default:
		p.q.Must = append(p.q.Must, Phrase{Terms: terms[:n], Words: words[:n]})
	}
}
