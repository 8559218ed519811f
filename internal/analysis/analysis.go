// Package analysis turns text into index terms.
//
// Tokenization is whitespace/punctuation delimited: a token is a maximal
// run of letters, digits and combining marks. Each token is NFKC-normalized,
// case-folded and stemmed with the English Snowball stemmer. Tokens keep
// byte offsets into the original text so callers can build highlights.
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Token is one analyzed word of a text.
type Token struct {
	Term  string // stemmed, folded form used for matching
	Word  string // folded, unstemmed form used for prefix matching
	Pos   int    // ordinal position among the text's tokens
	Start int    // byte offset of the first byte in the source text
	End   int    // byte offset one past the last byte
}

// Tokenize analyzes text into tokens in source order.
func Tokenize(text string) []Token {
	folder := cases.Fold()

	var tokens []Token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := foldWith(folder, text[start:end])
		if word != "" {
			tokens = append(tokens, Token{
				Term:  Stem(word),
				Word:  word,
				Pos:   len(tokens),
				Start: start,
				End:   end,
			})
		}
		start = -1
	}

	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))

	return tokens
}

// Terms returns the stemmed terms of text in order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Fold normalizes and case-folds a single word.
func Fold(word string) string {
	return foldWith(cases.Fold(), word)
}

// Stem reduces a folded word to its stem. Words containing digits are
// returned unchanged.
func Stem(word string) string {
	for _, r := range word {
		if unicode.IsDigit(r) {
			return word
		}
	}
	if utf8.RuneCountInString(word) < 3 {
		return word
	}
	return english.Stem(word, false)
}

// IsWordRune reports whether r can be part of a token.
func IsWordRune(r rune) bool {
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func foldWith(c cases.Caser, word string) string {
	return strings.TrimSpace(c.String(norm.NFKC.String(word)))
}
