package query

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quill/internal/analysis"
)

func term(word string) Term {
	return Term{Text: analysis.Stem(word), Word: word}
}

func TestParse_BareTermsAreImplicitAnd(t *testing.T) {
	q := Parse("walk garden")
	want := Query{Must: []Clause{term("walk"), term("garden")}}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PhraseAndExclusion(t *testing.T) {
	q := Parse(`"daily walk" -rain`)
	want := Query{
		Must: []Clause{Phrase{
			Terms: []string{analysis.Stem("daily"), "walk"},
			Words: []string{"daily", "walk"},
		}},
		MustNot: []Term{term("rain")},
	}
	if diff := cmp.Diff(want, q); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, q.Positive())
}

func TestParse_Prefix(t *testing.T) {
	q := Parse("gard* Wal*")
	require.Len(t, q.Prefix, 2)
	assert.Equal(t, "gard", q.Prefix[0].Word)
	assert.Equal(t, "wal", q.Prefix[1].Word)
	assert.False(t, q.Sanitized)
}

func TestParse_SingleWordPhraseIsTerm(t *testing.T) {
	q := Parse(`"walk"`)
	assert.Equal(t, []Clause{term("walk")}, q.Must)
}

func TestParse_NeverFails(t *testing.T) {
	inputs := []string{
		``, `"`, `""`, `-`, `*`, `***`, `-"`, `"unterminated`, `a"b`, `wa*lk`,
		`-!!!`, `((walk))`, `walk**`, `tea/cof*`, "\x00\xff",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.NotPanics(t, func() { Parse(in) })
		})
	}
}

func TestParse_Sanitized(t *testing.T) {
	tests := []struct {
		input string
		must  int
	}{
		{`"open walk`, 2}, // unterminated quote read literally
		{`wa*lk`, 2},      // inner star dropped
		{`-"bad day" walk`, 1},
		{`-`, 0},
		{`""`, 0},
		{`tea/cof*`, 2},
		{`walk**`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q := Parse(tt.input)
			assert.True(t, q.Sanitized)
			assert.Len(t, q.Must, tt.must)
		})
	}
}

func TestParse_TruncatesExcessTokens(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "w" + strings.Repeat("x", i+1)
	}
	q := Parse(strings.Join(words, " "))
	assert.True(t, q.Truncated)
	assert.Len(t, q.Must, DefaultMaxTokens)

	q = ParseWithLimit("alpha beta gamma", 2)
	assert.True(t, q.Truncated)
	assert.Len(t, q.Must, 2)
}

func TestParse_TruncatesPhraseToBudget(t *testing.T) {
	q := ParseWithLimit(`walk "one two three"`, 3)
	require.Len(t, q.Must, 2)
	p, ok := q.Must[1].(Phrase)
	require.True(t, ok)
	assert.Len(t, p.Terms, 2)
	assert.True(t, q.Truncated)
}

func TestParse_Dedupes(t *testing.T) {
	q := Parse("walk Walk walking -rain -rain")
	assert.Len(t, q.Must, 1)
	assert.Len(t, q.MustNot, 1)
}

func TestQuery_Stems(t *testing.T) {
	q := Parse(`walk "walk garden" -rain`)
	assert.Equal(t, []string{"walk", "garden"}, q.Stems())
}

func TestParse_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	cases := map[string]string{
		"phrase_exclusion":   `"daily walk" -rain`,
		"prefix_and_dropped": `garden* walk -"bad day"`,
		"unterminated":       `"open walk`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			g.Assert(t, name, []byte(Parse(input).String()))
		})
	}
}
