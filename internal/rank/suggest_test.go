package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionsBlendFrequencyAndRecency(t *testing.T) {
	day := 24 * time.Hour
	records := []HistoryRecord{
		{Query: "garden", ResultCount: 3, SearchedAt: now.Add(-60 * day)},
		{Query: "garden", ResultCount: 3, SearchedAt: now.Add(-50 * day)},
		{Query: "Garden ", ResultCount: 2, SearchedAt: now.Add(-40 * day)},
		{Query: "walk", ResultCount: 1, SearchedAt: now.Add(-2 * time.Hour)},
		{Query: "walk", ResultCount: 1, SearchedAt: now.Add(-time.Hour)},
		{Query: "nothing here", ResultCount: 0, SearchedAt: now},
	}

	got := Suggestions(records, now, 30*day)
	require.Len(t, got, 2)
	assert.Equal(t, "walk", got[0].Query)
	assert.Equal(t, "Garden", got[1].Query)
	assert.Equal(t, 3, got[1].Count)
}

func TestSuggestionsEmpty(t *testing.T) {
	assert.Empty(t, Suggestions(nil, now, time.Hour))
}

func TestMatchKeepsRankOrder(t *testing.T) {
	in := []Suggestion{
		{Query: "morning walk"},
		{Query: "garden"},
		{Query: "walking shoes"},
	}

	got := Match("walk", in)
	require.Len(t, got, 2)
	assert.Equal(t, "morning walk", got[0].Query)
	assert.Equal(t, "walking shoes", got[1].Query)

	assert.Len(t, Match("  ", in), 3)
	assert.Empty(t, Match("zzz", in))
}
