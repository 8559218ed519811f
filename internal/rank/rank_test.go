package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quill/internal/journal"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestRankEqualRelevancePrefersRecent(t *testing.T) {
	r := New(DefaultConfig())
	corpus := Corpus{Docs: 10, AvgLength: 20, DocFreq: map[string]int{"walk": 2}}
	docs := []Doc{
		{ID: 1, Date: "2024-01-10", Type: journal.TypeDaily, Length: 20, TermFreq: map[string]int{"walk": 1}},
		{ID: 2, Date: "2025-06-10", Type: journal.TypeDaily, Length: 20, TermFreq: map[string]int{"walk": 1}},
	}

	got := r.Rank(docs, corpus, now)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.InDelta(t, 1.0, got[0].Relevance, 1e-9)
	assert.InDelta(t, 1.0, got[1].Relevance, 1e-9)
}

func TestRankRelevanceDominatesAtSameDate(t *testing.T) {
	r := New(DefaultConfig())
	corpus := Corpus{Docs: 10, AvgLength: 20, DocFreq: map[string]int{"walk": 2}}
	docs := []Doc{
		{ID: 1, Date: "2025-06-10", Type: journal.TypeDaily, Length: 20, TermFreq: map[string]int{"walk": 1}},
		{ID: 2, Date: "2025-06-10", Type: journal.TypeDaily, Length: 20, TermFreq: map[string]int{"walk": 4}},
	}

	got := r.Rank(docs, corpus, now)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Less(t, got[1].Relevance, 1.0)
}

func TestRankTieBreaksOnID(t *testing.T) {
	r := New(DefaultConfig())
	corpus := Corpus{Docs: 4, AvgLength: 10}
	docs := []Doc{
		{ID: 9, Date: "2025-06-01", Type: journal.TypeDaily, Length: 10},
		{ID: 3, Date: "2025-06-01", Type: journal.TypeDaily, Length: 10},
	}

	got := r.Rank(docs, corpus, now)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(9), got[1].ID)
	assert.Zero(t, got[0].Relevance)
}

func TestRankTypeWeight(t *testing.T) {
	r := New(DefaultConfig())
	corpus := Corpus{Docs: 4, AvgLength: 10}
	docs := []Doc{
		{ID: 1, Date: "2025-06-01", Type: journal.TypeMonthly, Length: 10},
		{ID: 2, Date: "2025-06-01", Type: journal.TypeDaily, Length: 10},
	}

	got := r.Rank(docs, corpus, now)
	assert.Equal(t, int64(2), got[0].ID)
	assert.InDelta(t, 0.8, got[1].TypeWeight, 1e-9)
}

func TestRecencyHalfLife(t *testing.T) {
	r := New(DefaultConfig())
	assert.InDelta(t, 1.0, r.Recency("2025-06-15", now), 1e-9)
	assert.InDelta(t, 1.0, r.Recency("2025-06-20", now), 1e-9)

	thirtyDays := journal.DateOf(now.Add(-30 * 24 * time.Hour))
	// date truncation moves the age by the 12h offset of now
	assert.InDelta(t, 0.5, r.Recency(thirtyDays, now), 0.01)
}

func TestLengthNorm(t *testing.T) {
	assert.InDelta(t, 1.0, LengthNorm(20, 20), 1e-9)
	assert.InDelta(t, LengthNorm(10, 20), LengthNorm(40, 20), 1e-9)
	assert.Less(t, LengthNorm(200, 20), LengthNorm(40, 20))
	assert.InDelta(t, 1.0, LengthNorm(5, 0), 1e-9)
}

func TestBM25EmptyCorpus(t *testing.T) {
	r := New(DefaultConfig())
	d := Doc{Length: 5, TermFreq: map[string]int{"walk": 1}}
	assert.Zero(t, r.BM25(d, Corpus{}))
}

func TestBM25RareTermScoresHigher(t *testing.T) {
	r := New(DefaultConfig())
	d := Doc{Length: 10, TermFreq: map[string]int{"walk": 1}}
	rare := r.BM25(d, Corpus{Docs: 100, AvgLength: 10, DocFreq: map[string]int{"walk": 1}})
	common := r.BM25(d, Corpus{Docs: 100, AvgLength: 10, DocFreq: map[string]int{"walk": 90}})
	assert.Greater(t, rare, common)
	assert.Greater(t, common, 0.0)
}
