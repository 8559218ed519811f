package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quill/internal/journal"
	"github.com/roach88/quill/internal/query"
	"github.com/roach88/quill/internal/searchsql"
)

func seed(t *testing.T, s *Store, entries ...journal.SaveRequest) []journal.Entry {
	t.Helper()
	var out []journal.Entry
	for _, req := range entries {
		e, err := s.SaveEntry(context.Background(), req)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestSnapshot_CandidatesPhraseAndExclusion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seeded := seed(t, s,
		saveReq("2025-03-01", journal.TypeDaily, "A daily walk in the park", 0),
		saveReq("2025-03-02", journal.TypeDaily, "Daily walk, then rain all afternoon", 0),
		saveReq("2025-03-03", journal.TypeDaily, "walk daily", 0),
	)

	sql, args, err := searchsql.NewCompiler().Candidates(query.Parse(`"daily walk" -rain`), searchsql.Filters{})
	require.NoError(t, err)

	sn, err := s.Snapshot(ctx)
	require.NoError(t, err)
	defer sn.Close()

	ids, err := sn.CandidateIDs(ctx, sql, args)
	require.NoError(t, err)
	// Adjacency is verified by the caller; the store only checks term presence.
	assert.Equal(t, []int64{seeded[2].ID, seeded[0].ID}, ids)

	pos, err := sn.Positions(ctx, ids, []string{"daili", "walk"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"daili": {1}, "walk": {2}}, pos[seeded[0].ID])
	assert.Equal(t, map[string][]int{"daili": {1}, "walk": {0}}, pos[seeded[2].ID])
}

func TestSnapshot_PrefixCandidates(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seeded := seed(t, s,
		saveReq("2025-03-01", journal.TypeDaily, "gardening all day", 0),
		saveReq("2025-03-02", journal.TypeWeekly, "the garden is green", 0),
		saveReq("2025-03-03", journal.TypeDaily, "guard duty", 0),
	)

	sql, args, err := searchsql.NewCompiler().Candidates(query.Parse("gard*"), searchsql.Filters{
		Types: []journal.Type{journal.TypeDaily},
	})
	require.NoError(t, err)

	sn, err := s.Snapshot(ctx)
	require.NoError(t, err)
	defer sn.Close()

	ids, err := sn.CandidateIDs(ctx, sql, args)
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[0].ID}, ids)

	lo, hi := searchsql.PrefixRange("gard")
	df, err := sn.PrefixDocFreq(ctx, lo, hi)
	require.NoError(t, err)
	assert.Equal(t, 2, df)
}

func TestSnapshot_CorpusAndDocFreq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed(t, s,
		saveReq("2025-03-01", journal.TypeDaily, "one two", 0),
		saveReq("2025-03-02", journal.TypeDaily, "two three four five", 0),
	)

	sn, err := s.Snapshot(ctx)
	require.NoError(t, err)
	defer sn.Close()

	docs, avg, err := sn.Corpus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, docs)
	assert.InDelta(t, 3.0, avg, 1e-9)

	df, err := sn.TermDocFreq(ctx, []string{"two", "five", "absent"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"two": 2, "five": 1, "absent": 0}, df)
}

func TestSnapshot_EntriesKeepsOrderAndSkipsMissing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seeded := seed(t, s,
		saveReq("2025-03-01", journal.TypeDaily, "alpha", 0),
		saveReq("2025-03-02", journal.TypeDaily, "beta gamma", 0),
	)

	sn, err := s.Snapshot(ctx)
	require.NoError(t, err)
	defer sn.Close()

	got, err := sn.Entries(ctx, []int64{seeded[1].ID, 999, seeded[0].ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "beta gamma", got[0].Entry.Content)
	assert.Equal(t, 2, got[0].TokenCount)
	assert.Equal(t, seeded[0].ID, got[1].Entry.ID)
}

func TestSnapshot_IsolatedFromLaterWrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seed(t, s, saveReq("2025-03-01", journal.TypeDaily, "alpha", 0))

	sn, err := s.Snapshot(ctx)
	require.NoError(t, err)
	defer sn.Close()

	docs, _, err := sn.Corpus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, docs)

	seed(t, s, saveReq("2025-03-02", journal.TypeDaily, "beta", 0))

	docs, _, err = sn.Corpus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
}
