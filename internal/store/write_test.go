package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quill/internal/journal"
)

func TestSaveEntry_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "hello", journal.NoVersion))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, fixedNow, saved.CreatedAt)

	loaded, found, err := s.LoadEntry(ctx, saved.Key())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, saved, loaded)
}

func TestSaveEntry_DerivedFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	weekly, err := s.SaveEntry(ctx, saveReq("2025-03-06", journal.TypeWeekly, "week", journal.NoVersion))
	require.NoError(t, err)
	assert.Equal(t, journal.Date("2025-03-03"), weekly.WeekStart)
	assert.Empty(t, weekly.MonthYear)

	monthly, err := s.SaveEntry(ctx, saveReq("2025-03-06", journal.TypeMonthly, "month", journal.NoVersion))
	require.NoError(t, err)
	assert.Equal(t, "2025-03", monthly.MonthYear)
	assert.Empty(t, monthly.WeekStart)

	loaded, _, err := s.LoadEntry(ctx, weekly.Key())
	require.NoError(t, err)
	assert.Equal(t, journal.Date("2025-03-03"), loaded.WeekStart)
}

func TestSaveEntry_MonotonicVersions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	v1, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "hello", journal.NoVersion))
	require.NoError(t, err)
	require.Equal(t, int64(1), v1.Version)

	v2, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "hello world", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.Version)
	assert.Equal(t, v1.ID, v2.ID)

	_, err = s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "x", 1))
	var ce *journal.ConflictError
	require.True(t, errors.As(err, &ce), "want ConflictError, got %v", err)
	assert.Equal(t, int64(1), ce.LocalVersion)
	assert.Equal(t, int64(2), ce.RemoteVersion)
	assert.Equal(t, "hello world", ce.RemoteContent)

	loaded, _, err := s.LoadEntry(ctx, v1.Key())
	require.NoError(t, err)
	assert.Equal(t, "hello world", loaded.Content)
}

func TestSaveEntry_CreateOverExistingConflicts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "first", journal.NoVersion))
	require.NoError(t, err)

	_, err = s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "second", journal.NoVersion))
	var ce *journal.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, journal.NoVersion, ce.LocalVersion)
	assert.Equal(t, int64(1), ce.RemoteVersion)
}

func TestSaveEntry_UpdateMissingConflicts(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SaveEntry(context.Background(), saveReq("2025-03-03", journal.TypeDaily, "x", 4))
	var ce *journal.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, journal.NoVersion, ce.RemoteVersion)
}

func TestSaveEntry_ConcurrentCreatesOneWins(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "racer", journal.NoVersion))
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case journal.IsConflict(err):
			conflicts++
		case journal.IsStorage(err):
			// SQLITE_BUSY on lock upgrade; retryable and not a lost update
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Entries)
}

func TestSaveEntry_CancelledContextIsStorageError(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "x", journal.NoVersion))
	require.Error(t, err)
	assert.True(t, journal.IsStorage(err))
	assert.NotContains(t, err.Error(), "context")
}

func TestDeleteEntry_RemovesIndexRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	e, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "walked the dog in rain", journal.NoVersion))
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Entries: 1, Indexed: 1, Postings: 5}, st)

	existed, err := s.DeleteEntry(ctx, e.Key())
	require.NoError(t, err)
	assert.True(t, existed)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	var words int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM search_words`).Scan(&words))
	assert.Zero(t, words)

	_, found, err := s.LoadEntry(ctx, e.Key())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteEntry_MissingIsNoop(t *testing.T) {
	s := createTestStore(t)

	existed, err := s.DeleteEntry(context.Background(), journal.Key{Date: "2025-03-03", Type: journal.TypeDaily})
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestDeleteEntry_ThenRecreateStartsAtVersionOne(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "a", journal.NoVersion))
	require.NoError(t, err)
	_, err = s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "b", 1))
	require.NoError(t, err)
	_, err = s.DeleteEntry(ctx, journal.Key{Date: "2025-03-03", Type: journal.TypeDaily})
	require.NoError(t, err)

	e, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "c", journal.NoVersion))
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)
}

func TestReindex_ReplacesPostings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "rain rain", journal.NoVersion))
	require.NoError(t, err)
	_, err = s.SaveEntry(ctx, saveReq("2025-03-03", journal.TypeDaily, "sunny garden", 1))
	require.NoError(t, err)

	var terms []string
	rows, err := s.db.Query(`SELECT term FROM search_postings ORDER BY term`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var term string
		require.NoError(t, rows.Scan(&term))
		terms = append(terms, term)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"garden", "sunni"}, terms)
}
