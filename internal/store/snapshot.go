package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/quill/internal/journal"
)

// Snapshot is a read-only, point-in-time view of entries and the index.
//
// It holds an open read transaction; in WAL mode every read through it
// observes the same committed state regardless of concurrent writes.
// Close must be called.
type Snapshot struct {
	tx *sql.Tx
}

// IndexedEntry is an entry together with its index statistics.
type IndexedEntry struct {
	Entry      journal.Entry
	TokenCount int
}

// Snapshot begins a read transaction.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, journal.NewStorageError("snapshot", journal.Key{}, fmt.Errorf("snapshot: begin tx: %w", err))
	}
	return &Snapshot{tx: tx}, nil
}

// Close releases the snapshot.
func (sn *Snapshot) Close() error {
	return sn.tx.Rollback()
}

// CandidateIDs runs a compiled candidate statement (see internal/searchsql)
// and returns the selected entry ids in statement order.
func (sn *Snapshot) CandidateIDs(ctx context.Context, query string, args []any) ([]int64, error) {
	rows, err := sn.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("candidates: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	return ids, nil
}

// Corpus returns the number of indexed entries and their mean token count.
func (sn *Snapshot) Corpus(ctx context.Context) (docs int, avgLength float64, err error) {
	var avg sql.NullFloat64
	err = sn.tx.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(token_count) FROM search_index
	`).Scan(&docs, &avg)
	if err != nil {
		return 0, 0, fmt.Errorf("corpus: %w", err)
	}
	return docs, avg.Float64, nil
}

// TermDocFreq returns how many entries contain each stemmed term.
// Terms absent from the index map to zero.
func (sn *Snapshot) TermDocFreq(ctx context.Context, terms []string) (map[string]int, error) {
	df := make(map[string]int, len(terms))
	for _, term := range terms {
		var n int
		if err := sn.tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM search_postings WHERE term = ?
		`, term).Scan(&n); err != nil {
			return nil, fmt.Errorf("term doc freq: %w", err)
		}
		df[term] = n
	}
	return df, nil
}

// PrefixDocFreq returns how many entries contain a word in [lo, hi).
func (sn *Snapshot) PrefixDocFreq(ctx context.Context, lo, hi string) (int, error) {
	var n int
	if err := sn.tx.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT entry_id) FROM search_words WHERE word >= ? AND word < ?
	`, lo, hi).Scan(&n); err != nil {
		return 0, fmt.Errorf("prefix doc freq: %w", err)
	}
	return n, nil
}

// Entries loads the given entries with their token counts, in ids order.
// Ids that no longer exist are skipped.
func (sn *Snapshot) Entries(ctx context.Context, ids []int64) ([]IndexedEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	byID := make(map[int64]IndexedEntry, len(ids))
	for _, chunk := range chunks(ids, 500) {
		marks, args := inList(chunk)
		rows, err := sn.tx.QueryContext(ctx, `
			SELECT e.id, e.entry_date, e.entry_type, e.content, e.week_start_date, e.month_year,
			       e.version, e.created_at, e.updated_at, i.token_count
			FROM entries e
			JOIN search_index i ON i.entry_id = e.id
			WHERE e.id IN (`+marks+`)
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("entries: %w", err)
		}
		if err := scanIndexed(rows, byID); err != nil {
			return nil, err
		}
	}

	out := make([]IndexedEntry, 0, len(ids))
	for _, id := range ids {
		if ie, ok := byID[id]; ok {
			out = append(out, ie)
		}
	}
	return out, nil
}

func scanIndexed(rows *sql.Rows, into map[int64]IndexedEntry) error {
	defer rows.Close()
	for rows.Next() {
		var ie IndexedEntry
		var tc int
		e, err := scanEntry(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &tc)...)
		}))
		if err != nil {
			return fmt.Errorf("entries: scan: %w", err)
		}
		ie.Entry = e
		ie.TokenCount = tc
		into[e.ID] = ie
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("entries: %w", err)
	}
	return nil
}

// Positions returns, for each entry id, the token positions of each
// requested stemmed term it contains.
func (sn *Snapshot) Positions(ctx context.Context, ids []int64, terms []string) (map[int64]map[string][]int, error) {
	out := make(map[int64]map[string][]int, len(ids))
	if len(ids) == 0 || len(terms) == 0 {
		return out, nil
	}

	termMarks, termArgs := inList(terms)
	for _, chunk := range chunks(ids, 500) {
		idMarks, idArgs := inList(chunk)
		rows, err := sn.tx.QueryContext(ctx, `
			SELECT entry_id, term, positions
			FROM search_postings
			WHERE entry_id IN (`+idMarks+`) AND term IN (`+termMarks+`)
			ORDER BY entry_id, term
		`, append(idArgs, termArgs...)...)
		if err != nil {
			return nil, fmt.Errorf("positions: %w", err)
		}
		if err := scanPositions(rows, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func scanPositions(rows *sql.Rows, into map[int64]map[string][]int) error {
	defer rows.Close()
	for rows.Next() {
		var (
			id       int64
			term     string
			rawPos   string
			position []int
		)
		if err := rows.Scan(&id, &term, &rawPos); err != nil {
			return fmt.Errorf("positions: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(rawPos), &position); err != nil {
			return fmt.Errorf("positions: decode: %w", err)
		}
		if into[id] == nil {
			into[id] = make(map[string][]int)
		}
		into[id][term] = position
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	return nil
}

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

func inList[T any](values []T) (string, []any) {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return marks, args
}

func chunks[T any](values []T, size int) [][]T {
	var out [][]T
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
