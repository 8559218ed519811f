package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/quill/internal/journal"
)

// SearchRecord is one logged search.
type SearchRecord struct {
	Query       string
	ResultCount int
	SearchedAt  time.Time
}

// Stats summarizes table sizes.
type Stats struct {
	Entries  int
	Indexed  int
	Postings int
	History  int
}

// RecordSearch appends a search to the history and trims the history to the
// configured cap, oldest first.
func (s *Store) RecordSearch(ctx context.Context, rec SearchRecord) error {
	if err := s.recordSearch(ctx, rec); err != nil {
		return journal.NewStorageError("record search", journal.Key{}, err)
	}
	return nil
}

func (s *Store) recordSearch(ctx context.Context, rec SearchRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record search: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_history (query_text, result_count, searched_at)
		VALUES (?, ?, ?)
	`, rec.Query, rec.ResultCount, rec.SearchedAt.UnixNano()); err != nil {
		return fmt.Errorf("record search: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM search_history
		WHERE id NOT IN (SELECT id FROM search_history ORDER BY id DESC LIMIT ?)
	`, s.historyCap); err != nil {
		return fmt.Errorf("record search: trim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record search: commit: %w", err)
	}
	return nil
}

// History returns logged searches, newest first.
func (s *Store) History(ctx context.Context) ([]SearchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT query_text, result_count, searched_at
		FROM search_history
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, journal.NewStorageError("history", journal.Key{}, fmt.Errorf("history: %w", err))
	}
	defer rows.Close()

	var out []SearchRecord
	for rows.Next() {
		var rec SearchRecord
		var at int64
		if err := rows.Scan(&rec.Query, &rec.ResultCount, &at); err != nil {
			return nil, journal.NewStorageError("history", journal.Key{}, fmt.Errorf("history: scan: %w", err))
		}
		rec.SearchedAt = time.Unix(0, at).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("history", journal.Key{}, fmt.Errorf("history: %w", err))
	}
	return out, nil
}

// Stats counts rows in each table.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM search_index),
			(SELECT COUNT(*) FROM search_postings),
			(SELECT COUNT(*) FROM search_history)
	`).Scan(&st.Entries, &st.Indexed, &st.Postings, &st.History)
	if err != nil {
		return Stats{}, journal.NewStorageError("stats", journal.Key{}, fmt.Errorf("stats: %w", err))
	}
	return st, nil
}
