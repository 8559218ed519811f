package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/quill/internal/analysis"
	"github.com/roach88/quill/internal/conflict"
	"github.com/roach88/quill/internal/journal"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const entryColumns = `id, entry_date, entry_type, content, week_start_date, month_year, version, created_at, updated_at`

// SaveEntry creates or updates the entry for req.Key and reindexes it.
//
// req must already be normalized (journal.Normalize). The stored version is
// re-read inside the transaction and compared with req.ExpectedVersion; a
// mismatch returns *journal.ConflictError carrying the stored content.
// Storage failures return *journal.StorageError.
func (s *Store) SaveEntry(ctx context.Context, req journal.SaveRequest) (journal.Entry, error) {
	entry, err := s.saveEntry(ctx, req)
	if err != nil {
		if journal.IsConflict(err) {
			return journal.Entry{}, err
		}
		return journal.Entry{}, journal.NewStorageError("save", req.Key, err)
	}
	return entry, nil
}

func (s *Store) saveEntry(ctx context.Context, req journal.SaveRequest) (journal.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("save entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	current, found, err := loadEntry(ctx, tx, req.Key)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	stored := journal.NoVersion
	if found {
		stored = current.Version
	}
	decision := conflict.Resolve(req.ExpectedVersion, stored)
	if decision.Outcome == conflict.Conflict {
		return journal.Entry{}, decision.Err(req.Key, current.Content)
	}

	now := s.now().UTC()
	weekStart, monthYear := journal.Derived(req.Key)
	entry := journal.Entry{
		ID:        current.ID,
		Date:      req.Key.Date,
		Type:      req.Key.Type,
		Content:   req.Content,
		WeekStart: weekStart,
		MonthYear: monthYear,
		Version:   decision.NextVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if !found {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO entries
			(entry_date, entry_type, content, week_start_date, month_year, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			string(entry.Date),
			string(entry.Type),
			entry.Content,
			nullString(string(entry.WeekStart)),
			nullString(entry.MonthYear),
			entry.Version,
			entry.CreatedAt.UnixNano(),
			entry.UpdatedAt.UnixNano(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return journal.Entry{}, s.raceConflict(ctx, req)
			}
			return journal.Entry{}, fmt.Errorf("save entry: insert: %w", err)
		}
		if entry.ID, err = res.LastInsertId(); err != nil {
			return journal.Entry{}, fmt.Errorf("save entry: last insert id: %w", err)
		}
	} else {
		entry.CreatedAt = current.CreatedAt
		res, err := tx.ExecContext(ctx, `
			UPDATE entries
			SET content = ?, week_start_date = ?, month_year = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`,
			entry.Content,
			nullString(string(entry.WeekStart)),
			nullString(entry.MonthYear),
			entry.Version,
			entry.UpdatedAt.UnixNano(),
			entry.ID,
			stored,
		)
		if err != nil {
			return journal.Entry{}, fmt.Errorf("save entry: update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return journal.Entry{}, fmt.Errorf("save entry: rows affected: %w", err)
		}
		if n != 1 {
			return journal.Entry{}, s.raceConflict(ctx, req)
		}
	}

	if err := reindex(ctx, tx, entry.ID, entry.Content); err != nil {
		return journal.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return journal.Entry{}, fmt.Errorf("save entry: commit: %w", err)
	}
	return entry, nil
}

// raceConflict builds the conflict for a write that lost to another
// connection between the version read and the row write.
func (s *Store) raceConflict(ctx context.Context, req journal.SaveRequest) error {
	current, found, err := loadEntry(ctx, s.db, req.Key)
	if err != nil {
		return fmt.Errorf("save entry: reload after race: %w", err)
	}
	remote := journal.NoVersion
	if found {
		remote = current.Version
	}
	return &journal.ConflictError{
		Key:           req.Key,
		LocalVersion:  req.ExpectedVersion,
		RemoteVersion: remote,
		RemoteContent: current.Content,
	}
}

// LoadEntry returns the live entry for key. found is false when none exists.
func (s *Store) LoadEntry(ctx context.Context, key journal.Key) (entry journal.Entry, found bool, err error) {
	entry, found, err = loadEntry(ctx, s.db, key)
	if err != nil {
		return journal.Entry{}, false, journal.NewStorageError("load", key, err)
	}
	return entry, found, nil
}

func loadEntry(ctx context.Context, q queryer, key journal.Key) (journal.Entry, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE entry_date = ? AND entry_type = ?
	`, string(key.Date), string(key.Type))

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, false, nil
	}
	if err != nil {
		return journal.Entry{}, false, fmt.Errorf("load entry: %w", err)
	}
	return entry, true, nil
}

// DeleteEntry removes the entry for key and its index rows in one
// transaction. Deleting a missing entry is not an error; existed reports
// whether a row was removed.
func (s *Store) DeleteEntry(ctx context.Context, key journal.Key) (existed bool, err error) {
	existed, err = s.deleteEntry(ctx, key)
	if err != nil {
		return false, journal.NewStorageError("delete", key, err)
	}
	return existed, nil
}

func (s *Store) deleteEntry(ctx context.Context, key journal.Key) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete entry: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM entries WHERE entry_date = ? AND entry_type = ?
	`, string(key.Date), string(key.Type)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete entry: lookup: %w", err)
	}

	if err := unindex(ctx, tx, id); err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete entry: commit: %w", err)
	}
	return true, nil
}

// reindex replaces every index row of an entry with the analysis of content.
func reindex(ctx context.Context, tx *sql.Tx, entryID int64, content string) error {
	if err := unindex(ctx, tx, entryID); err != nil {
		return err
	}

	tokens := analysis.Tokenize(content)
	positions := make(map[string][]int)
	words := make(map[string]struct{})
	for _, tok := range tokens {
		positions[tok.Term] = append(positions[tok.Term], tok.Pos)
		words[tok.Word] = struct{}{}
	}

	terms := make([]string, 0, len(positions))
	for term := range positions {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	for _, term := range terms {
		pos, err := json.Marshal(positions[term])
		if err != nil {
			return fmt.Errorf("reindex: marshal positions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_postings (term, entry_id, tf, positions)
			VALUES (?, ?, ?, ?)
		`, term, entryID, len(positions[term]), string(pos)); err != nil {
			return fmt.Errorf("reindex: insert posting: %w", err)
		}
	}

	for word := range words {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO search_words (word, entry_id) VALUES (?, ?)
		`, word, entryID); err != nil {
			return fmt.Errorf("reindex: insert word: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_index (entry_id, token_count, digest) VALUES (?, ?, ?)
	`, entryID, len(tokens), journal.ContentDigest(content, false)); err != nil {
		return fmt.Errorf("reindex: insert index row: %w", err)
	}
	return nil
}

func unindex(ctx context.Context, tx *sql.Tx, entryID int64) error {
	for _, stmt := range []string{
		`DELETE FROM search_postings WHERE entry_id = ?`,
		`DELETE FROM search_words WHERE entry_id = ?`,
		`DELETE FROM search_index WHERE entry_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, entryID); err != nil {
			return fmt.Errorf("unindex: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (journal.Entry, error) {
	var (
		e                    journal.Entry
		date, typ            string
		weekStart, monthYear sql.NullString
		created, updated     int64
	)
	if err := row.Scan(&e.ID, &date, &typ, &e.Content, &weekStart, &monthYear, &e.Version, &created, &updated); err != nil {
		return journal.Entry{}, err
	}
	e.Date = journal.Date(date)
	e.Type = journal.Type(typ)
	e.WeekStart = journal.Date(weekStart.String)
	e.MonthYear = monthYear.String
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
