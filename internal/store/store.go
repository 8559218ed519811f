package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultHistoryCap bounds search_history when Options.HistoryCap is zero.
const DefaultHistoryCap = 1000

// Options configure a Store.
type Options struct {
	// HistoryCap is the number of search_history rows kept.
	HistoryCap int

	// Now stamps created_at/updated_at. Defaults to time.Now.
	Now func() time.Time
}

// Store provides durable storage for journal entries.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db         *sql.DB
	historyCap int
	now        func() time.Time
}

// Open creates or opens a SQLite database at the given path and applies
// pending migrations.
//
// Pragmas are passed in the DSN so that every pooled connection gets them;
// readers use their own connections and are not blocked by the writer.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if opts.HistoryCap <= 0 {
		opts.HistoryCap = DefaultHistoryCap
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Store{db: db, historyCap: opts.HistoryCap, now: opts.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

// migrate runs the embedded goose migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("new provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("up: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
