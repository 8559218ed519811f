// Package store provides SQLite-backed durable storage for journal entries
// and their search index.
//
// Tables:
//   - entries: one row per live (entry_date, entry_type), versioned
//   - search_index: one row per live entry (token count, content digest)
//   - search_postings: stemmed term → entry, with term frequency and positions
//   - search_words: folded unstemmed word → entry, for prefix matching
//   - search_history: capped log of executed searches
//
// # Invariants
//
// Entry/index bijection: every mutation of entries rewrites or removes the
// entry's index rows inside the same transaction, so a reader never sees one
// without the other.
//
// Versioning: SaveEntry re-reads the stored version inside its transaction
// and consults conflict.Resolve before writing. The row update is guarded by
// WHERE version = ? as well.
//
// Deterministic reads: every multi-row query orders by
// (entry_date DESC, id ASC) or by id.
//
// # Database Configuration
//
//   - WAL mode: snapshot reads run concurrently with the writer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: index rows cascade with their entry
//
// Schema changes are goose migrations embedded from migrations/.
//
// The store does not serialize writers itself. Callers route mutations
// through a single writer (see internal/writer).
package store
