// Package store implements spec.md §4.k: a sqlite-backed
// domain.PersistenceManager sitting behind a small LRU read cache, with a
// typed JSON validator so a malformed row never reaches the core as a
// half-decoded struct.
//
// Grounded on internal/infra/sqlite/phase3.go's migration-list-of-strings
// and upsert idiom (INSERT ... ON CONFLICT(...) DO UPDATE SET), adapted
// from that package's region/circuit-breaker/quarantine tables to AMAS's
// per-user state, model, and trace tables.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sqlite connection and the read cache layered in front of it.
type DB struct {
	db    *sql.DB
	cache *lruCache
}

// Migrations returns AMAS's schema migration statements, one SQL
// statement per entry (sqlite executes one at a time, same convention as
// the teacher's Phase3Migrations).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS user_state (
			user_id      TEXT PRIMARY KEY,
			state_json   TEXT NOT NULL,
			cold_start_json TEXT NOT NULL,
			updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS bandit_model (
			user_id    TEXT PRIMARY KEY,
			model_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS habit_profile (
			user_id    TEXT PRIMARY KEY,
			habit_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS personalised_thresholds (
			user_id         TEXT PRIMARY KEY,
			thresholds_json TEXT NOT NULL,
			updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS memory_trace (
			user_id    TEXT NOT NULL,
			word_id    TEXT NOT NULL,
			trace_json TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (user_id, word_id)
		)`,

		`CREATE TABLE IF NOT EXISTS context_vector (
			user_id          TEXT NOT NULL,
			answer_record_id TEXT NOT NULL,
			session_id       TEXT NOT NULL,
			vector_json      TEXT NOT NULL,
			created_at       TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (user_id, answer_record_id, session_id)
		)`,

		`CREATE TABLE IF NOT EXISTS reward_queue (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			reward           REAL NOT NULL,
			scheduled_for    INTEGER NOT NULL,
			session_id       TEXT,
			answer_record_id TEXT,
			attempts         INTEGER NOT NULL DEFAULT 0,
			status           TEXT NOT NULL DEFAULT 'PENDING'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reward_queue_due ON reward_queue(status, scheduled_for)`,

		`CREATE TABLE IF NOT EXISTS decision_trace (
			decision_id TEXT PRIMARY KEY,
			record_json TEXT NOT NULL,
			created_at  TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		`CREATE TABLE IF NOT EXISTS ability_sample (
			user_id TEXT NOT NULL,
			ts      INTEGER NOT NULL,
			ability REAL NOT NULL,
			PRIMARY KEY (user_id, ts)
		)`,
	}
}

// Open opens (or creates) a sqlite database at dsn and applies every
// migration. cacheSize bounds the LRU read cache entry count; 0 disables
// caching.
func Open(dsn string, cacheSize int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", dsn, err)
	}
	sqlDB.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers

	for _, stmt := range Migrations() {
		if _, err := sqlDB.Exec(stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("store: migrate: %w", err)
		}
	}

	return &DB{db: sqlDB, cache: newLRUCache(cacheSize)}, nil
}

// Close releases the underlying sqlite connection.
func (d *DB) Close() error {
	return d.db.Close()
}
