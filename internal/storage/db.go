package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Open opens (creating if needed) the sqlite database at path.
// Pass ":memory:" for an ephemeral database in tests.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pool connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS hosts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 22,
			status TEXT NOT NULL DEFAULT 'unknown',
			last_seen_at DATETIME,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS alert_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			host_id TEXT,
			metric_type TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			operator TEXT NOT NULL,
			threshold REAL NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			severity TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			channels_json TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS alert_events (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			host_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			value REAL NOT NULL,
			threshold REAL NOT NULL,
			triggered_at DATETIME NOT NULL,
			resolved_at DATETIME,
			acked_by TEXT,
			acked_at DATETIME,
			FOREIGN KEY(rule_id) REFERENCES alert_rules(id) ON DELETE CASCADE
		);`,
		// The open-event invariant: one unresolved event per (rule, host).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_open
			ON alert_events(rule_id, host_id) WHERE resolved_at IS NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_events_triggered
			ON alert_events(triggered_at DESC);`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id TEXT PRIMARY KEY,
			host_id TEXT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			username TEXT NOT NULL,
			ciphertext BLOB NOT NULL,
			nonce BLOB NOT NULL,
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_credentials_host_type
			ON credentials(host_id, type);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
