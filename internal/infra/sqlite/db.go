// Package sqlite implements the durable backend: row-per-record relational
// storage for accounts, the charge ledger, and all domain record kinds,
// plus a per-row change feed published after each committed write.
//
// Column names are snake_case; the mapping to the internal camelCase shape
// happens at scan/exec time in this package and nowhere else.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/focusdeck/focusdeck/internal/domain"
)

// DB wraps the sqlite handle and the change-feed notifier.
type DB struct {
	db       *sql.DB
	notifier domain.Notifier
}

// Open opens (or creates) the database at path and applies all migrations.
// Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent service calls.
	sdb.SetMaxOpenConns(1)

	for _, stmt := range Migrations() {
		if _, err := sdb.Exec(stmt); err != nil {
			sdb.Close()
			return nil, fmt.Errorf("apply migration: %w", err)
		}
	}
	return &DB{db: sdb}, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// SetNotifier attaches the change-feed notifier. Writes committed after this
// call publish per-record events keyed by account id.
func (db *DB) SetNotifier(n domain.Notifier) { db.notifier = n }

func (db *DB) publish(accountID string, ev domain.ChangeEvent) {
	if db.notifier != nil {
		db.notifier.Publish(accountID, ev)
	}
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL DEFAULT '',
			email            TEXT NOT NULL DEFAULT '',
			balance          INTEGER NOT NULL DEFAULT 0,
			token_week_start TEXT NOT NULL DEFAULT '',
			guest            INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Append-only charge log. The unique request id pair is the
		// idempotency guarantee for check-and-deduct retries.
		`CREATE TABLE IF NOT EXISTS ledger_transactions (
			id         TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			feature    TEXT NOT NULL,
			cost       INTEGER NOT NULL,
			timestamp  TEXT NOT NULL,
			UNIQUE(account_id, request_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_transactions(account_id, timestamp)`,

		// Record ids are client-supplied and only unique within one account,
		// so every record table keys on (account_id, id). Upserts conflict on
		// the pair; an id reused by another account is a different row.
		`CREATE TABLE IF NOT EXISTS tasks (
			id           TEXT NOT NULL,
			account_id   TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL DEFAULT '',
			priority     TEXT NOT NULL DEFAULT '',
			date         TEXT NOT NULL DEFAULT '',
			completed    INTEGER NOT NULL DEFAULT 0,
			status_label TEXT NOT NULL DEFAULT '',
			project_id   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(account_id, project_id)`,

		`CREATE TABLE IF NOT EXISTS projects (
			id          TEXT NOT NULL,
			account_id  TEXT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			client_id   TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT '',
			progress    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (account_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_projects_client ON projects(account_id, client_id)`,

		`CREATE TABLE IF NOT EXISTS clients (
			id         TEXT NOT NULL,
			account_id TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL DEFAULT '',
			company    TEXT NOT NULL DEFAULT '',
			status     TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, id)
		)`,

		`CREATE TABLE IF NOT EXISTS habits (
			id              TEXT NOT NULL,
			account_id      TEXT NOT NULL,
			name            TEXT NOT NULL DEFAULT '',
			color           TEXT NOT NULL DEFAULT '',
			streak          INTEGER NOT NULL DEFAULT 0,
			completed_dates TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (account_id, id)
		)`,

		`CREATE TABLE IF NOT EXISTS folders (
			id         TEXT NOT NULL,
			account_id TEXT NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			client_id  TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_folders_client ON folders(account_id, client_id)`,

		`CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT NOT NULL,
			account_id TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			messages   TEXT NOT NULL DEFAULT '[]',
			updated_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (account_id, id)
		)`,
	}
}

// ─── Time Helpers ───────────────────────────────────────────────────────────

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Older rows written by datetime('now') defaults.
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}
