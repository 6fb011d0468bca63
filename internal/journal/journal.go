// Watchbridge - Media Server Watch Sync and Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchbridge

// Package journal records the outcome of every processed watch event.
//
// The dedupe cache intentionally marks a key as seen before the downstream
// sync is known to have succeeded, so a failed sync inside the window is
// suppressed on retry. The journal is the audit surface for that policy:
// every event lands here with its final status, and `watchbridge report
// failures` reads the rows back.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/watchbridge/internal/logging"

	_ "modernc.org/sqlite"
)

// Event statuses recorded in sync_log.
const (
	StatusSynced    = "synced"
	StatusDuplicate = "duplicate"
	StatusFailed    = "failed"
)

// Entry is one row of the sync journal.
type Entry struct {
	ID        string
	EventKey  string
	Source    string
	Action    string
	Status    string
	Attempts  int
	Error     string
	CreatedAt time.Time
}

// Store is the SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal database at dbPath and applies any
// pending schema migrations.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping %s: %w", dbPath, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Debug().
		Str("component", "journal").
		Str("path", dbPath).
		Msg("Sync journal opened")

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("journal: create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("journal: read migration version: %w", err)
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS sync_log (
					id TEXT PRIMARY KEY,
					event_key TEXT NOT NULL,
					source TEXT NOT NULL,
					action TEXT NOT NULL,
					status TEXT NOT NULL,
					attempts INTEGER NOT NULL DEFAULT 0,
					error TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_sync_log_status_created ON sync_log(status, created_at);
				CREATE INDEX IF NOT EXISTS idx_sync_log_event_key ON sync_log(event_key);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return fmt.Errorf("journal: apply migration %d: %w", m.version, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return fmt.Errorf("journal: record migration %d: %w", m.version, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal: commit migrations: %w", err)
	}
	return nil
}

// Record inserts one journal entry. A missing ID or CreatedAt is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, event_key, source, action, status, attempts, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EventKey, e.Source, e.Action, e.Status, e.Attempts, e.Error, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", e.EventKey, err)
	}
	return nil
}

// ListFailures returns failed entries created at or after since, newest
// first, capped at limit.
func (s *Store) ListFailures(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_key, source, action, status, attempts, error, created_at
		FROM sync_log
		WHERE status = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`, StatusFailed, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list failures: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListByKey returns every entry for an event key, newest first. The history
// of a key shows dedupe suppressions that followed a failed sync.
func (s *Store) ListByKey(ctx context.Context, eventKey string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_key, source, action, status, attempts, error, created_at
		FROM sync_log
		WHERE event_key = ?
		ORDER BY created_at DESC
	`, eventKey)
	if err != nil {
		return nil, fmt.Errorf("journal: list by key %s: %w", eventKey, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// CountByStatus returns entry counts per status since the given time.
func (s *Store) CountByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM sync_log
		WHERE created_at >= ?
		GROUP BY status
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("journal: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("journal: scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate status counts: %w", err)
	}
	return counts, nil
}

// PruneBefore deletes entries created before cutoff and reports how many
// rows were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune rows affected: %w", err)
	}
	if n > 0 {
		logging.Debug().
			Str("component", "journal").
			Int64("removed", n).
			Time("cutoff", cutoff).
			Msg("Pruned journal entries")
	}
	return n, nil
}

// Ping verifies the database is reachable. Used by the readiness endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("journal: ping: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EventKey, &e.Source, &e.Action, &e.Status, &e.Attempts, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate entries: %w", err)
	}
	return entries, nil
}
