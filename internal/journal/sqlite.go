// Package journal records store mutations in an append-only audit log.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hist-go/internal/hist"
	"hist-go/internal/journal/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements hist.Journal on a SQLite database.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal opens (creating if needed) the journal at path and brings
// its schema up to date. path may be ":memory:".
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring journal: %w", err)
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.Check(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db, path: path}, nil
}

// Path returns the database location.
func (j *SQLiteJournal) Path() string {
	return j.path
}

func (j *SQLiteJournal) Record(e hist.Event) error {
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.Exec(
		`INSERT INTO journal_entries (occurred_at, kind, path, storage_key, version_index, count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		at.UTC(), string(e.Kind), e.Path, e.Key, e.Index, e.Count,
	)
	if err != nil {
		return fmt.Errorf("recording %s event for %s: %w", e.Kind, e.Path, err)
	}
	return nil
}

func (j *SQLiteJournal) Recent(limit int) ([]*hist.JournalEntry, error) {
	rows, err := j.db.Query(
		`SELECT id, occurred_at, kind, path, storage_key, version_index, count
		 FROM journal_entries ORDER BY id DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	return scanEntries(rows)
}

func (j *SQLiteJournal) ForPath(path string, limit int) ([]*hist.JournalEntry, error) {
	rows, err := j.db.Query(
		`SELECT id, occurred_at, kind, path, storage_key, version_index, count
		 FROM journal_entries WHERE path = ? ORDER BY id DESC LIMIT ?`, path, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying journal for %s: %w", path, err)
	}
	return scanEntries(rows)
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// normalizeLimit maps a non-positive limit to SQLite's "no limit".
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func scanEntries(rows *sql.Rows) ([]*hist.JournalEntry, error) {
	defer rows.Close()

	var entries []*hist.JournalEntry
	for rows.Next() {
		var (
			e    hist.JournalEntry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &kind, &e.Path, &e.Key, &e.Index, &e.Count); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Kind = hist.EventKind(kind)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal entries: %w", err)
	}
	return entries, nil
}

// Compile-time check that SQLiteJournal implements hist.Journal interface
var _ hist.Journal = (*SQLiteJournal)(nil)
