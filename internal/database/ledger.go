package database

import (
	"database/sql"
	"fmt"

	"github.com/asboyob/hassio-google-drive-backup/internal/database/migrations"
	"github.com/asboyob/hassio-google-drive-backup/internal/engine"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger implements the engine.Ledger interface using SQLite. It holds
// the sync history plus the set of supervisor-side retained slugs, which the
// supervisor itself has no field for.
type SQLiteLedger struct {
	db   *sql.DB
	path string
}

// NewSQLiteLedger opens (creating if needed) the ledger at path and brings
// its schema up to date. path can be ":memory:" for an in-memory ledger.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger at %s: %w", path, err)
	}
	return &SQLiteLedger{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the ledger relies on. Exported for tools and tests that need a properly
// configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite ships with foreign keys OFF for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// RecordEvent appends one event to the history.
func (l *SQLiteLedger) RecordEvent(event *engine.Event) error {
	_, err := l.db.Exec(
		`INSERT INTO events (id, operation, slug, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.Operation, event.Slug, event.Detail, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (l *SQLiteLedger) ListEvents(limit int) ([]*engine.Event, error) {
	rows, err := l.db.Query(
		`SELECT id, operation, slug, detail, created_at FROM events ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []*engine.Event
	for rows.Next() {
		event := &engine.Event{}
		if err := rows.Scan(&event.ID, &event.Operation, &event.Slug, &event.Detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}
	return events, nil
}

// SetRetained adds or removes a slug from the retained set. Both directions
// are idempotent.
func (l *SQLiteLedger) SetRetained(slug string, retained bool) error {
	var err error
	if retained {
		_, err = l.db.Exec(`INSERT OR IGNORE INTO retained_slugs (slug) VALUES (?)`, slug)
	} else {
		_, err = l.db.Exec(`DELETE FROM retained_slugs WHERE slug = ?`, slug)
	}
	if err != nil {
		return fmt.Errorf("updating retained slug %s: %w", slug, err)
	}
	return nil
}

// RetainedSlugs returns the set of slugs retained on the supervisor side.
func (l *SQLiteLedger) RetainedSlugs() (map[string]bool, error) {
	rows, err := l.db.Query(`SELECT slug FROM retained_slugs`)
	if err != nil {
		return nil, fmt.Errorf("listing retained slugs: %w", err)
	}
	defer rows.Close()

	slugs := make(map[string]bool)
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scanning retained slug: %w", err)
		}
		slugs[slug] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading retained slugs: %w", err)
	}
	return slugs, nil
}

// Path returns the ledger file path (or ":memory:").
func (l *SQLiteLedger) Path() string {
	return l.path
}

// CheckMigrations verifies the ledger schema is up-to-date.
func (l *SQLiteLedger) CheckMigrations() error {
	return migrations.Status(l.db)
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteLedger implements the engine.Ledger interface
var _ engine.Ledger = (*SQLiteLedger)(nil)
