// Package history keeps an append-only journal of record mutations in
// SQLite, so a record's lifecycle stays reconstructable after the vector
// store has moved on.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultRecentLimit bounds Recent when the caller passes no limit.
const DefaultRecentLimit = 50

// Action names what happened to a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Entry is one journal row.
type Entry struct {
	ID         int64
	Collection string
	RecordID   string
	Action     Action
	Payload    map[string]any
	CreatedAt  time.Time
}

// Journal records and replays record mutations.
type Journal interface {
	// Append writes one mutation. The payload is stored as written.
	Append(ctx context.Context, collection, recordID string, action Action, payload map[string]any) error

	// ByRecord returns a record's mutations oldest first.
	ByRecord(ctx context.Context, collection, recordID string) ([]Entry, error)

	// Recent returns the latest mutations newest first. An empty collection
	// spans all collections.
	Recent(ctx context.Context, collection string, limit int) ([]Entry, error)

	// Close releases the underlying database.
	Close() error
}

// SQLiteJournal implements Journal on a SQLite database file.
type SQLiteJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteJournal opens (or creates) the journal database at dbPath.
func NewSQLiteJournal(dbPath string, logger *slog.Logger) (*SQLiteJournal, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("journal database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	// SQLite serializes writers anyway, and a single connection keeps
	// :memory: databases coherent across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS mutations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		record_id TEXT NOT NULL,
		action TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating mutations table: %w", err)
	}
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS mutations_record_idx ON mutations(collection, record_id)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating mutations index: %w", err)
	}

	logger.Debug("mutation journal initialized", "db_path", dbPath)

	return &SQLiteJournal{
		db:     db,
		logger: logger,
	}, nil
}

// Append writes one mutation.
func (j *SQLiteJournal) Append(ctx context.Context, collection, recordID string, action Action, payload map[string]any) error {
	encoded := "{}"
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
		encoded = string(b)
	}

	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO mutations(collection, record_id, action, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		collection, recordID, string(action), encoded, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("appending journal entry: %w", err)
	}

	j.logger.Debug("journaled mutation",
		"collection", collection,
		"record_id", recordID,
		"action", action,
	)
	return nil
}

// ByRecord returns a record's mutations oldest first.
func (j *SQLiteJournal) ByRecord(ctx context.Context, collection, recordID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, collection, record_id, action, payload, created_at
		FROM mutations WHERE collection = ? AND record_id = ? ORDER BY id`,
		collection, recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal for %q: %w", recordID, err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the latest mutations newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, collection string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `SELECT id, collection, record_id, action, payload, created_at FROM mutations`
	args := []any{}
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recent journal entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Close releases the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			action  string
			payload string
		)
		if err := rows.Scan(&entry.ID, &entry.Collection, &entry.RecordID, &action, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		entry.Action = Action(action)
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
				return nil, fmt.Errorf("decoding payload for entry %d: %w", entry.ID, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Ensure SQLiteJournal implements Journal
var _ Journal = (*SQLiteJournal)(nil)
