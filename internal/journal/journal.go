// Package journal records engine operations in a local SQLite database so
// `snaptank ops` can show what happened and when. The journal is an audit
// trail only — engine operations must proceed even when journaling fails.
package journal

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"snaptank/internal/journal/migrations"
	"snaptank/internal/snap"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Operation is one journaled engine operation.
type Operation struct {
	ID           string
	Operation    string
	WorkPath     string
	SnapshotPath string
	Status       string // "running", "success" or "error"
	Error        string
	StartedAt    sql.NullTime
	FinishedAt   sql.NullTime
}

// Journal persists operations to SQLite.
type Journal struct {
	db    *sql.DB
	clock snap.Clock
}

// Open opens (or creates) the journal database at path and brings its
// schema up to date. path may be ":memory:" in tests.
func Open(path string, clock snap.Clock) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal schema: %w", err)
	}

	return &Journal{db: db, clock: clock}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records the start of an operation and returns its id.
func (j *Journal) Begin(operation, workPath, snapshotPath string) (string, error) {
	id := uuid.New().String()
	_, err := j.db.Exec(
		`INSERT INTO operations (id, operation, work_path, snapshot_path, status, started_at)
		 VALUES (?, ?, ?, ?, 'running', ?)`,
		id, operation, workPath, snapshotPath, j.clock.Now(),
	)
	if err != nil {
		return "", fmt.Errorf("recording operation start: %w", err)
	}
	return id, nil
}

// Finish marks an operation as completed. A nil opErr records success;
// otherwise the error text is kept with the row.
func (j *Journal) Finish(id string, opErr error) error {
	status, errText := "success", ""
	if opErr != nil {
		status, errText = "error", opErr.Error()
	}
	_, err := j.db.Exec(
		`UPDATE operations SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, errText, j.clock.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("recording operation result: %w", err)
	}
	return nil
}

// UpdateSnapshotPath fills in the snapshot path once an operation has
// derived it.
func (j *Journal) UpdateSnapshotPath(id, snapshotPath string) error {
	_, err := j.db.Exec(
		`UPDATE operations SET snapshot_path = ? WHERE id = ?`,
		snapshotPath, id,
	)
	if err != nil {
		return fmt.Errorf("recording snapshot path: %w", err)
	}
	return nil
}

// List returns the most recent operations, newest first.
func (j *Journal) List(limit int) ([]Operation, error) {
	rows, err := j.db.Query(
		`SELECT id, operation, work_path, snapshot_path, status, error, started_at, finished_at
		 FROM operations ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.WorkPath, &op.SnapshotPath,
			&op.Status, &op.Error, &op.StartedAt, &op.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading operation rows: %w", err)
	}
	return ops, nil
}
