// Package journal persists the per-epoch history of training runs in a
// SQLite database.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one recorded epoch.
type Entry struct {
	RunID        string
	Algorithm    string
	Epoch        int
	Error        float64
	LearningRate float64
	Momentum     float64
	Magnitude    float64
	RecordedAt   time.Time
}

// Journal appends entries to the epochs table.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS epochs(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			algorithm TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			error REAL NOT NULL,
			learning_rate REAL NOT NULL,
			momentum REAL NOT NULL,
			magnitude REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create epochs table: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record appends e. A zero RecordedAt is replaced by the current time.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO epochs(run_id, algorithm, epoch, error, learning_rate, momentum, magnitude, recorded_at) VALUES(?,?,?,?,?,?,?,?)",
		e.RunID, e.Algorithm, e.Epoch, e.Error, e.LearningRate, e.Momentum, e.Magnitude, e.RecordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record epoch %d: %w", e.Epoch, err)
	}
	return nil
}

// Entries returns the entries of a run in insertion order.
func (j *Journal) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT run_id, algorithm, epoch, error, learning_rate, momentum, magnitude, recorded_at FROM epochs WHERE run_id = ? ORDER BY id ASC",
		runID)
	if err != nil {
		return nil, fmt.Errorf("query epochs: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.RunID, &e.Algorithm, &e.Epoch, &e.Error, &e.LearningRate, &e.Momentum, &e.Magnitude, &ms); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		e.RecordedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }
