package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS routing_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	block      INTEGER NOT NULL,
	value      INTEGER NOT NULL,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_routing_history_created_at
	ON routing_history (created_at);
`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates the repository and ensures its schema.
func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating routing history schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// RecordRoutingChange inserts one routing change row.
func (r *SQLiteRepository) RecordRoutingChange(ctx context.Context, block, value int, source string) error {
	if block < 0 {
		return fmt.Errorf("block must not be negative")
	}
	if source == "" {
		source = SourceReply
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO routing_history (block, value, source) VALUES (?, ?, ?)",
		block,
		value,
		source,
	)
	if err != nil {
		return fmt.Errorf("inserting routing history: %w", err)
	}
	return nil
}

// Recent returns the most recent routing changes, newest first.
// limit defaults to 50 and is capped at 500.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, block, value, source, created_at
		 FROM routing_history
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying routing history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.Block, &entry.Value, &entry.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning routing history: %w", err)
		}

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating routing history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than the given duration.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM routing_history WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting routing history: %w", err)
	}
	return result.RowsAffected()
}

// parseTimestamp handles the formats SQLite emits for the created_at
// column.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing history timestamp %q", s)
}
