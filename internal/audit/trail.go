// Package audit keeps a SQLite-backed trail of store mutations and
// migration runs. Only identifiers and counts are recorded, never record
// plaintext, so the trail itself needs no encryption.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event is one audit trail entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Class     string    `json:"class"`
	Op        string    `json:"op"`
	RecordID  string    `json:"record_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Trail persists audit events. A nil Trail is valid and drops everything,
// so callers never have to branch on whether auditing is enabled.
type Trail struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the trail database.
func Open(path string, logger *slog.Logger) (*Trail, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			class TEXT NOT NULL,
			op TEXT NOT NULL,
			record_id TEXT,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_class ON audit_events(class);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	return &Trail{db: db, logger: logger}, nil
}

// Record logs one store mutation. Failures are logged and swallowed; the
// trail is diagnostics, not a ledger the request depends on.
func (t *Trail) Record(ctx context.Context, class, op, recordID string) {
	t.insert(ctx, class, op, recordID, "")
}

// RecordMigration logs the outcome of a migration run.
func (t *Trail) RecordMigration(ctx context.Context, class string, migrated, skipped, errored int) {
	detail := fmt.Sprintf("migrated=%d skipped=%d errors=%d", migrated, skipped, errored)
	t.insert(ctx, class, "migrate", "", detail)
}

func (t *Trail) insert(ctx context.Context, class, op, recordID, detail string) {
	if t == nil || t.db == nil {
		return
	}

	_, err := t.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, timestamp, class, op, record_id, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), time.Now().UTC(), class, op, recordID, detail,
	)
	if err != nil {
		t.logger.Warn("failed to record audit event", "class", class, "op", op, "error", err)
	}
}

// Recent returns the newest events, most recent first.
func (t *Trail) Recent(ctx context.Context, limit int) ([]Event, error) {
	if t == nil || t.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := t.db.QueryContext(ctx,
		`SELECT id, timestamp, class, op, record_id, detail FROM audit_events ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Class, &e.Op, &e.RecordID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (t *Trail) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}
