// Package journal persists execution events to an embedded libSQL database.
// The journal is observational: calls never read it back for control flow,
// so a journal failure degrades to a log line rather than failing the call.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/operon-dev/operon/pkg/schema"
)

// Entry is one journaled execution event.
type Entry struct {
	ID        int64          `json:"id"`
	CallID    string         `json:"call_id"`
	Operation string         `json:"operation"`
	Step      string         `json:"step,omitempty"`
	Type      string         `json:"event_type"`
	DryRun    bool           `json:"dry_run,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Sequence  int64          `json:"sequence"`
}

// Journal is an append-only event log backed by libSQL.
type Journal struct {
	db *sql.DB
}

// Open opens a libSQL database at the given path. The path should be a file
// URI, e.g. "file:/path/to/journal.db".
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "open libsql: %s", err.Error()).WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &Journal{db: db}, nil
}

// Migrate applies any pending schema migrations.
func (j *Journal) Migrate(ctx context.Context) error {
	return runMigrations(ctx, j.db)
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Append writes an entry with a monotonically increasing per-call sequence.
// The sequence read and the insert share one transaction; with a single
// connection this keeps sequences gap-free under concurrent appenders.
func (j *Journal) Append(ctx context.Context, e *Entry) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin tx: %s", err.Error()).WithCause(err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM journal WHERE call_id = ?`, e.CallID,
	).Scan(&seq)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "next sequence: %s", err.Error()).WithCause(err)
	}
	e.Sequence = seq

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	detail, err := nullableJSON(e.Detail)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "marshal detail: %s", err.Error()).WithCause(err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO journal (call_id, operation, step, event_type, dry_run, detail, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CallID, e.Operation, nullStr(e.Step), e.Type, boolInt(e.DryRun), detail, e.Timestamp, seq,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert entry: %s", err.Error()).WithCause(err)
	}
	if id, idErr := res.LastInsertId(); idErr == nil {
		e.ID = id
	}

	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "commit entry: %s", err.Error()).WithCause(err)
	}
	return nil
}

// Entries returns the entries of one call with sequence > since, ordered by
// sequence ASC.
func (j *Journal) Entries(ctx context.Context, callID string, since int64) ([]*Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, call_id, operation, step, event_type, dry_run, detail, timestamp, sequence
		 FROM journal WHERE call_id = ? AND sequence > ? ORDER BY sequence ASC`,
		callID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByOperation returns the most recent entries of one operation, newest first,
// capped at limit.
func (j *Journal) ByOperation(ctx context.Context, operation string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, call_id, operation, step, event_type, dry_run, detail, timestamp, sequence
		 FROM journal WHERE operation = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		operation, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// CallSummary is one call as seen across its journal entries.
type CallSummary struct {
	CallID    string    `json:"call_id"`
	Operation string    `json:"operation"`
	DryRun    bool      `json:"dry_run,omitempty"`
	Outcome   string    `json:"outcome"`
	StartedAt time.Time `json:"started_at"`
	Events    int64     `json:"events"`
}

// RecentCalls lists recent calls, newest first, capped at limit. The outcome
// is the terminal call event, or "running" when none was recorded.
func (j *Journal) RecentCalls(ctx context.Context, limit int) ([]*CallSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT call_id, operation, MAX(dry_run), MIN(timestamp), COUNT(*),
		        COALESCE(MAX(CASE WHEN event_type IN (?, ?, ?) THEN event_type END), 'running')
		 FROM journal GROUP BY call_id, operation
		 ORDER BY MIN(timestamp) DESC LIMIT ?`,
		schema.EventCallCompleted, schema.EventCallHalted, schema.EventCallFailed, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CallSummary
	for rows.Next() {
		cs := &CallSummary{}
		var dry int
		if err := rows.Scan(&cs.CallID, &cs.Operation, &dry, &cs.StartedAt, &cs.Events, &cs.Outcome); err != nil {
			return nil, err
		}
		cs.DryRun = dry != 0
		out = append(out, cs)
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var step, detail sql.NullString
		var dry int
		if err := rows.Scan(&e.ID, &e.CallID, &e.Operation, &step, &e.Type, &dry, &detail, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.Step = step.String
		e.DryRun = dry != 0
		if detail.Valid && detail.String != "" {
			_ = json.Unmarshal([]byte(detail.String), &e.Detail)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableJSON(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
