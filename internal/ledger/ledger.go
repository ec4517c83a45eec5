// Package ledger keeps a durable record of every generation, separate
// from the in-memory metrics window which forgets on restart.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    operation TEXT NOT NULL,
    prompt TEXT NOT NULL,
    model TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    steps INTEGER NOT NULL,
    latency_ms INTEGER NOT NULL,
    success INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_generations_session_id ON generations(session_id);
CREATE INDEX IF NOT EXISTS idx_generations_model ON generations(model);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
`

// Entry is one generation attempt, successful or not.
type Entry struct {
	SessionID string    `json:"sessionId"`
	Operation string    `json:"operation"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Steps     int       `json:"steps"`
	LatencyMS int64     `json:"latencyMs"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"createdAt"`
}

// Totals aggregates the whole ledger.
type Totals struct {
	Generations    int   `json:"generations"`
	Failures       int   `json:"failures"`
	TotalLatencyMS int64 `json:"totalLatencyMs"`
}

// ModelUsage aggregates the ledger per model.
type ModelUsage struct {
	Model         string `json:"model"`
	Generations   int    `json:"generations"`
	Failures      int    `json:"failures"`
	MeanLatencyMS int64  `json:"meanLatencyMs"`
}

type Ledger struct {
	db *sql.DB
}

func Open(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one entry. A zero CreatedAt means now.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	at := e.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO generations (session_id, operation, prompt, model, width, height, steps, latency_ms, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Operation, e.Prompt, e.Model, e.Width, e.Height, e.Steps, e.LatencyMS, e.Success, at)
	return err
}

// Totals aggregates every recorded generation.
func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(latency_ms), 0)
		 FROM generations`)

	var t Totals
	if err := row.Scan(&t.Generations, &t.Failures, &t.TotalLatencyMS); err != nil {
		return Totals{}, err
	}
	return t, nil
}

// SessionTotals aggregates one session's generations.
func (l *Ledger) SessionTotals(ctx context.Context, sessionID string) (Totals, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(latency_ms), 0)
		 FROM generations WHERE session_id = ?`, sessionID)

	var t Totals
	if err := row.Scan(&t.Generations, &t.Failures, &t.TotalLatencyMS); err != nil {
		return Totals{}, err
	}
	return t, nil
}

// SummaryByModel rolls the ledger up per model, busiest first.
func (l *Ledger) SummaryByModel(ctx context.Context) ([]ModelUsage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT model,
		        COUNT(*),
		        COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(CAST(AVG(latency_ms) AS INTEGER), 0)
		 FROM generations GROUP BY model ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usage []ModelUsage
	for rows.Next() {
		var u ModelUsage
		if err := rows.Scan(&u.Model, &u.Generations, &u.Failures, &u.MeanLatencyMS); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// Recent returns the newest entries, most recent first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, operation, prompt, model, width, height, steps, latency_ms, success, created_at
		 FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.Operation, &e.Prompt, &e.Model, &e.Width, &e.Height, &e.Steps, &e.LatencyMS, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
