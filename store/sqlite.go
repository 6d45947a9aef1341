package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/runtime"
	_ "modernc.org/sqlite"
)

// SQLite is a single-file, pure-Go SQLite-backed Store. Zero setup
// makes it a good fit for development and single-process deployments
// that still want durable state across restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) a SQLite-backed store at path. Use
// ":memory:" for an ephemeral database, e.g. in tests.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, step)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_steps_run_id ON run_steps(run_id)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			label TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			idempotency_key TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			key TEXT PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			event_id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			emitted BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_emitted ON events_outbox(emitted, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) SaveStep(ctx context.Context, runID string, step int, nodeID string, state runtime.ExecutionState) error {
	data, err := runtime.MarshalState(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_steps (run_id, step, node_id, state) VALUES (?, ?, ?, ?)`,
		runID, step, nodeID, string(data))
	return err
}

func (s *SQLite) LoadLatest(ctx context.Context, runID string) (runtime.ExecutionState, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT step, state FROM run_steps WHERE run_id = ? ORDER BY step DESC LIMIT 1`, runID)

	var step int
	var data string
	if err := row.Scan(&step, &data); err != nil {
		if err == sql.ErrNoRows {
			return runtime.ExecutionState{}, 0, ErrNotFound
		}
		return runtime.ExecutionState{}, 0, err
	}

	state, err := runtime.UnmarshalState([]byte(data))
	if err != nil {
		return runtime.ExecutionState{}, 0, fmt.Errorf("store: unmarshal state: %w", err)
	}
	return state, step, nil
}

func (s *SQLite) SaveCheckpoint(ctx context.Context, label string, checkpoint runtime.Checkpoint) error {
	data, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("store: marshal checkpoint: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if checkpoint.IdempotencyKey != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO idempotency_keys (key) VALUES (?)`, checkpoint.IdempotencyKey); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints (label, state, idempotency_key) VALUES (?, ?, ?)`,
		label, string(data), checkpoint.IdempotencyKey); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) LoadCheckpoint(ctx context.Context, label string) (runtime.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state, idempotency_key FROM checkpoints WHERE label = ?`, label)

	var data, key string
	if err := row.Scan(&data, &key); err != nil {
		if err == sql.ErrNoRows {
			return runtime.Checkpoint{}, ErrNotFound
		}
		return runtime.Checkpoint{}, err
	}

	var state runtime.ExecutionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return runtime.Checkpoint{}, fmt.Errorf("store: unmarshal checkpoint: %w", err)
	}
	return runtime.Checkpoint{State: state, IdempotencyKey: key}, nil
}

func (s *SQLite) CheckIdempotency(ctx context.Context, key string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM idempotency_keys WHERE key = ?`, key)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SQLite) EnqueueEvent(ctx context.Context, eventID string, event emit.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("store: marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO events_outbox (event_id, event, emitted) VALUES (?, ?, 0)`,
		eventID, string(data))
	return err
}

func (s *SQLite) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	query := `SELECT event FROM events_outbox WHERE emitted = 0 ORDER BY created_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []emit.Event
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e emit.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("store: unmarshal event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLite) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range eventIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE events_outbox SET emitted = 1 WHERE event_id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
