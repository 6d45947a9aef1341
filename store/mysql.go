package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/runtime"
	_ "github.com/go-sql-driver/mysql"
)

// MySQL is a MySQL/MariaDB-backed Store, for production deployments
// with multiple workers sharing one execution history.
//
// DSN format: [user[:pass]@][proto(addr)]/dbname[?param=value].
type MySQL struct {
	db *sql.DB
}

func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQL{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQL) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			state LONGTEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_run_step (run_id, step),
			INDEX idx_run_id (run_id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			label VARCHAR(255) PRIMARY KEY,
			state LONGTEXT NOT NULL,
			idempotency_key VARCHAR(128) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS idempotency_keys (
			` + "`key`" + ` VARCHAR(128) PRIMARY KEY,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			event_id VARCHAR(255) PRIMARY KEY,
			event LONGTEXT NOT NULL,
			emitted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_outbox_emitted (emitted, created_at)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func (s *MySQL) Close() error { return s.db.Close() }

func (s *MySQL) SaveStep(ctx context.Context, runID string, step int, nodeID string, state runtime.ExecutionState) error {
	data, err := runtime.MarshalState(state)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_steps (run_id, step, node_id, state) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE node_id = VALUES(node_id), state = VALUES(state)`,
		runID, step, nodeID, string(data))
	return err
}

func (s *MySQL) LoadLatest(ctx context.Context, runID string) (runtime.ExecutionState, int, error) {
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

func (s *MySQL) SaveCheckpoint(ctx context.Context, label string, checkpoint runtime.Checkpoint) error {
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
			"INSERT IGNORE INTO idempotency_keys (`key`) VALUES (?)", checkpoint.IdempotencyKey); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (label, state, idempotency_key) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE state = VALUES(state), idempotency_key = VALUES(idempotency_key)`,
		label, string(data), checkpoint.IdempotencyKey); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *MySQL) LoadCheckpoint(ctx context.Context, label string) (runtime.Checkpoint, error) {
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

func (s *MySQL) CheckIdempotency(ctx context.Context, key string) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT 1 FROM idempotency_keys WHERE `key` = ?", key)
	var dummy int
	if err := row.Scan(&dummy); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *MySQL) EnqueueEvent(ctx context.Context, eventID string, event emit.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("store: marshal event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events_outbox (event_id, event, emitted) VALUES (?, ?, FALSE)
		 ON DUPLICATE KEY UPDATE event = VALUES(event)`,
		eventID, string(data))
	return err
}

func (s *MySQL) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	query := `SELECT event FROM events_outbox WHERE emitted = FALSE ORDER BY created_at`
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

func (s *MySQL) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range eventIDs {
		if _, err := tx.ExecContext(ctx, `UPDATE events_outbox SET emitted = TRUE WHERE event_id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
