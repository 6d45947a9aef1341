// Package store provides persistence for execution state: step-by-step
// history for resumption, and named checkpoints for branching or
// time-travel debugging.
package store

import (
	"context"
	"errors"

	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/runtime"
)

// ErrNotFound is returned when a requested run ID or checkpoint ID
// does not exist.
var ErrNotFound = errors.New("store: not found")

// Store persists machine execution state across steps and supports
// named checkpoints for branching workflows. Implementations: Memory
// (testing), SQLite and MySQL (durable single- and multi-writer use).
type Store interface {
	// SaveStep persists the state after one Step call.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state runtime.ExecutionState) error

	// LoadLatest retrieves the most recently saved state for runID.
	LoadLatest(ctx context.Context, runID string) (state runtime.ExecutionState, step int, err error)

	// SaveCheckpoint persists a named, idempotency-keyed snapshot.
	SaveCheckpoint(ctx context.Context, label string, checkpoint runtime.Checkpoint) error

	// LoadCheckpoint retrieves a checkpoint by its label.
	LoadCheckpoint(ctx context.Context, label string) (runtime.Checkpoint, error)

	// CheckIdempotency reports whether key has already been committed,
	// to prevent duplicate checkpoint saves on retry.
	CheckIdempotency(ctx context.Context, key string) (bool, error)

	// PendingEvents returns up to limit not-yet-emitted outbox events,
	// in insertion order, implementing the transactional-outbox
	// pattern for exactly-once event delivery alongside state writes.
	PendingEvents(ctx context.Context, limit int) ([]emit.Event, error)

	// MarkEventsEmitted removes events from the pending outbox once a
	// backend has accepted them.
	MarkEventsEmitted(ctx context.Context, eventIDs []string) error

	// EnqueueEvent adds an event to the transactional outbox, tagged
	// with eventID for later MarkEventsEmitted calls.
	EnqueueEvent(ctx context.Context, eventID string, event emit.Event) error
}

// StepRecord is one persisted step in a run's history.
type StepRecord struct {
	Step   int
	NodeID string
	State  runtime.ExecutionState
}
