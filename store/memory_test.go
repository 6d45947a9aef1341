package store

import (
	"context"
	"testing"

	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySaveAndLoadLatestStep(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	state1 := runtime.ExecutionState{StepCount: 1}
	state2 := runtime.ExecutionState{StepCount: 2}
	require.NoError(t, m.SaveStep(ctx, "run-1", 1, "start", state1))
	require.NoError(t, m.SaveStep(ctx, "run-1", 2, "middle", state2))

	latest, step, err := m.LoadLatest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, step)
	assert.Equal(t, 2, latest.StepCount)
}

func TestMemoryLoadLatestUnknownRunReturnsErrNotFound(t *testing.T) {
	m := NewMemory()
	_, _, err := m.LoadLatest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCheckpointRoundTripAndIdempotency(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	cp := runtime.Checkpoint{State: runtime.ExecutionState{StepCount: 5}, IdempotencyKey: "key-1"}
	require.NoError(t, m.SaveCheckpoint(ctx, "checkpoint-a", cp))

	loaded, err := m.LoadCheckpoint(ctx, "checkpoint-a")
	require.NoError(t, err)
	assert.Equal(t, cp.IdempotencyKey, loaded.IdempotencyKey)

	committed, err := m.CheckIdempotency(ctx, "key-1")
	require.NoError(t, err)
	assert.True(t, committed)

	committed, err = m.CheckIdempotency(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestMemoryLoadCheckpointUnknownLabelReturnsErrNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.LoadCheckpoint(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOutboxEnqueuePendingAndMark(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.EnqueueEvent(ctx, "ev-1", emit.Event{Msg: "first"}))
	require.NoError(t, m.EnqueueEvent(ctx, "ev-2", emit.Event{Msg: "second"}))

	pending, err := m.PendingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "first", pending[0].Msg)

	limited, err := m.PendingEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.NoError(t, m.MarkEventsEmitted(ctx, []string{"ev-1"}))
	remaining, err := m.PendingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "second", remaining[0].Msg)
}

func TestMemoryMarkEventsEmittedEmptyIsNoOp(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.EnqueueEvent(ctx, "ev-1", emit.Event{Msg: "x"}))
	require.NoError(t, m.MarkEventsEmitted(ctx, nil))

	pending, err := m.PendingEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
