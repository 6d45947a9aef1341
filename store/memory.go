package store

import (
	"context"
	"sync"

	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/runtime"
)

// Memory is an in-memory Store. It loses all data on process exit;
// suitable for tests, development, and short-lived runs.
type Memory struct {
	mu             sync.RWMutex
	steps          map[string][]StepRecord
	checkpoints    map[string]runtime.Checkpoint
	idempotencyMap map[string]bool
	pendingEvents  []pendingEvent
}

type pendingEvent struct {
	ID    string
	Event emit.Event
}

func NewMemory() *Memory {
	return &Memory{
		steps:          make(map[string][]StepRecord),
		checkpoints:    make(map[string]runtime.Checkpoint),
		idempotencyMap: make(map[string]bool),
	}
}

func (m *Memory) SaveStep(_ context.Context, runID string, step int, nodeID string, state runtime.ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[runID] = append(m.steps[runID], StepRecord{Step: step, NodeID: nodeID, State: state})
	return nil
}

func (m *Memory) LoadLatest(_ context.Context, runID string) (runtime.ExecutionState, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.steps[runID]
	if !ok || len(records) == 0 {
		return runtime.ExecutionState{}, 0, ErrNotFound
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Step > latest.Step {
			latest = r
		}
	}
	return latest.State, latest.Step, nil
}

func (m *Memory) SaveCheckpoint(_ context.Context, label string, checkpoint runtime.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if checkpoint.IdempotencyKey != "" {
		m.idempotencyMap[checkpoint.IdempotencyKey] = true
	}
	m.checkpoints[label] = checkpoint
	return nil
}

func (m *Memory) LoadCheckpoint(_ context.Context, label string) (runtime.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[label]
	if !ok {
		return runtime.Checkpoint{}, ErrNotFound
	}
	return cp, nil
}

func (m *Memory) CheckIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotencyMap[key], nil
}

func (m *Memory) EnqueueEvent(_ context.Context, eventID string, event emit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingEvents = append(m.pendingEvents, pendingEvent{ID: eventID, Event: event})
	return nil
}

func (m *Memory) PendingEvents(_ context.Context, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := len(m.pendingEvents)
	if limit > 0 && limit < count {
		count = limit
	}
	result := make([]emit.Event, count)
	for i := 0; i < count; i++ {
		result[i] = m.pendingEvents[i].Event
	}
	return result, nil
}

func (m *Memory) MarkEventsEmitted(_ context.Context, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(eventIDs) == 0 {
		return nil
	}
	toRemove := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		toRemove[id] = true
	}
	filtered := make([]pendingEvent, 0, len(m.pendingEvents))
	for _, pe := range m.pendingEvents {
		if !toRemove[pe.ID] {
			filtered = append(filtered, pe)
		}
	}
	m.pendingEvents = filtered
	return nil
}
