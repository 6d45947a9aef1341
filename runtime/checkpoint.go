package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Checkpoint is a serializable snapshot of an ExecutionState plus an
// idempotency key, mirroring the teacher's checkpoint/idempotency-key
// pairing so a resumed run can detect a replayed checkpoint.
type Checkpoint struct {
	State          ExecutionState `json:"state"`
	IdempotencyKey string         `json:"idempotencyKey"`
}

// CreateCheckpoint snapshots state into a Checkpoint, computing a
// deterministic idempotency key from its serialized form (§4.4, §9).
func CreateCheckpoint(state ExecutionState) (Checkpoint, error) {
	wire, err := MarshalState(state)
	if err != nil {
		return Checkpoint{}, newErr(ErrSerialization, "", err.Error())
	}
	return Checkpoint{State: state.clone(), IdempotencyKey: computeIdempotencyKey(wire)}, nil
}

// RestoreCheckpoint validates a checkpoint's idempotency key against
// its recorded state and returns a fresh, independent ExecutionState
// ready to resume from (§4.4). The restored state's wall-clock timeout
// budget restarts from the moment of restoration.
func RestoreCheckpoint(cp Checkpoint) (ExecutionState, error) {
	wire, err := MarshalState(cp.State)
	if err != nil {
		return ExecutionState{}, newErr(ErrSerialization, "", err.Error())
	}
	if computeIdempotencyKey(wire) != cp.IdempotencyKey {
		return ExecutionState{}, newErr(ErrSerialization, "", "checkpoint idempotency key mismatch")
	}
	ns := cp.State.clone()
	return resetClock(ns), nil
}

func computeIdempotencyKey(wire []byte) string {
	sum := sha256.Sum256(wire)
	return hex.EncodeToString(sum[:])
}

// wireState mirrors ExecutionState's exported fields for JSON coding;
// startedAt is intentionally excluded (§6) since a restored state gets
// a fresh wall-clock budget rather than resuming a stale one.
type wireState struct {
	Title                string            `json:"title"`
	MachineSnapshot      json.RawMessage   `json:"machineSnapshot"`
	Paths                []ExecutionPath   `json:"paths"`
	Attributes           map[string]any    `json:"attributes"`
	History              []Transition      `json:"history"`
	NodeInvocationCounts map[string]int    `json:"nodeInvocationCounts"`
	StepCount            int               `json:"stepCount"`
	Limits               Limits            `json:"limits"`
	LogLevel             LogLevel          `json:"logLevel"`
	PendingEffectID      string            `json:"pendingEffectId,omitempty"`
	ForkOnMultipleEdges  bool              `json:"forkOnMultipleEdges"`
}
