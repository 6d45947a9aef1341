package runtime

import (
	"encoding/json"
	"time"

	"github.com/dygram-dev/dygram/machine"
)

// MarshalState produces the stable, field-named JSON wire format for
// an ExecutionState (§6). The machine snapshot is embedded so a
// deserialized state is fully self-contained and does not require the
// caller to re-supply the original machine.Definition.
func MarshalState(state ExecutionState) ([]byte, error) {
	machineWire, err := json.Marshal(state.MachineSnapshot)
	if err != nil {
		return nil, err
	}
	w := wireState{
		Title:                state.Title,
		MachineSnapshot:      machineWire,
		Paths:                state.Paths,
		Attributes:           state.Attributes,
		History:              state.History,
		NodeInvocationCounts: state.NodeInvocationCounts,
		StepCount:            state.StepCount,
		Limits:               state.Limits,
		LogLevel:             state.LogLevel,
		PendingEffectID:      state.PendingEffectID,
		ForkOnMultipleEdges:  state.ForkOnMultipleEdges,
	}
	return json.Marshal(w)
}

// UnmarshalState reconstructs an ExecutionState from MarshalState's
// wire format. The wall-clock timeout budget restarts at the moment of
// deserialization (§6): a resumed run gets a fresh TimeoutMs window
// rather than inheriting one already partially spent.
func UnmarshalState(data []byte) (ExecutionState, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return ExecutionState{}, newErr(ErrSerialization, "", err.Error())
	}
	var m machine.Definition
	if err := json.Unmarshal(w.MachineSnapshot, &m); err != nil {
		return ExecutionState{}, newErr(ErrSerialization, "", err.Error())
	}
	state := ExecutionState{
		Title:                w.Title,
		MachineSnapshot:      m,
		Paths:                w.Paths,
		Attributes:           w.Attributes,
		History:              w.History,
		NodeInvocationCounts: w.NodeInvocationCounts,
		StepCount:            w.StepCount,
		Limits:               w.Limits,
		LogLevel:             w.LogLevel,
		PendingEffectID:      w.PendingEffectID,
		ForkOnMultipleEdges:  w.ForkOnMultipleEdges,
	}
	if state.Attributes == nil {
		state.Attributes = make(map[string]any)
	}
	if state.NodeInvocationCounts == nil {
		state.NodeInvocationCounts = make(map[string]int)
	}
	return resetClock(state), nil
}

func resetClock(s ExecutionState) ExecutionState {
	s.startedAt = time.Now()
	return s
}
