package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalStateRoundTrip(t *testing.T) {
	state, err := Initialize(linearMachine(), DefaultOptions())
	require.NoError(t, err)

	result := Step(state)
	state = result.State

	wire, err := MarshalState(state)
	require.NoError(t, err)

	restored, err := UnmarshalState(wire)
	require.NoError(t, err)

	assert.Equal(t, state.Title, restored.Title)
	assert.Equal(t, state.StepCount, restored.StepCount)
	assert.Equal(t, state.Attributes, restored.Attributes)
	assert.Equal(t, state.Paths, restored.Paths)
	assert.Equal(t, state.MachineSnapshot, restored.MachineSnapshot)
}

func TestUnmarshalStateResetsClock(t *testing.T) {
	state, err := Initialize(linearMachine(), DefaultOptions())
	require.NoError(t, err)

	wire, err := MarshalState(state)
	require.NoError(t, err)

	before := state.startedAt
	restored, err := UnmarshalState(wire)
	require.NoError(t, err)
	assert.True(t, restored.startedAt.After(before) || restored.startedAt.Equal(before))
}

func TestUnmarshalStateDefaultsNilMaps(t *testing.T) {
	wire := []byte(`{"title":"empty","paths":null,"machineSnapshot":{"Title":"","Nodes":null,"Edges":null}}`)
	restored, err := UnmarshalState(wire)
	require.NoError(t, err)
	assert.NotNil(t, restored.Attributes)
	assert.NotNil(t, restored.NodeInvocationCounts)
}

func TestUnmarshalStateInvalidJSON(t *testing.T) {
	_, err := UnmarshalState([]byte("not json"))
	assert.Error(t, err)
	var rerr *RuntimeError
	assert.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrSerialization)
}
