package executor

import (
	"context"
	"testing"

	"github.com/dygram-dev/dygram/effectexec"
	"github.com/dygram-dev/dygram/machine"
	"github.com/dygram-dev/dygram/model"
	"github.com/dygram-dev/dygram/registry"
	"github.com/dygram-dev/dygram/runtime"
	"github.com/dygram-dev/dygram/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherMachine() machine.Definition {
	return machine.Definition{
		Title: "weather-brief",
		Nodes: []machine.Node{
			{Name: "start", Type: machine.NodeInput, Attributes: []machine.Attribute{
				{Name: "city", Type: "string", RawValue: `"Lisbon"`},
			}},
			{Name: "lookup", Type: machine.NodeTask, Attributes: []machine.Attribute{
				{Name: "uses", Type: "string", RawValue: "get_weather"},
				{Name: "prompt", Type: "string", RawValue: "Summarize: {{lookup.output}}"},
			}},
			{Name: "done", Type: machine.NodeOutput, Attributes: []machine.Attribute{
				{Name: "summary", Type: "string", RawValue: "{{lookup.output}}"},
			}},
		},
		Edges: []machine.Edge{
			{Source: "start", Target: "lookup", Type: "next"},
			{Source: "lookup", Target: "done", Type: "next"},
		},
	}
}

func TestFacadeExecuteRunsToTerminal(t *testing.T) {
	tools := registry.New()
	tools.Register(&registry.MockTool{ToolName: "get_weather", Responses: []map[string]any{{"forecast": "sunny"}}})
	chatModel := &model.MockChatModel{Responses: []model.ChatOut{{Text: "It's sunny"}}}

	ex := &effectexec.Executor{Tools: tools, Model: chatModel, VFS: vfs.NewMemory()}
	f, err := NewFacade(weatherMachine(), runtime.DefaultOptions(), ex)
	require.NoError(t, err)

	final, err := f.Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, final.Paths, 1)
	assert.Equal(t, runtime.PathTerminal, final.Paths[0].Status)
	assert.Equal(t, "It's sunny", final.Attributes[runtime.AttrKey("done", "summary")])
	assert.Empty(t, f.PendingRequests())
}

func TestFacadeDeferredModelCallPausesExecuteUntilProvided(t *testing.T) {
	tools := registry.New()
	tools.Register(&registry.MockTool{ToolName: "get_weather", Responses: []map[string]any{{"forecast": "rainy"}}})
	deferredModel := &model.DeferredModel{NextEffectID: func() string { return "eff-1" }}

	ex := &effectexec.Executor{Tools: tools, Model: deferredModel}
	f, err := NewFacade(weatherMachine(), runtime.DefaultOptions(), ex)
	require.NoError(t, err)

	final, err := f.Execute(context.Background())
	require.NoError(t, err)

	pending := f.PendingRequests()
	require.Len(t, pending, 1)
	req := pending["eff-1"]
	assert.Contains(t, req.Messages[0].Content, "rainy")

	require.Len(t, final.Paths, 1)
	assert.Equal(t, runtime.PathWaiting, final.Paths[0].Status)
	pathID := final.Paths[0].ID

	require.NoError(t, f.ProvideModelResponse(pathID, "eff-1", model.ChatOut{Text: "External analyst says rain."}))
	assert.Empty(t, f.PendingRequests())

	final, err = f.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, runtime.PathTerminal, final.Paths[0].Status)
	assert.Equal(t, "External analyst says rain.", final.Attributes[runtime.AttrKey("done", "summary")])
}

func TestFacadeProvideModelResponseUnknownEffectID(t *testing.T) {
	ex := &effectexec.Executor{}
	f, err := NewFacade(weatherMachine(), runtime.DefaultOptions(), ex)
	require.NoError(t, err)

	err = f.ProvideModelResponse("some-path", "no-such-effect", model.ChatOut{})
	assert.ErrorIs(t, err, ErrNoSuchPendingRequest)
}

func TestFacadeCheckpointRestoreRoundTrip(t *testing.T) {
	tools := registry.New()
	tools.Register(&registry.MockTool{ToolName: "get_weather", Responses: []map[string]any{{"forecast": "sunny"}}})
	chatModel := &model.MockChatModel{Responses: []model.ChatOut{{Text: "sunny summary"}}}
	ex := &effectexec.Executor{Tools: tools, Model: chatModel}

	f, err := NewFacade(weatherMachine(), runtime.DefaultOptions(), ex)
	require.NoError(t, err)

	more, err := f.Step(context.Background())
	require.NoError(t, err)
	require.True(t, more)

	nc, err := f.CreateCheckpoint("midway")
	require.NoError(t, err)
	assert.Equal(t, "midway", nc.Description)

	// Drive the original facade all the way to completion.
	_, err = f.Execute(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.RestoreCheckpoint(nc))
	restored := f.GetState()
	require.Len(t, restored.Paths, 1)
	assert.Equal(t, "lookup", restored.Paths[0].CurrentNode)
	assert.Empty(t, f.PendingRequests())
}

func TestFacadeSerializeDeserializeRoundTrip(t *testing.T) {
	tools := registry.New()
	tools.Register(&registry.MockTool{ToolName: "get_weather", Responses: []map[string]any{{"forecast": "sunny"}}})
	chatModel := &model.MockChatModel{Responses: []model.ChatOut{{Text: "sunny summary"}}}
	ex := &effectexec.Executor{Tools: tools, Model: chatModel}

	f, err := NewFacade(weatherMachine(), runtime.DefaultOptions(), ex)
	require.NoError(t, err)

	_, err = f.Step(context.Background())
	require.NoError(t, err)

	data, err := f.SerializeState()
	require.NoError(t, err)

	restored, err := DeserializeState(data, weatherMachine(), ex)
	require.NoError(t, err)
	assert.Equal(t, f.GetState().StepCount, restored.GetState().StepCount)
	assert.Equal(t, f.GetState().Paths[0].CurrentNode, restored.GetState().Paths[0].CurrentNode)
}

func TestFacadeGetVisualizationStateAndMachineDefinition(t *testing.T) {
	ex := &effectexec.Executor{}
	f, err := NewFacade(weatherMachine(), runtime.DefaultOptions(), ex)
	require.NoError(t, err)

	vis := f.GetVisualizationState()
	assert.Equal(t, "weather-brief", vis.Title)
	assert.Equal(t, "weather-brief", f.GetMachineDefinition().Title)
}

func TestNewFacadeSurfacesMachineValidationError(t *testing.T) {
	_, err := NewFacade(machine.Definition{}, runtime.DefaultOptions(), &effectexec.Executor{})
	assert.Error(t, err)
}
