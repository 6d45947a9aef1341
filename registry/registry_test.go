package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHasListInvoke(t *testing.T) {
	r := New()
	assert.False(t, r.Has("get_weather"))

	tool := &MockTool{ToolName: "get_weather", Responses: []map[string]any{{"forecast": "sunny"}}}
	r.Register(tool)

	assert.True(t, r.Has("get_weather"))
	assert.Equal(t, []string{"get_weather"}, r.List())

	out, err := r.Invoke(context.Background(), "get_weather", map[string]any{"city": "Lisbon"})
	require.NoError(t, err)
	assert.Equal(t, "sunny", out["forecast"])
	assert.Equal(t, 1, tool.CallCount())
}

func TestInvokeUnknownToolReturnsErrToolNotFound(t *testing.T) {
	r := New()
	_, err := r.Invoke(context.Background(), "missing", nil)
	require.Error(t, err)
	var notFound *ErrToolNotFound
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestListIsSorted(t *testing.T) {
	r := New()
	r.Register(&MockTool{ToolName: "zeta"})
	r.Register(&MockTool{ToolName: "alpha"})
	r.Register(&MockTool{ToolName: "mid"})

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.List())
}

func TestRegisterReplacesExisting(t *testing.T) {
	r := New()
	first := &MockTool{ToolName: "dup", Responses: []map[string]any{{"v": 1}}}
	second := &MockTool{ToolName: "dup", Responses: []map[string]any{{"v": 2}}}
	r.Register(first)
	r.Register(second)

	out, err := r.Invoke(context.Background(), "dup", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out["v"])
}
