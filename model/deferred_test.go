package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeferredModelReturnsPendingResponse(t *testing.T) {
	calls := 0
	d := &DeferredModel{NextEffectID: func() string { calls++; return "effect-1" }}

	messages := []Message{{Role: RoleUser, Content: "hi"}}
	tools := []ToolSpec{{Name: "lookup"}}

	out, err := d.Chat(context.Background(), messages, tools)
	require.Error(t, err)
	assert.Equal(t, ChatOut{}, out)

	var pending *PendingResponse
	require.True(t, errors.As(err, &pending))
	assert.Equal(t, "effect-1", pending.EffectID)
	assert.Equal(t, messages, pending.Request.Messages)
	assert.Equal(t, tools, pending.Request.Tools)
	assert.Equal(t, 1, calls)
}

func TestDeferredModelWithoutIDGenerator(t *testing.T) {
	d := &DeferredModel{}
	_, err := d.Chat(context.Background(), nil, nil)
	var pending *PendingResponse
	require.True(t, errors.As(err, &pending))
	assert.Empty(t, pending.EffectID)
}

func TestPendingResponseErrorMessage(t *testing.T) {
	p := &PendingResponse{EffectID: "abc"}
	assert.Contains(t, p.Error(), "abc")
}
