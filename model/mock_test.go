package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockChatModelRepeatsLastResponseOnceExhausted(t *testing.T) {
	m := &MockChatModel{Responses: []ChatOut{{Text: "first"}, {Text: "second"}}}

	out, err := m.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out.Text)

	out, err = m.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text)

	out, err = m.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out.Text)

	assert.Len(t, m.Calls, 3)
}

func TestMockChatModelErrorInjection(t *testing.T) {
	wantErr := errors.New("rate limited")
	m := &MockChatModel{Err: wantErr}

	_, err := m.Chat(context.Background(), nil, nil)
	assert.Equal(t, wantErr, err)
}

func TestMockChatModelRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &MockChatModel{}
	_, err := m.Chat(ctx, nil, nil)
	assert.Error(t, err)
}
