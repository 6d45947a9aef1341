package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/dygram-dev/dygram/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnthropicClient struct {
	systemPrompt string
	messages     []model.Message
	out          model.ChatOut
	err          error
}

func (f *fakeAnthropicClient) createMessage(ctx context.Context, systemPrompt string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	f.systemPrompt = systemPrompt
	f.messages = messages
	return f.out, f.err
}

func TestChatExtractsSystemPromptBeforeCallingClient(t *testing.T) {
	fake := &fakeAnthropicClient{out: model.ChatOut{Text: "hi"}}
	m := &ChatModel{client: fake}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "be terse"},
		{Role: model.RoleUser, Content: "hello"},
	}
	out, err := m.Chat(context.Background(), messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Text)
	assert.Equal(t, "be terse", fake.systemPrompt)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "hello", fake.messages[0].Content)
}

func TestChatMergesMultipleSystemMessages(t *testing.T) {
	fake := &fakeAnthropicClient{}
	m := &ChatModel{client: fake}

	messages := []model.Message{
		{Role: model.RoleSystem, Content: "first"},
		{Role: model.RoleSystem, Content: "second"},
	}
	_, err := m.Chat(context.Background(), messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", fake.systemPrompt)
}

func TestChatPropagatesClientError(t *testing.T) {
	wantErr := errors.New("boom")
	fake := &fakeAnthropicClient{err: wantErr}
	m := &ChatModel{client: fake}

	_, err := m.Chat(context.Background(), nil, nil)
	assert.Equal(t, wantErr, err)
}

func TestChatRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &ChatModel{client: &fakeAnthropicClient{}}
	_, err := m.Chat(ctx, nil, nil)
	assert.Error(t, err)
}

func TestNewChatModelDefaultsModelName(t *testing.T) {
	m := NewChatModel("key", "")
	assert.Equal(t, "claude-sonnet-4-5-20250929", m.modelName)
}

func TestConvertToolInputFallsBackToRaw(t *testing.T) {
	out := convertToolInput("not-a-map")
	assert.Equal(t, "not-a-map", out["_raw"])

	assert.Nil(t, convertToolInput(nil))
}
