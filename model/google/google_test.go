package google

import (
	"context"
	"errors"
	"testing"

	"github.com/dygram-dev/dygram/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGoogleClient struct {
	messages []model.Message
	out      model.ChatOut
	err      error
}

func (f *fakeGoogleClient) generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	f.messages = messages
	return f.out, f.err
}

func TestChatDelegatesToClient(t *testing.T) {
	fake := &fakeGoogleClient{out: model.ChatOut{Text: "hi"}}
	m := &ChatModel{client: fake}

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hello"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Text)
	require.Len(t, fake.messages, 1)
	assert.Equal(t, "hello", fake.messages[0].Content)
}

func TestChatPropagatesSafetyFilterError(t *testing.T) {
	safetyErr := &SafetyFilterError{reason: "blocked", category: "violence"}
	fake := &fakeGoogleClient{err: safetyErr}
	m := &ChatModel{client: fake}

	_, err := m.Chat(context.Background(), nil, nil)
	var got *SafetyFilterError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "violence", got.Category())
}

func TestChatRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &ChatModel{client: &fakeGoogleClient{}}
	_, err := m.Chat(ctx, nil, nil)
	assert.Error(t, err)
}

func TestNewChatModelDefaultsModelName(t *testing.T) {
	m := NewChatModel("key", "")
	assert.Equal(t, "gemini-2.5-flash", m.modelName)
}

func TestConvertSchemaBuildsPropertiesAndRequired(t *testing.T) {
	schema := map[string]interface{}{
		"properties": map[string]interface{}{
			"city": map[string]interface{}{"type": "string", "description": "city name"},
		},
		"required": []interface{}{"city"},
	}
	out := convertSchema(schema)
	require.NotNil(t, out)
	assert.Equal(t, []string{"city"}, out.Required)
	require.Contains(t, out.Properties, "city")
	assert.Equal(t, "city name", out.Properties["city"].Description)
}

func TestConvertSchemaNilInput(t *testing.T) {
	assert.Nil(t, convertSchema(nil))
}
