package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dygram-dev/dygram/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpenAIClient struct {
	calls int
	errs  []error
	out   model.ChatOut
}

func (f *fakeOpenAIClient) createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) {
		return model.ChatOut{}, f.errs[idx]
	}
	return f.out, nil
}

func TestChatReturnsOnFirstSuccess(t *testing.T) {
	fake := &fakeOpenAIClient{out: model.ChatOut{Text: "ok"}}
	m := &ChatModel{client: fake, maxRetries: 3, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, 1, fake.calls)
}

func TestChatRetriesTransientErrorsThenSucceeds(t *testing.T) {
	fake := &fakeOpenAIClient{
		errs: []error{errors.New("503 service unavailable"), errors.New("connection reset")},
		out:  model.ChatOut{Text: "recovered"},
	}
	m := &ChatModel{client: fake, maxRetries: 3, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Text)
	assert.Equal(t, 3, fake.calls)
}

func TestChatDoesNotRetryNonTransientErrors(t *testing.T) {
	wantErr := errors.New("invalid api key")
	fake := &fakeOpenAIClient{errs: []error{wantErr}}
	m := &ChatModel{client: fake, maxRetries: 3, retryDelay: time.Millisecond}

	_, err := m.Chat(context.Background(), nil, nil)
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, fake.calls)
}

func TestChatExhaustsRetriesAndReturnsWrappedError(t *testing.T) {
	fake := &fakeOpenAIClient{errs: []error{
		errors.New("timeout"), errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
	}}
	m := &ChatModel{client: fake, maxRetries: 3, retryDelay: time.Millisecond}

	_, err := m.Chat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.Equal(t, 4, fake.calls)
}

func TestChatRespectsContextCancellationDuringBackoff(t *testing.T) {
	fake := &fakeOpenAIClient{errs: []error{errors.New("timeout"), errors.New("timeout")}}
	m := &ChatModel{client: fake, maxRetries: 3, retryDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Chat(ctx, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewChatModelDefaultsModelName(t *testing.T) {
	m := NewChatModel("key", "")
	assert.Equal(t, "gpt-4o", m.modelName)
}

func TestParseToolInputFallsBackToRawOnInvalidJSON(t *testing.T) {
	out := parseToolInput("not json")
	assert.Equal(t, "not json", out["_raw"])

	assert.Nil(t, parseToolInput(""))

	out = parseToolInput(`{"city":"Lisbon"}`)
	assert.Equal(t, "Lisbon", out["city"])
}
