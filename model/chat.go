// Package model defines the provider-independent chat interface the
// effect executor calls to fulfill ModelCall effects, plus the
// deferred-response contract (§4.3, §6) that lets a model call be
// recorded and resumed later instead of answered synchronously.
package model

import "context"

// ChatModel abstracts over concrete provider SDKs (Anthropic, OpenAI,
// Google) behind one Chat method.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is one turn of conversation.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call, in JSON Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ContentBlockKind tags a block in ChatOut.Blocks (§6 wire format:
// content blocks tagged text/tool_use).
type ContentBlockKind string

const (
	BlockText    ContentBlockKind = "text"
	BlockToolUse ContentBlockKind = "tool_use"
)

// ContentBlock is one ordered piece of a model response.
type ContentBlock struct {
	Kind     ContentBlockKind
	Text     string
	ToolCall ToolCall
}

// Usage reports token consumption for one Chat call, as surfaced by
// the underlying provider SDK's response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatOut is a synchronous model response.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
	Blocks    []ContentBlock
	Usage     Usage
}
