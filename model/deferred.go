package model

import "context"

// DeferredModel is a ChatModel that never answers synchronously: every
// Chat call returns a *PendingResponse (as its error) carrying
// everything needed to resume later out-of-band (§4.3, §6). The
// facade recognizes this as a control signal, not a failure, and
// leaves the path Waiting with its PendingEffectID set instead of
// failing it.
type DeferredModel struct {
	// NextEffectID is invoked to mint an effect id for each deferred
	// request; callers typically wire this to their own id generator.
	NextEffectID func() string
}

func (d *DeferredModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	id := ""
	if d.NextEffectID != nil {
		id = d.NextEffectID()
	}
	return ChatOut{}, &PendingResponse{
		EffectID: id,
		Request:  DeferredRequest{EffectID: id, Messages: messages, Tools: tools},
	}
}

// DeferredRequest is the externalized payload of a model call awaiting
// a response from outside the process — a human reviewer, an async
// batch job, a recorded fixture.
type DeferredRequest struct {
	EffectID string     `json:"effectId"`
	Messages []Message  `json:"messages"`
	Tools    []ToolSpec `json:"tools,omitempty"`
	ModelID  string     `json:"modelId,omitempty"`
}

// PendingResponse signals that a ModelCall cannot complete synchronously.
// It is returned as Chat's error value, so call sites can type-assert
// for it (errors.As) and distinguish "waiting" from "failed." Error()
// exists only so it satisfies the error interface.
type PendingResponse struct {
	EffectID string
	Request  DeferredRequest
}

func (p *PendingResponse) Error() string {
	return "model call pending: effect " + p.EffectID
}

// ExampleResponse is the shape an external resumer supplies back to
// the facade to fulfill a previously deferred ModelCall.
type ExampleResponse struct {
	EffectID string  `json:"effectId"`
	Out      ChatOut `json:"out"`
}
