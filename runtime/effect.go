package runtime

// EffectKind tags the Effect sum type (§3, §9 "effects as a sum type").
type EffectKind string

const (
	EffectToolCall EffectKind = "tool_call"
	EffectModelCall EffectKind = "model_call"
	EffectVfsRead  EffectKind = "vfs_read"
	EffectVfsWrite EffectKind = "vfs_write"
	EffectLog      EffectKind = "log"
)

// ModelMessage is one turn in a ModelCall's conversation, independent of
// any concrete model-provider SDK.
type ModelMessage struct {
	Role    string
	Content string
}

// ModelToolSpec describes a tool a ModelCall may offer the model.
type ModelToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Effect is the only channel of communication out of the pure runtime
// core (§9). Exactly one of the typed payload fields is meaningful,
// selected by Kind; this mirrors a tagged union without needing an
// interface per variant, which keeps step() trivially serializable.
type Effect struct {
	Kind EffectKind

	// PathID identifies which path emitted this effect.
	PathID string
	// BindToNode is the node whose output/attribute the fulfillment
	// result should be written under.
	BindToNode string

	// ToolCall fields.
	ToolName  string
	ToolInput map[string]any

	// ModelCall fields.
	Messages []ModelMessage
	Tools    []ModelToolSpec
	ModelID  string

	// VfsWrite / VfsRead fields.
	Path             string
	Content          string
	BindToAttribute  string

	// Log fields.
	Level   LogLevel
	Message string
}

// AgentResult is the structured reply from fulfilling an Effect,
// folded back into state by applyAgentResult.
type AgentResult struct {
	NextNode         string
	AttributeUpdates map[string]any
	Output           any
	Error            string
}

// Merge overlays o on top of r, field-wise, implementing the
// last-writer-wins policy §4.3/§9 uses when multiple effects in one
// step each produce an AgentResult.
func (r AgentResult) Merge(o AgentResult) AgentResult {
	out := r
	if o.NextNode != "" {
		out.NextNode = o.NextNode
	}
	if o.Output != nil {
		out.Output = o.Output
	}
	if o.Error != "" {
		out.Error = o.Error
	}
	if len(o.AttributeUpdates) > 0 {
		if out.AttributeUpdates == nil {
			out.AttributeUpdates = make(map[string]any, len(o.AttributeUpdates))
		}
		for k, v := range o.AttributeUpdates {
			out.AttributeUpdates[k] = v
		}
	}
	return out
}
