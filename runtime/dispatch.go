package runtime

import (
	"github.com/dygram-dev/dygram/machine"
	"github.com/dygram-dev/dygram/sandbox"
)

// dispatchNode runs the node-type handler for path's current node
// (§4.4 step 3). It returns any effects to emit, an AgentResult to
// apply synchronously (input/context/result/output nodes resolve
// in-process, with no externally-fulfilled effect), and a fatal error
// if the node itself is malformed.
func dispatchNode(s *ExecutionState, path *ExecutionPath, node machine.Node) ([]Effect, *AgentResult, *RuntimeError) {
	switch node.Type {
	case machine.NodeInput, machine.NodeContext:
		return dispatchDeclare(s, node)
	case machine.NodeTask:
		return dispatchTask(s, *path, node)
	case machine.NodeResult, machine.NodeOutput:
		return dispatchResult(s, *path, node)
	default:
		return nil, nil, nil
	}
}

// dispatchDeclare commits an input/context node's declared attributes
// directly into the shared attribute map (§4.4 step 3, §4.5).
func dispatchDeclare(s *ExecutionState, node machine.Node) ([]Effect, *AgentResult, *RuntimeError) {
	var effects []Effect
	for _, a := range node.Attributes {
		v, ok := parseAttrValue(a.Type, a.RawValue)
		s.Attributes[AttrKey(node.Name, a.Name)] = v
		if !ok {
			effects = append(effects, logEffect("", LogWarn,
				"attribute "+AttrKey(node.Name, a.Name)+" fell back to raw text during parse"))
		}
	}
	return effects, nil, nil
}

// dispatchTask builds the ToolCall and/or ModelCall effects for a task
// node (§4.4 step 3). A task declaring neither "uses" nor "prompt"/
// "messages" is a no-op pass-through. When both are present, the
// ToolCall is queued first; its fulfillment's output becomes available
// under "<node>.output" before the effect executor resolves the
// ModelCall's message templates (§9 open question iii) — the runtime
// itself never resolves a task node's prompt template, since by the
// time it would run the tool has not executed yet.
func dispatchTask(s *ExecutionState, path ExecutionPath, node machine.Node) ([]Effect, *AgentResult, *RuntimeError) {
	var effects []Effect

	uses, hasUses := node.Attr("uses")
	if hasUses {
		input := make(map[string]any)
		for _, a := range node.Attributes {
			if a.Name == "uses" || a.Name == "prompt" || a.Name == "messages" || a.Name == "model" {
				continue
			}
			v, _ := parseAttrValue(a.Type, a.RawValue)
			input[a.Name] = v
		}
		effects = append(effects, Effect{
			Kind:       EffectToolCall,
			PathID:     path.ID,
			BindToNode: node.Name,
			ToolName:   uses.RawValue,
			ToolInput:  input,
		})
	}

	prompt, hasPrompt := node.Attr("prompt")
	_, hasMessages := node.Attr("messages")
	if hasPrompt || hasMessages {
		modelID := ""
		if m, ok := node.Attr("model"); ok {
			modelID = m.RawValue
		}
		var messages []ModelMessage
		if hasPrompt {
			messages = []ModelMessage{{Role: "user", Content: prompt.RawValue}}
		}
		effects = append(effects, Effect{
			Kind:       EffectModelCall,
			PathID:     path.ID,
			BindToNode: node.Name,
			Messages:   messages,
			ModelID:    modelID,
		})
	}

	return effects, nil, nil
}

// dispatchResult snapshots a result/output node's declared attributes,
// resolving any {{ }} templates against the current environment, into
// the path's output (§4.4 step 3, §8 scenario 6). Each resolved value
// is also committed to the shared attribute map under "node.attr", so
// later nodes and callers can read it by name. Unlike task node
// prompts, result attributes are resolved synchronously here: there is
// no effect to fulfill, so nothing changes between emission and use.
func dispatchResult(s *ExecutionState, path ExecutionPath, node machine.Node) ([]Effect, *AgentResult, *RuntimeError) {
	env := buildEnv(*s, path)
	out := make(map[string]any, len(node.Attributes))
	for _, a := range node.Attributes {
		switch a.Type {
		case "string":
			out[a.Name] = sandbox.ResolveTemplate(a.RawValue, env)
		default:
			v, _ := parseAttrValue(a.Type, a.RawValue)
			out[a.Name] = v
		}
		s.Attributes[AttrKey(node.Name, a.Name)] = out[a.Name]
	}
	return nil, &AgentResult{Output: out}, nil
}
