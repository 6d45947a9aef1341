// Package effectexec implements the Effect Executor (§4.3): it
// fulfills the Effect values a runtime.Step call emits — tool calls,
// model calls, VFS reads/writes, and log lines — and folds the result
// back into the pure core via runtime.ResumeAfterEffects.
package effectexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dygram-dev/dygram/cost"
	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/metrics"
	"github.com/dygram-dev/dygram/model"
	"github.com/dygram-dev/dygram/policy"
	"github.com/dygram-dev/dygram/registry"
	"github.com/dygram-dev/dygram/runtime"
	"github.com/dygram-dev/dygram/sandbox"
	"github.com/dygram-dev/dygram/vfs"
)

// Executor wires the side-effecting dependencies a machine execution
// needs: a tool registry, a chat model, and a virtual filesystem.
type Executor struct {
	Tools   *registry.Registry
	Model   model.ChatModel
	VFS     vfs.VFS
	Emitter emit.Emitter
	Metrics *metrics.Prometheus
	Cost    *cost.Tracker

	// Policies configures retry behavior for effects bound
	// to a node, keyed by node name. A node with no entry fulfills its
	// effects once with no retry.
	Policies map[string]policy.NodePolicy

	// ReplayMode, when true, fulfills ToolCall/ModelCall effects from
	// Recordings instead of invoking Tools/Model; an effect with no
	// matching recording fails its path. No live call is made in this
	// mode, so recorded hashes are not compared. When false, successful
	// fulfillments are appended to Recordings.
	ReplayMode bool
	Recordings []runtime.RecordedIO
}

// Fulfill processes every effect from one Step call, grouped by path
// and fulfilled sequentially in emission order (§4.3 "Ordering").
// Effects for each path are merged into one AgentResult, last-writer-
// wins, and folded back with runtime.ResumeAfterEffects — except when
// a ModelCall defers, in which case the path is left Waiting and its
// request is returned in deferred for the caller to resume later.
func (ex *Executor) Fulfill(ctx context.Context, state runtime.ExecutionState, effects []runtime.Effect) (runtime.ExecutionState, []model.DeferredRequest) {
	var order []string
	byPath := make(map[string][]runtime.Effect)

	for _, e := range effects {
		if e.Kind == runtime.EffectLog {
			ex.emitLog(state, e)
			if ex.Metrics != nil && strings.Contains(e.Message, "cycle detected") {
				ex.Metrics.IncrementCyclesDetected(state.Title)
			}
			continue
		}
		if _, seen := byPath[e.PathID]; !seen {
			order = append(order, e.PathID)
		}
		byPath[e.PathID] = append(byPath[e.PathID], e)
	}

	var deferred []model.DeferredRequest
	for _, pathID := range order {
		var d *model.DeferredRequest
		state, d = ex.fulfillPath(ctx, state, pathID, byPath[pathID])
		if d != nil {
			deferred = append(deferred, *d)
		}
	}
	return state, deferred
}

func (ex *Executor) fulfillPath(ctx context.Context, state runtime.ExecutionState, pathID string, effects []runtime.Effect) (runtime.ExecutionState, *model.DeferredRequest) {
	path, ok := state.PathByID(pathID)
	if !ok {
		return state, nil
	}
	env := make(map[string]any, len(state.Attributes))
	for k, v := range state.Attributes {
		env[k] = v
	}
	for k, v := range path.LocalAttrs {
		env[k] = v
	}

	merged := runtime.AgentResult{}
	for _, e := range effects {
		switch e.Kind {
		case runtime.EffectToolCall:
			out, err := ex.invokeTool(ctx, state.Title, pathID, e)
			if err != nil {
				merged = merged.Merge(runtime.AgentResult{Error: err.Error()})
				return ex.resume(state, pathID, merged), nil
			}
			key := runtime.AttrKey(e.BindToNode, "output")
			env[key] = out
			merged = merged.Merge(runtime.AgentResult{
				AttributeUpdates: map[string]any{key: out},
				Output:           out,
			})

		case runtime.EffectModelCall:
			out, err := ex.invokeModel(ctx, state.Title, pathID, e, env)
			if err != nil {
				var pending *model.PendingResponse
				if errors.As(err, &pending) {
					return state, &pending.Request
				}
				merged = merged.Merge(runtime.AgentResult{Error: err.Error()})
				return ex.resume(state, pathID, merged), nil
			}
			if ex.Cost != nil {
				ex.Cost.Record(e.ModelID, out.Usage.InputTokens, out.Usage.OutputTokens, e.BindToNode)
			}
			key := runtime.AttrKey(e.BindToNode, "output")
			merged = merged.Merge(runtime.AgentResult{
				AttributeUpdates: map[string]any{key: out.Text},
				Output:           out.Text,
			})

		case runtime.EffectVfsRead:
			content, err := ex.VFS.Read(ctx, e.Path)
			if err != nil {
				merged = merged.Merge(runtime.AgentResult{Error: err.Error()})
				return ex.resume(state, pathID, merged), nil
			}
			merged = merged.Merge(runtime.AgentResult{
				AttributeUpdates: map[string]any{e.BindToAttribute: content},
			})

		case runtime.EffectVfsWrite:
			if err := ex.VFS.Write(ctx, e.Path, e.Content); err != nil {
				merged = merged.Merge(runtime.AgentResult{Error: err.Error()})
				return ex.resume(state, pathID, merged), nil
			}
		}
	}

	return ex.resume(state, pathID, merged), nil
}

// resume folds ar back into the pure core via runtime.ResumeAfterEffects
// and processes whatever Log effects that produces — in practice, a
// cycle-detection trip during the post-fulfillment edge evaluation —
// the same way Fulfill processes Step()'s own Log effects.
func (ex *Executor) resume(state runtime.ExecutionState, pathID string, ar runtime.AgentResult) runtime.ExecutionState {
	ns, effects, _ := runtime.ResumeAfterEffects(state, pathID, ar)
	for _, e := range effects {
		if e.Kind != runtime.EffectLog {
			continue
		}
		ex.emitLog(ns, e)
		if ex.Metrics != nil && strings.Contains(e.Message, "cycle detected") {
			ex.Metrics.IncrementCyclesDetected(ns.Title)
		}
	}
	return ns
}

// invokeTool dispatches a ToolCall effect through the registry, or
// through Recordings when ReplayMode is set. A live call consults
// Policies[e.BindToNode].RetryPolicy, retrying with backoff on
// transient failures before giving up.
func (ex *Executor) invokeTool(ctx context.Context, runID, pathID string, e runtime.Effect) (map[string]any, error) {
	if ex.ReplayMode {
		rec, found := runtime.LookupRecordedIO(ex.Recordings, pathID, e.BindToNode, runtime.EffectToolCall, 0)
		if !found {
			return nil, fmt.Errorf("effectexec: no recording for tool call at node %s", e.BindToNode)
		}
		var out map[string]any
		if err := json.Unmarshal(rec.Response, &out); err != nil {
			return nil, fmt.Errorf("effectexec: unmarshal recorded tool response: %w", err)
		}
		return out, nil
	}

	if ex.Tools == nil {
		return nil, errors.New("effectexec: no tool registry configured")
	}

	rp := ex.Policies[e.BindToNode].RetryPolicy
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := ex.Tools.Invoke(ctx, e.ToolName, e.ToolInput)
		if err == nil {
			if rec, recErr := runtime.RecordIO(pathID, e.BindToNode, runtime.EffectToolCall, attempt, e.ToolInput, out); recErr == nil {
				ex.Recordings = append(ex.Recordings, rec)
			}
			return out, nil
		}
		lastErr = err
		if !rp.ShouldRetry(attempt, err) {
			break
		}
		if ex.Metrics != nil {
			ex.Metrics.IncrementRetries(runID, e.BindToNode, string(runtime.EffectToolCall))
		}
		if werr := ex.wait(ctx, policy.ComputeBackoff(attempt, rp.BaseDelay, rp.MaxDelay, nil)); werr != nil {
			lastErr = werr
			break
		}
	}
	if ex.Metrics != nil {
		ex.Metrics.IncrementEffectFailures(runID, e.BindToNode, string(runtime.EffectToolCall))
	}
	return nil, lastErr
}

// wait blocks for d or until ctx is canceled, whichever comes first.
func (ex *Executor) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// invokeModel resolves a ModelCall effect's message templates against
// env — which, for a task node declaring both "uses" and "prompt",
// already carries the preceding ToolCall's output under
// "<node>.output" (§9 open question iii) — before calling the model,
// or looks the response up from Recordings when ReplayMode is set.
func (ex *Executor) invokeModel(ctx context.Context, runID, pathID string, e runtime.Effect, env map[string]any) (model.ChatOut, error) {
	messages := make([]model.Message, len(e.Messages))
	for i, m := range e.Messages {
		messages[i] = model.Message{Role: m.Role, Content: sandbox.ResolveTemplate(m.Content, env)}
	}

	if ex.ReplayMode {
		rec, found := runtime.LookupRecordedIO(ex.Recordings, pathID, e.BindToNode, runtime.EffectModelCall, 0)
		if !found {
			return model.ChatOut{}, fmt.Errorf("effectexec: no recording for model call at node %s", e.BindToNode)
		}
		var out model.ChatOut
		if err := json.Unmarshal(rec.Response, &out); err != nil {
			return model.ChatOut{}, fmt.Errorf("effectexec: unmarshal recorded model response: %w", err)
		}
		return out, nil
	}

	if ex.Model == nil {
		return model.ChatOut{}, errors.New("effectexec: no chat model configured")
	}
	tools := make([]model.ToolSpec, len(e.Tools))
	for i, t := range e.Tools {
		tools[i] = model.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}

	rp := ex.Policies[e.BindToNode].RetryPolicy
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := ex.Model.Chat(ctx, messages, tools)
		if err == nil {
			if rec, recErr := runtime.RecordIO(pathID, e.BindToNode, runtime.EffectModelCall, attempt, messages, out); recErr == nil {
				ex.Recordings = append(ex.Recordings, rec)
			}
			return out, nil
		}
		var pending *model.PendingResponse
		if errors.As(err, &pending) {
			return model.ChatOut{}, err
		}
		lastErr = err
		if !rp.ShouldRetry(attempt, err) {
			break
		}
		if ex.Metrics != nil {
			ex.Metrics.IncrementRetries(runID, e.BindToNode, string(runtime.EffectModelCall))
		}
		if werr := ex.wait(ctx, policy.ComputeBackoff(attempt, rp.BaseDelay, rp.MaxDelay, nil)); werr != nil {
			lastErr = werr
			break
		}
	}
	if ex.Metrics != nil {
		ex.Metrics.IncrementEffectFailures(runID, e.BindToNode, string(runtime.EffectModelCall))
	}
	return model.ChatOut{}, lastErr
}

func (ex *Executor) emitLog(state runtime.ExecutionState, e runtime.Effect) {
	if ex.Emitter == nil {
		return
	}
	ex.Emitter.Emit(emit.Event{
		RunID: state.Title,
		Step:  state.StepCount,
		NodeID: e.BindToNode,
		Msg:    e.Message,
		Meta:   map[string]any{"level": string(e.Level), "pathId": e.PathID},
	})
}
