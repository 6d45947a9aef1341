// Package executor composes runtime and effectexec into the stateful
// facade a caller actually drives: step, execute to completion,
// checkpoint/restore, and serialize/deserialize (§4.6).
package executor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dygram-dev/dygram/cost"
	"github.com/dygram-dev/dygram/effectexec"
	"github.com/dygram-dev/dygram/emit"
	"github.com/dygram-dev/dygram/machine"
	"github.com/dygram-dev/dygram/metrics"
	"github.com/dygram-dev/dygram/model"
	"github.com/dygram-dev/dygram/runtime"
)

// ErrNoSuchPendingRequest is returned by ProvideModelResponse when
// effectID doesn't match a currently-waiting deferred request.
var ErrNoSuchPendingRequest = errors.New("executor: no pending request for effect id")

// Facade holds one machine execution's current state and orchestrates
// step/effect-fulfillment cycles. Not safe for concurrent use by
// multiple goroutines against the same instance.
type Facade struct {
	def    machine.Definition
	state  runtime.ExecutionState
	exec   *effectexec.Executor
	cost   *cost.Tracker
	metr   *metrics.Prometheus
	emitr  emit.Emitter
	done   bool
	status runtime.Status

	pending map[string]model.DeferredRequest
}

// NewFacade initializes execution state from def and wires the given
// effect executor. Returns the def's MachineValidation error, if any,
// with no state produced (§7 "initialize surfaces MachineValidation").
func NewFacade(def machine.Definition, opts runtime.Options, exec *effectexec.Executor) (*Facade, error) {
	state, err := runtime.Initialize(def, opts)
	if err != nil {
		return nil, err
	}
	return &Facade{
		def:     def,
		state:   state,
		exec:    exec,
		status:  runtime.StatusContinue,
		pending: make(map[string]model.DeferredRequest),
	}, nil
}

// WithCostTracker attaches a cost.Tracker recording ModelCall token
// usage as effects are fulfilled.
func (f *Facade) WithCostTracker(t *cost.Tracker) *Facade { f.cost = t; return f }

// WithMetrics attaches a Prometheus metrics collector.
func (f *Facade) WithMetrics(m *metrics.Prometheus) *Facade { f.metr = m; return f }

// WithEmitter attaches an observability sink for step-level events.
func (f *Facade) WithEmitter(e emit.Emitter) *Facade { f.emitr = e; return f }

// Step advances execution by exactly one runtime.Step call, fulfilling
// whatever effects it emits. Returns false once no further progress is
// possible (status Terminal or Failed, or no path left active or
// waiting). A ModelCall effect that deferred leaves its path Waiting
// and Step still returns true; the request is listed by PendingRequests
// until ProvideModelResponse supplies the response.
func (f *Facade) Step(ctx context.Context) (bool, error) {
	if f.done {
		return false, nil
	}

	start := time.Now()
	result := runtime.Step(f.state)
	f.state = result.State
	f.status = result.Status

	newState, deferred := f.exec.Fulfill(ctx, f.state, result.Effects)
	f.state = newState
	for _, d := range deferred {
		f.pending[d.EffectID] = d
	}

	if f.metr != nil {
		f.metr.RecordStepLatency(f.def.Title, time.Since(start), string(f.status))
		active, waiting := f.countPathStatuses()
		f.metr.UpdateActivePaths(active)
		f.metr.UpdateWaitingPaths(waiting)
	}
	if f.emitr != nil {
		f.emitr.Emit(emit.Event{
			RunID: f.def.Title,
			Step:  f.state.StepCount,
			Msg:   "step_end",
			Meta:  map[string]any{"status": string(f.status)},
		})
	}

	switch f.status {
	case runtime.StatusTerminal, runtime.StatusFailed:
		f.done = true
		return false, nil
	case runtime.StatusWaiting:
		active, _ := f.countPathStatuses()
		return len(f.pending) > 0 || f.hasWaitingPath() || active > 0, nil
	default:
		return true, nil
	}
}

// PendingRequests returns deferred model requests awaiting an
// external response, keyed by effect id.
func (f *Facade) PendingRequests() map[string]model.DeferredRequest {
	out := make(map[string]model.DeferredRequest, len(f.pending))
	for k, v := range f.pending {
		out[k] = v
	}
	return out
}

// ProvideModelResponse resumes the path awaiting effectID with an
// externally-supplied model response, completing the deferred
// ModelCall the way effectexec would have had it completed
// synchronously.
func (f *Facade) ProvideModelResponse(pathID, effectID string, out model.ChatOut) error {
	req, ok := f.pending[effectID]
	if !ok {
		return ErrNoSuchPendingRequest
	}
	delete(f.pending, effectID)

	path, ok := f.state.PathByID(pathID)
	if !ok {
		return runtime.ErrNodeNotFound
	}
	key := runtime.AttrKey(path.CurrentNode, "output")

	if f.cost != nil {
		f.cost.Record(req.ModelID, out.Usage.InputTokens, out.Usage.OutputTokens, path.CurrentNode)
	}

	ns, effects, status := runtime.ResumeAfterEffects(f.state, pathID, runtime.AgentResult{
		AttributeUpdates: map[string]any{key: out.Text},
		Output:           out.Text,
	})
	f.state = ns
	f.status = status
	for _, e := range effects {
		if e.Kind != runtime.EffectLog {
			continue
		}
		if f.emitr != nil {
			f.emitr.Emit(emit.Event{
				RunID:  f.state.Title,
				Step:   f.state.StepCount,
				NodeID: e.BindToNode,
				Msg:    e.Message,
				Meta:   map[string]any{"level": string(e.Level), "pathId": e.PathID},
			})
		}
		if f.metr != nil && strings.Contains(e.Message, "cycle detected") {
			f.metr.IncrementCyclesDetected(f.state.Title)
		}
	}
	if status == runtime.StatusTerminal || status == runtime.StatusFailed {
		f.done = true
	}
	return nil
}

// Execute loops Step until it returns false, stopping early if ctx is
// canceled or a deferred request remains pending.
func (f *Facade) Execute(ctx context.Context) (runtime.ExecutionState, error) {
	for {
		if ctx.Err() != nil {
			return f.state, ctx.Err()
		}
		more, err := f.Step(ctx)
		if err != nil {
			return f.state, err
		}
		if !more {
			return f.state, nil
		}
		if len(f.pending) > 0 {
			return f.state, nil
		}
	}
}

func (f *Facade) GetState() runtime.ExecutionState { return f.state }

func (f *Facade) GetVisualizationState() runtime.VisualizationState {
	return runtime.GetVisualizationState(f.state)
}

func (f *Facade) GetMachineDefinition() machine.Definition { return f.def }

// NamedCheckpoint is the facade-level checkpoint envelope: the wire
// format adds a human description and creation time around
// runtime.Checkpoint's idempotency-keyed snapshot.
type NamedCheckpoint struct {
	Checkpoint  runtime.Checkpoint `json:"state"`
	Description string             `json:"description,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

func (f *Facade) CreateCheckpoint(description string) (NamedCheckpoint, error) {
	cp, err := runtime.CreateCheckpoint(f.state)
	if err != nil {
		return NamedCheckpoint{}, err
	}
	return NamedCheckpoint{Checkpoint: cp, Description: description, CreatedAt: time.Now()}, nil
}

func (f *Facade) RestoreCheckpoint(nc NamedCheckpoint) error {
	state, err := runtime.RestoreCheckpoint(nc.Checkpoint)
	if err != nil {
		return err
	}
	f.state = state
	f.done = false
	f.status = runtime.StatusContinue
	f.pending = make(map[string]model.DeferredRequest)
	return nil
}

func (f *Facade) SerializeState() ([]byte, error) {
	return runtime.MarshalState(f.state)
}

// DeserializeState builds a Facade from previously serialized state.
// The machine definition and effect executor must be supplied fresh;
// only ExecutionState round-trips through the wire format.
func DeserializeState(data []byte, def machine.Definition, exec *effectexec.Executor) (*Facade, error) {
	state, err := runtime.UnmarshalState(data)
	if err != nil {
		return nil, err
	}
	return &Facade{
		def:     def,
		state:   state,
		exec:    exec,
		status:  runtime.StatusContinue,
		pending: make(map[string]model.DeferredRequest),
	}, nil
}

func (f *Facade) countPathStatuses() (active, waiting int) {
	for _, p := range f.state.Paths {
		switch p.Status {
		case runtime.PathActive:
			active++
		case runtime.PathWaiting:
			waiting++
		}
	}
	return active, waiting
}

func (f *Facade) hasWaitingPath() bool {
	for _, p := range f.state.Paths {
		if p.Status == runtime.PathWaiting {
			return true
		}
	}
	return false
}
