// Package runtime implements the pure DyGram execution core (§4.4):
// initialize, step, applyAgentResult, checkpoint/restore and
// serialization. Every exported operation here is a pure function of
// its input state — it returns a new ExecutionState rather than
// mutating its receiver, so the Machine Executor Facade (package
// executor) can interleave it with out-of-band effect fulfillment.
package runtime

import (
	"fmt"
	"time"

	"github.com/dygram-dev/dygram/machine"
	"github.com/dygram-dev/dygram/sandbox"
	"github.com/google/uuid"
)

// Options configures a call to Initialize (§6).
type Options struct {
	Limits              Limits
	LogLevel            LogLevel
	ForkOnMultipleEdges bool
}

// DefaultOptions mirrors the §6 defaults.
func DefaultOptions() Options {
	return Options{
		Limits:              DefaultLimits(),
		LogLevel:            LogInfo,
		ForkOnMultipleEdges: true,
	}
}

// Initialize validates the machine and constructs the initial
// ExecutionState with a single active path at the start node.
func Initialize(m machine.Definition, opts Options) (ExecutionState, error) {
	if err := m.Validate(); err != nil {
		return ExecutionState{}, err
	}

	start, err := m.StartNode()
	if err != nil {
		return ExecutionState{}, err
	}

	limits := opts.Limits
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}

	state := ExecutionState{
		Title:           m.Title,
		MachineSnapshot: m,
		Paths: []ExecutionPath{{
			ID:           uuid.NewString(),
			CurrentNode:  start,
			VisitedNodes: []string{start},
			Status:       PathActive,
		}},
		Attributes:           make(map[string]any),
		NodeInvocationCounts:  map[string]int{start: 1},
		Limits:                limits,
		LogLevel:              opts.LogLevel,
		ForkOnMultipleEdges:   opts.ForkOnMultipleEdges,
		startedAt:             time.Now(),
	}
	if state.LogLevel == "" {
		state.LogLevel = LogInfo
	}

	return state, nil
}

// StepResult bundles step()'s three return values for readability at
// call sites that want to pass the whole outcome around.
type StepResult struct {
	State   ExecutionState
	Effects []Effect
	Status  Status
}

// Step performs exactly one atomic progression of every active path,
// in path-declaration order, per §4.4.
func Step(state ExecutionState) StepResult {
	ns := state.clone()
	var effects []Effect
	anyFailed := false
	anyWaiting := false

	// Wall-clock budget (§5 Cancellation): bounds total time across
	// step() calls in one execute(), not a single step's duration.
	if ns.Limits.TimeoutMs > 0 && !ns.startedAt.IsZero() &&
		time.Since(ns.startedAt) > time.Duration(ns.Limits.TimeoutMs)*time.Millisecond {
		for i := range ns.Paths {
			if ns.Paths[i].Status == PathActive || ns.Paths[i].Status == PathWaiting {
				ns.Paths[i].Status = PathFailed
				effects = append(effects, logEffect(ns.Paths[i].ID, LogError, "timeout: "+ErrTimeout.Error()))
			}
		}
		return StepResult{State: ns, Effects: effects, Status: StatusFailed}
	}

	// §4.4 step 2: global step cap.
	if ns.Limits.MaxSteps > 0 && ns.StepCount >= ns.Limits.MaxSteps {
		for i := range ns.Paths {
			if ns.Paths[i].Status == PathActive || ns.Paths[i].Status == PathWaiting {
				ns.Paths[i].Status = PathTerminal
			}
		}
		return StepResult{State: ns, Effects: effects, Status: StatusTerminal}
	}

	n := len(ns.Paths)
	for i := 0; i < n; i++ {
		path := &ns.Paths[i]
		if path.Status != PathActive {
			continue
		}

		if ns.Limits.MaxNodeInvocations > 0 &&
			ns.NodeInvocationCounts[path.CurrentNode] >= ns.Limits.MaxNodeInvocations {
			path.Status = PathFailed
			effects = append(effects, logEffect(path.ID, LogWarn,
				fmt.Sprintf("node invocation limit exceeded at %q", path.CurrentNode)))
			anyFailed = true
			continue
		}

		node, ok := ns.MachineSnapshot.NodeByName(path.CurrentNode)
		if !ok {
			path.Status = PathFailed
			ns.History = append(ns.History, failedTransition(path.ID, path.CurrentNode, newErr(ErrNodeNotFound, path.CurrentNode, "").Error()))
			anyFailed = true
			continue
		}

		nodeEffects, ar, handlerErr := dispatchNode(&ns, path, node)
		effects = append(effects, nodeEffects...)

		if handlerErr != nil {
			path.Status = PathFailed
			ns.History = append(ns.History, failedTransition(path.ID, path.CurrentNode, handlerErr.Error()))
			anyFailed = true
			continue
		}

		if ar != nil {
			applyResultToPath(&ns, path, *ar)
			if ar.Error != "" {
				anyFailed = true
				continue
			}
		}

		if hasPendingEffect(nodeEffects) {
			path.Status = PathWaiting
			path.PendingEffectID = uuid.NewString()
			ns.PendingEffectID = path.PendingEffectID
			anyWaiting = true
			continue
		}

		advFailed, advEffects := advanceViaEdges(&ns, path, node)
		effects = append(effects, advEffects...)
		if advFailed {
			anyFailed = true
		}
	}

	ns.StepCount++

	return StepResult{State: ns, Effects: effects, Status: aggregateStatus(ns, anyWaiting, anyFailed)}
}

func aggregateStatus(s ExecutionState, anyWaiting, anyFailed bool) Status {
	if anyWaiting {
		return StatusWaiting
	}
	for _, p := range s.Paths {
		if p.Status == PathActive {
			return StatusContinue
		}
	}
	if anyFailed {
		return StatusFailed
	}
	return StatusTerminal
}

func logEffect(pathID string, level LogLevel, msg string) Effect {
	return Effect{Kind: EffectLog, PathID: pathID, Level: level, Message: msg}
}

func failedTransition(pathID, node, reason string) Transition {
	return Transition{PathID: pathID, From: node, To: node, Timestamp: time.Now(), FailureReason: reason}
}

// hasPendingEffect reports whether any of effects requires out-of-band
// fulfillment (ToolCall, ModelCall) rather than resolving in-process.
func hasPendingEffect(effects []Effect) bool {
	for _, e := range effects {
		if e.Kind == EffectToolCall || e.Kind == EffectModelCall {
			return true
		}
	}
	return false
}

// advanceViaEdges evaluates node's outgoing edges against path's
// current environment and commits the resulting transition(s) (§4.4
// steps 4-7): terminal if none are enabled, a plain advance if one is,
// or a fork per enabled edge when ForkOnMultipleEdges is set. Returns
// true if cycle detection failed the path, plus a Log effect per path
// it failed. The pure core has no metrics collector to call directly,
// so a cycle trip is surfaced as an Effect like everything else; the
// facade folds it into metrics.IncrementCyclesDetected.
func advanceViaEdges(s *ExecutionState, path *ExecutionPath, node machine.Node) (bool, []Effect) {
	failed := false
	var effects []Effect
	enabled := evaluateEnabledEdges(*s, *path, node)
	switch {
	case len(enabled) == 0:
		path.Status = PathTerminal
	case len(enabled) == 1 || !s.ForkOnMultipleEdges:
		advance(s, path, enabled[0])
		if checkCycle(s, path) {
			failed = true
			effects = append(effects, logEffect(path.ID, LogError, "cycle detected at "+path.CurrentNode))
		}
	default:
		orig := path.clone()
		advance(s, path, enabled[0])
		if checkCycle(s, path) {
			failed = true
			effects = append(effects, logEffect(path.ID, LogError, "cycle detected at "+path.CurrentNode))
		}
		for _, e := range enabled[1:] {
			fork := orig.clone()
			fork.ID = uuid.NewString()
			advance(s, &fork, e)
			if checkCycle(s, &fork) {
				failed = true
				effects = append(effects, logEffect(fork.ID, LogError, "cycle detected at "+fork.CurrentNode))
			}
			s.Paths = append(s.Paths, fork)
		}
	}
	return failed, effects
}

// advance commits a chosen edge: appends the Transition, updates
// currentNode/visitedNodes/invocation counts, per §4.4 step 6.
func advance(s *ExecutionState, path *ExecutionPath, e machine.Edge) {
	s.History = append(s.History, Transition{
		PathID:    path.ID,
		From:      e.Source,
		To:        e.Target,
		EdgeLabel: e.Type,
		Timestamp: time.Now(),
	})
	path.CurrentNode = e.Target
	path.VisitedNodes = append(path.VisitedNodes, e.Target)
	s.NodeInvocationCounts[e.Target]++
}

// evaluateEnabledEdges evaluates every outgoing edge's guard in
// declaration order (§4.4 step 4). An absent guard is always enabled;
// a guard that fails to evaluate is fail-closed (§4.1, §8).
func evaluateEnabledEdges(s ExecutionState, path ExecutionPath, node machine.Node) []machine.Edge {
	env := buildEnv(s, path)
	var enabled []machine.Edge
	for _, e := range s.MachineSnapshot.OutgoingEdges(node.Name) {
		if e.Guard == "" {
			enabled = append(enabled, e)
			continue
		}
		if sandbox.EvaluateGuard(e.Guard, env) {
			enabled = append(enabled, e)
		}
	}
	return enabled
}

// buildEnv assembles the expression-sandbox binding environment
// (§4.1): errorCount/errors/activeState plus the flat attribute map,
// with any path-local overrides layered on top (§3 ExecutionPath).
func buildEnv(s ExecutionState, path ExecutionPath) map[string]any {
	env := make(map[string]any, len(s.Attributes)+3)
	for k, v := range s.Attributes {
		env[k] = v
	}
	for k, v := range path.LocalAttrs {
		env[k] = v
	}
	errCount := 0
	for _, t := range s.History {
		if t.FailureReason != "" {
			errCount++
		}
	}
	env["errorCount"] = errCount
	env["errors"] = errCount
	env["activeState"] = path.CurrentNode
	return env
}

// checkCycle implements §4.4 step 7: within the last CycleDetectionWindow
// transitions of this path, if the same (from,to) pair recurs more than
// CycleThreshold times, the path fails with CycleDetected.
func checkCycle(s *ExecutionState, path *ExecutionPath) bool {
	window := s.Limits.CycleDetectionWindow
	if window <= 0 {
		return false
	}
	threshold := s.Limits.CycleThreshold
	if threshold <= 0 {
		threshold = 3
	}

	var own []Transition
	for _, t := range s.History {
		if t.PathID == path.ID {
			own = append(own, t)
		}
	}
	if len(own) > window {
		own = own[len(own)-window:]
	}

	last := own[len(own)-1]
	count := 0
	for _, t := range own {
		if t.From == last.From && t.To == last.To {
			count++
		}
	}
	if count > threshold {
		path.Status = PathFailed
		if len(s.History) > 0 {
			s.History[len(s.History)-1].FailureReason = "CycleDetected"
		}
		return true
	}
	return false
}

// ResumeAfterEffects merges the facade's merged AgentResult for a
// Waiting path's ToolCall/ModelCall effects back into state, then
// completes the atomic progression Step() deferred when it emitted
// those effects: it evaluates the task node's outgoing edges against
// the now-updated environment and advances (or forks, or terminates)
// exactly as Step() would have done for a synchronously-resolved node
// (§4.3, §4.4, §9 open question iii). Returns any Log effects raised
// by cycle detection during the advance, the same way Step() does.
func ResumeAfterEffects(state ExecutionState, pathID string, ar AgentResult) (ExecutionState, []Effect, Status) {
	ns := state.clone()
	var effects []Effect
	for i := range ns.Paths {
		if ns.Paths[i].ID != pathID {
			continue
		}
		path := &ns.Paths[i]
		applyResultToPath(&ns, path, ar)

		if ar.Error == "" && ar.NextNode == "" {
			if node, ok := ns.MachineSnapshot.NodeByName(path.CurrentNode); ok {
				_, advEffects := advanceViaEdges(&ns, path, node)
				effects = append(effects, advEffects...)
			} else {
				path.Status = PathFailed
			}
		}
		break
	}

	anyWaiting, anyFailed := false, false
	for _, p := range ns.Paths {
		switch p.Status {
		case PathWaiting:
			anyWaiting = true
		case PathFailed:
			anyFailed = true
		}
	}
	return ns, effects, aggregateStatus(ns, anyWaiting, anyFailed)
}

func applyResultToPath(s *ExecutionState, path *ExecutionPath, ar AgentResult) {
	for k, v := range ar.AttributeUpdates {
		s.Attributes[k] = v
	}
	if ar.Error != "" {
		path.Status = PathFailed
		s.History = append(s.History, failedTransition(path.ID, path.CurrentNode, ar.Error))
		return
	}
	if ar.NextNode != "" {
		s.History = append(s.History, Transition{
			PathID: path.ID, From: path.CurrentNode, To: ar.NextNode, Timestamp: time.Now(),
		})
		path.CurrentNode = ar.NextNode
		path.VisitedNodes = append(path.VisitedNodes, ar.NextNode)
		s.NodeInvocationCounts[ar.NextNode]++
		path.Status = PathActive
		path.PendingEffectID = ""
		return
	}
	if path.Status == PathWaiting {
		path.Status = PathActive
		path.PendingEffectID = ""
	}
	if ar.Output != nil {
		if path.LocalAttrs == nil {
			path.LocalAttrs = make(map[string]any)
		}
		path.LocalAttrs[AttrKey(path.CurrentNode, "output")] = ar.Output
		s.Attributes[AttrKey(path.CurrentNode, "output")] = ar.Output
	}
}
