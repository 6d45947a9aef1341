package runtime

import (
	"time"

	"github.com/dygram-dev/dygram/machine"
)

// LogLevel controls the verbosity of Log effects and expression-sandbox
// warnings emitted during a step.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Limits bounds a single execute() run (§6 Configuration).
type Limits struct {
	MaxSteps             int
	MaxNodeInvocations   int
	TimeoutMs            int
	CycleDetectionWindow int
	// CycleThreshold is the number of times a single (from,to) pair may
	// recur within the sliding window before the path is failed with
	// CycleDetected (§4.4 step 7). Not part of the wire configuration
	// surface named in §6, but needed to make the default concrete.
	CycleThreshold int
}

// DefaultLimits mirrors the defaults named in §6.
func DefaultLimits() Limits {
	return Limits{
		MaxSteps:             20,
		MaxNodeInvocations:   10,
		TimeoutMs:            10_000,
		CycleDetectionWindow: 16,
		CycleThreshold:       3,
	}
}

// PathStatus is the lifecycle state of a single ExecutionPath.
type PathStatus string

const (
	PathActive   PathStatus = "active"
	PathWaiting  PathStatus = "waiting"
	PathTerminal PathStatus = "terminal"
	PathFailed   PathStatus = "failed"
)

// Status is the aggregate status returned by step() (§4.4).
type Status string

const (
	StatusContinue Status = "continue"
	StatusWaiting  Status = "waiting"
	StatusTerminal Status = "terminal"
	StatusFailed   Status = "failed"
)

// Transition is a single, immutable history entry.
type Transition struct {
	PathID    string    `json:"pathId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	EdgeLabel string    `json:"transition,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Output    any       `json:"output,omitempty"`
	// FailureReason records why a path failed on this transition, e.g.
	// "CycleDetected", "Timeout", or a tool/model error code. Empty for
	// ordinary transitions.
	FailureReason string `json:"failureReason,omitempty"`
}

// ExecutionPath is one concurrent trace through the graph.
type ExecutionPath struct {
	ID             string
	CurrentNode    string
	VisitedNodes   []string // ordered multiset (§9 open question ii)
	Status         PathStatus
	LocalAttrs     map[string]any
	PendingEffectID string
}

// clone returns a deep, independent copy of the path so that forking and
// checkpointing never share mutable state across steps (§9 ownership note).
func (p ExecutionPath) clone() ExecutionPath {
	np := p
	np.VisitedNodes = append([]string(nil), p.VisitedNodes...)
	if p.LocalAttrs != nil {
		np.LocalAttrs = make(map[string]any, len(p.LocalAttrs))
		for k, v := range p.LocalAttrs {
			np.LocalAttrs[k] = v
		}
	}
	return np
}

// ExecutionState is the mutable-but-copy-on-write execution snapshot.
// Every runtime operation returns a new ExecutionState rather than
// mutating its receiver in place.
type ExecutionState struct {
	Title              string
	MachineSnapshot    machine.Definition
	Paths              []ExecutionPath
	Attributes         map[string]any
	History            []Transition
	NodeInvocationCounts map[string]int
	StepCount          int
	Limits             Limits
	LogLevel           LogLevel
	PendingEffectID    string
	ForkOnMultipleEdges bool

	// startedAt anchors the TimeoutMs wall-clock budget (§5 Cancellation).
	// Not part of the serialized wire format; recomputed as "now" on
	// deserialization so a restored state gets a fresh budget.
	startedAt time.Time
}

// clone returns a structurally independent copy of the state (deep copy
// of mutable collections, machine snapshot shared by reference since it
// is immutable input). Used by step(), applyAgentResult(), and
// checkpoint/restore so callers never observe aliased mutation.
func (s ExecutionState) clone() ExecutionState {
	ns := s
	ns.Paths = make([]ExecutionPath, len(s.Paths))
	for i, p := range s.Paths {
		ns.Paths[i] = p.clone()
	}
	ns.Attributes = make(map[string]any, len(s.Attributes))
	for k, v := range s.Attributes {
		ns.Attributes[k] = v
	}
	ns.History = append([]Transition(nil), s.History...)
	ns.NodeInvocationCounts = make(map[string]int, len(s.NodeInvocationCounts))
	for k, v := range s.NodeInvocationCounts {
		ns.NodeInvocationCounts[k] = v
	}
	return ns
}

// PathByID returns the path with the given id, if present.
func (s ExecutionState) PathByID(id string) (ExecutionPath, bool) {
	for _, p := range s.Paths {
		if p.ID == id {
			return p, true
		}
	}
	return ExecutionPath{}, false
}

// AttrKey builds the "nodeName.attrName" key used throughout §3/§4.
func AttrKey(node, attr string) string {
	return node + "." + attr
}
