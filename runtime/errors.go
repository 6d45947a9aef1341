package runtime

import "errors"

// Sentinel errors backing RuntimeError.Code (§7). Callers compare with
// errors.Is against these, or inspect RuntimeError.Code directly.
var (
	ErrNodeNotFound       = errors.New("node not found")
	ErrEdgeNotFound       = errors.New("edge not found")
	ErrToolNotFound       = errors.New("tool not found")
	ErrToolExecutionFailed = errors.New("tool execution failed")
	ErrExpressionFailure  = errors.New("expression evaluation failed")
	ErrStepsExceeded      = errors.New("step limit exceeded")
	ErrNodeInvocationsExceeded = errors.New("node invocation limit exceeded")
	ErrTimeout            = errors.New("execution timed out")
	ErrCycleDetected      = errors.New("cycle detected")
	ErrVfsUnavailable     = errors.New("virtual filesystem unavailable")
	ErrVfsReadMissing     = errors.New("virtual filesystem read: file missing")
	ErrVfsWriteFailed     = errors.New("virtual filesystem write failed")
	ErrSerialization      = errors.New("serialization error")
)

// RuntimeError is the single tagged-error type the runtime produces.
// It wraps one of the sentinels above under Code so callers can branch
// with errors.Is/errors.As while still getting a node/path-scoped
// message (mirrors the teacher's *EngineError / *NodeError split).
type RuntimeError struct {
	Code   error
	NodeID string
	PathID string
	Detail string
}

func (e *RuntimeError) Error() string {
	msg := e.Code.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.NodeID != "" {
		msg = "node " + e.NodeID + ": " + msg
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Code
}

func newErr(code error, nodeID, detail string) *RuntimeError {
	return &RuntimeError{Code: code, NodeID: nodeID, Detail: detail}
}
