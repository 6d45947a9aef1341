// Package policy configures retry behavior for effect fulfillment:
// tool calls and model calls that fail transiently can be retried with
// exponential backoff before the path is failed.
package policy

import (
	"errors"
	"math/rand"
	"time"
)

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate for an
// unusable configuration.
var ErrInvalidRetryPolicy = errors.New("policy: invalid retry policy")

// NodePolicy configures retry and idempotency behavior for effects
// bound to a specific node. If absent for a node, effects fulfill
// once with no retry.
type NodePolicy struct {
	RetryPolicy *RetryPolicy

	// IdempotencyKeyFunc generates a custom idempotency key from an
	// effect's bound node and path ID. effectexec does not read it;
	// the executor uses only RetryPolicy.
	IdempotencyKeyFunc func(nodeID, pathID string) string
}

// RetryPolicy configures automatic retry for transient effect
// failures using exponential backoff with jitter.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts including the
	// first. 1 means no retries.
	MaxAttempts int

	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable reports whether err should be retried. If nil, no
	// error is considered retryable.
	Retryable func(error) bool
}

// Validate reports whether rp is a usable configuration.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return ErrInvalidRetryPolicy
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return ErrInvalidRetryPolicy
	}
	return nil
}

// ComputeBackoff returns the delay before retry attempt number attempt
// (0-indexed: 0 is the delay before the second overall attempt),
// combining exponential growth capped at maxDelay with jitter in
// [0, base) to avoid synchronized retries across paths.
func ComputeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	exponential := base * (1 << attempt)
	if maxDelay > 0 && exponential > maxDelay {
		exponential = maxDelay
	}

	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) //nolint:gosec // timing jitter, not security-sensitive
		}
	}
	return exponential + jitter
}

// ShouldRetry reports whether attempt (0-indexed, the attempt that
// just failed) should be followed by another attempt under rp.
func (rp *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if rp == nil || err == nil {
		return false
	}
	if attempt+1 >= rp.MaxAttempts {
		return false
	}
	if rp.Retryable == nil {
		return false
	}
	return rp.Retryable(err)
}
