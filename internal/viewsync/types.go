package viewsync

import (
	"time"
)

// SyncHandler brings one target's display up to date. It receives exactly
// the properties that were dirty when the dispatch snapshot was taken, in
// declaration order. Handlers run synchronously on the loop and must return
// quickly; asynchronous work should be started in the background and
// re-invalidate the target when it completes.
type SyncHandler func(dirty []string) error

// EventSource is the publish/subscribe transport the router listens on.
type EventSource interface {
	// On subscribes handler to event and returns a function that removes
	// the subscription.
	On(event string, handler func(payload any)) (unsubscribe func())
}

// State is the scheduler lifecycle state.
type State int

const (
	// StateUninitialized accepts declarations, bindings and handlers.
	StateUninitialized State = iota

	// StateReady accepts marks and dispatches them.
	StateReady

	// StateTornDown rejects every mutating operation.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateReady:
		return "Ready"
	case StateTornDown:
		return "TornDown"
	default:
		return "Unknown"
	}
}

// FailureMode selects what happens to properties whose handler failed.
type FailureMode string

const (
	// FailOpen treats a failed dispatch as delivered.
	FailOpen FailureMode = "fail-open"

	// RetryWithBackoff re-marks the failed properties after an exponential
	// backoff, up to MaxRetries consecutive failures.
	RetryWithBackoff FailureMode = "retry"
)

// FailurePolicy configures handler failure handling.
type FailurePolicy struct {
	Mode FailureMode

	// MaxRetries is the number of consecutive failed dispatches of one
	// target that are retried before giving up. Only used by RetryWithBackoff.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
}

// DefaultFailurePolicy returns the fail-open policy with retry parameters
// preset for callers that switch the mode.
func DefaultFailurePolicy() FailurePolicy {
	return FailurePolicy{
		Mode:           FailOpen,
		MaxRetries:     3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// backoff computes initial * 2^(attempt-1), capped at MaxBackoff.
func (p FailurePolicy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.InitialBackoff * time.Duration(1<<uint(attempt-1))
	if d > p.MaxBackoff || d <= 0 {
		d = p.MaxBackoff
	}
	return d
}

// DefaultInterval is the throttle window for targets declared without one.
const DefaultInterval = 100 * time.Millisecond
