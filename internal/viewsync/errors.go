package viewsync

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTarget matches any UnknownTargetError.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrUnknownProperty matches any UnknownPropertyError.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrHandlerFailure matches any HandlerFailureError.
	ErrHandlerFailure = errors.New("sync handler failed")

	// ErrSchedulerTornDown is returned by operations after Teardown.
	ErrSchedulerTornDown = errors.New("scheduler has been torn down")

	// ErrNotStarted is returned when marking before Start.
	ErrNotStarted = errors.New("scheduler has not been started")

	// ErrRegistrySealed is returned by Declare once the scheduler is started.
	ErrRegistrySealed = errors.New("target registry is sealed")

	// ErrInvalidTransition is returned for an illegal lifecycle transition.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// UnknownTargetError reports a reference to an undeclared target.
type UnknownTargetError struct {
	Target string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q", e.Target)
}

// Is reports whether target is ErrUnknownTarget.
func (e *UnknownTargetError) Is(target error) bool {
	return target == ErrUnknownTarget
}

// UnknownPropertyError reports a reference to a property the target never
// declared.
type UnknownPropertyError struct {
	Target   string
	Property string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("unknown property %q on target %q", e.Property, e.Target)
}

// Is reports whether target is ErrUnknownProperty.
func (e *UnknownPropertyError) Is(target error) bool {
	return target == ErrUnknownProperty
}

// HandlerFailureError wraps an error returned, or a panic raised, by a sync
// handler during dispatch.
type HandlerFailureError struct {
	Target     string
	Properties []string
	Cause      error
}

func (e *HandlerFailureError) Error() string {
	return fmt.Sprintf("sync handler for %q [%s] failed: %v", e.Target, strings.Join(e.Properties, ","), e.Cause)
}

// Unwrap returns the underlying cause.
func (e *HandlerFailureError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrHandlerFailure.
func (e *HandlerFailureError) Is(target error) bool {
	return target == ErrHandlerFailure
}
