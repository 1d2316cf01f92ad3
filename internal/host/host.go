// Package host provides the timing primitives the view scheduler runs on: a
// single-goroutine event loop with cancellable timers and a presentation
// frame callback.
//
// Everything scheduled through a Host runs on the loop goroutine, one
// callback at a time, so state owned by that goroutine needs no locks.
// Other goroutines hand work to the loop with Loop.Post or Loop.Call.
package host

import "time"

// Cancel revokes a scheduled callback. Calling it after the callback ran, or
// more than once, is a no-op. It must be called on the loop goroutine.
type Cancel func()

// Host is the set of timing primitives the scheduler requires.
type Host interface {
	// Now returns the host's current time.
	Now() time.Time

	// AfterFunc runs fn once, on the loop, after d has elapsed.
	AfterFunc(d time.Duration, fn func()) Cancel

	// RequestFrame runs fn once, on the loop, before the next presentation
	// frame.
	RequestFrame(fn func()) Cancel
}

// DefaultFrameInterval approximates a 60Hz presentation cycle.
const DefaultFrameInterval = 16 * time.Millisecond
