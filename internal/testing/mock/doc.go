// Package mock provides deterministic test doubles for the host timing
// primitives.
//
// MockClock is a manually advanced clock. FakeHost builds on it to implement
// host.Host: timers and frame callbacks are queued and only run when a test
// calls Advance or RunFrame, so scheduler behaviour can be asserted at exact
// virtual timestamps.
//
// Usage:
//
//	h := mock.NewFakeHost(16 * time.Millisecond)
//	s := viewsync.New(h)
//	...
//	h.Advance(100 * time.Millisecond) // fires due timers and frames in order
package mock
