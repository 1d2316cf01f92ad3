// Package viewsync implements the incremental view-synchronization
// scheduler.
//
// # Overview
//
// Displays ("targets") are kept in step with a frequently mutated model
// without rebuilding on every change. Each target declares the properties
// that can go stale independently; domain events are routed to dirty marks;
// a frame-aligned batch pass dispatches only the dirty properties of each
// target, at most once per the target's throttle window.
//
// # Architecture
//
//   - Registry: static targets and their property names
//   - dirty table: [target][property] flags plus the insertion-ordered
//     pending set
//   - router: event name -> (target, properties) bindings
//   - throttle: per-target minimum dispatch interval with timed expiry
//   - batcher: Idle -> Requested -> Processing state machine guaranteeing a
//     single outstanding frame request
//   - dispatch: the per-tick pass invoking SyncHandlers
//
// # Usage
//
//	s := viewsync.New(loop, viewsync.WithEventSource(bus))
//	_ = s.Declare("inventory", []string{"items", "gold"}, viewsync.WithInterval(50*time.Millisecond))
//	_ = s.Handle("inventory", func(dirty []string) error { return render(dirty) })
//	_ = s.Bind("player:gold:changed", "inventory", "gold")
//	_ = s.Start()
//	...
//	defer s.Teardown()
//
// # Concurrency
//
// A Scheduler belongs to one host loop goroutine. Handlers run to
// completion on that goroutine and may mark properties re-entrantly; a mark
// that arrives during a pass is either picked up by the pass (if its target
// has not been dispatched yet) or scheduled for the next tick. Nothing is
// dropped.
//
// # Failure handling
//
// A handler error or panic is wrapped in a HandlerFailureError, logged and
// counted. Other handlers and targets in the pass are unaffected. Under the
// default fail-open policy the properties count as delivered; the
// RetryWithBackoff policy re-marks them after an exponential backoff.
package viewsync
