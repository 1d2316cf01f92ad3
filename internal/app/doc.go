// Package app is the composition root of panelsync.
//
// Bootstrap turns a configuration into running parts: a host loop, an event
// bus, the view scheduler with its declared targets and event bindings, the
// demonstration world and one panel per target registered as that target's
// sync handler. Run drives the loop until its context ends.
//
// # Threading
//
// The scheduler, the world and the panels are owned by the loop goroutine.
// Methods on Application that touch them (Emit, MarkDirty, MarkTargetDirty,
// Flush, Stats, Report) post a closure to the loop and wait for it, so they
// are safe to call from any goroutine while Run is active and return
// ErrNotRunning otherwise.
//
// # Lifecycle
//
// Run starts, in order:
//  1. the host loop
//  2. the scheduler, on the loop
//  3. the simulator, when a simulation rate is configured
//  4. the configuration watcher, when watching is enabled and a file is in use
//  5. the readiness notification, when running under systemd
//
// Shutdown runs the same steps in reverse. A reloaded configuration only
// changes throttle intervals; target, property and binding changes are
// logged as requiring a restart because the scheduler's registry is sealed
// once it starts.
//
// # Capabilities
//
// Optional facilities are detected during bootstrap and recorded in a
// Capabilities set: frame callbacks and the event source are required, a
// watchable configuration file and a systemd notification socket are used
// when present.
package app
