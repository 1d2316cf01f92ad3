// Package logging provides the subsystem-tagged logger used throughout
// panelsync.
//
// It is a thin layer over Go's standard slog package. Every entry carries a
// subsystem identifier so scheduler, router and loop activity can be told
// apart in mixed output.
//
// # Log Levels
//   - **Debug**: per-mark and per-dispatch tracing
//   - **Info**: lifecycle transitions (start, teardown, reload)
//   - **Warn**: recoverable problems such as a failing sync handler
//   - **Error**: failures that leave a display stale or abort a command
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Scheduler", "Started with %d targets", n)
//	logging.Debug("Dispatch", "Syncing %s %v", target, props)
//	logging.Error("Dispatch", err, "Handler for %s failed", target)
//
// # Console Mode
//
// The interactive console owns the terminal through readline. In that mode
// InitForConsole returns a buffered channel of LogEntry values which the
// console prints between prompts; entries are dropped (with a note on
// stderr) when the channel is full rather than blocking the event loop.
//
// # Subsystems
//
//   - **Scheduler**: lifecycle and debug surface
//   - **Dispatch**: tick passes and handler invocation
//   - **Router**: event to dirty-mark routing
//   - **Throttle**: per-target interval timers
//   - **Loop**: host event loop
//   - **EventBus**: publish/subscribe delivery
//   - **ConfigLoader** / **ConfigWatcher**: configuration
//   - **Bootstrap**: composition root
package logging
