package viewsync

import (
	"fmt"

	"panelsync/pkg/logging"
)

// runPass is one Dispatch Engine pass. It walks a snapshot of the pending
// set in insertion order; targets added during the pass wait for the next
// tick.
func (s *Scheduler) runPass() {
	s.metrics.RecordTick()

	for _, name := range s.dirty.pending.snapshot() {
		if s.state != StateReady {
			return
		}
		if !s.dirty.pending.contains(name) {
			continue
		}
		if s.throttle.isBlocked(name) {
			s.metrics.RecordDeferral(name)
			continue
		}
		s.dispatch(name)
	}

	if s.state == StateReady && s.dirty.pending.len() > 0 {
		s.batch.request()
	}
}

// dispatch syncs one unblocked target. The target leaves the pending set
// before its handlers run so a handler that re-marks it queues a new tick.
func (s *Scheduler) dispatch(name string) bool {
	s.dirty.pending.remove(name)
	props := s.dirty.clearAll(name)
	if len(props) == 0 {
		return false
	}

	handlers := s.handlers[name]
	if len(handlers) == 0 {
		logging.Debug("Dispatch", "No handlers for %s, dropping %v", name, props)
	} else {
		logging.Debug("Dispatch", "Syncing %s %v", name, props)
	}

	s.inFlight[name] = true
	var failure error
	for _, h := range handlers {
		if err := invoke(h, props); err != nil {
			failure = &HandlerFailureError{Target: name, Properties: props, Cause: err}
			s.metrics.RecordHandlerFailure(name, s.host.Now())
			logging.Warn("Dispatch", "%v", failure)
		}
	}
	delete(s.inFlight, name)

	s.metrics.RecordDispatch(name, s.host.Now())
	if s.state != StateReady {
		// a handler tore the scheduler down
		return true
	}
	s.throttle.arm(name)

	if failure != nil {
		s.handleFailure(name, props)
	} else {
		delete(s.attempts, name)
	}
	return true
}

// invoke calls h with a private copy of props and converts a panic into an
// error.
func invoke(h SyncHandler, props []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	dirty := make([]string, len(props))
	copy(dirty, props)
	return h(dirty)
}

// handleFailure applies the failure policy to a dispatch with at least one
// failed handler. Under fail-open the properties count as delivered.
func (s *Scheduler) handleFailure(name string, props []string) {
	if s.policy.Mode != RetryWithBackoff {
		return
	}

	s.attempts[name]++
	attempt := s.attempts[name]
	if attempt > s.policy.MaxRetries {
		logging.Error("Dispatch", ErrHandlerFailure,
			"Giving up on %s %v after %d attempts", name, props, attempt)
		delete(s.attempts, name)
		return
	}

	if cancel, ok := s.retries[name]; ok {
		cancel()
	}

	delay := s.policy.backoff(attempt)
	s.metrics.RecordRetry(name)
	logging.Debug("Dispatch", "Retrying %s %v after %v (attempt %d)", name, props, delay, attempt)

	s.retries[name] = s.host.AfterFunc(delay, func() {
		delete(s.retries, name)
		for _, p := range props {
			if err := s.MarkDirty(name, p); err != nil {
				logging.Debug("Dispatch", "Retry of %s.%s dropped: %v", name, p, err)
				return
			}
		}
	})
}
