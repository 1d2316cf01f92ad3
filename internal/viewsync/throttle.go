package viewsync

import (
	"time"

	"panelsync/internal/host"
	"panelsync/pkg/logging"
)

// throttleRecord is created lazily on a target's first dispatch.
type throttleRecord struct {
	blocked      bool
	lastDispatch time.Time
	cancel       host.Cancel
}

// throttle enforces a minimum interval between two dispatches of a target.
type throttle struct {
	host            host.Host
	defaultInterval time.Duration
	intervals       map[string]time.Duration
	records         map[string]*throttleRecord
}

func newThrottle(h host.Host, defaultInterval time.Duration) *throttle {
	if defaultInterval <= 0 {
		defaultInterval = DefaultInterval
	}
	return &throttle{
		host:            h,
		defaultInterval: defaultInterval,
		intervals:       make(map[string]time.Duration),
		records:         make(map[string]*throttleRecord),
	}
}

func (t *throttle) setInterval(target string, d time.Duration) {
	if d <= 0 {
		delete(t.intervals, target)
		return
	}
	t.intervals[target] = d
}

func (t *throttle) interval(target string) time.Duration {
	if d, ok := t.intervals[target]; ok {
		return d
	}
	return t.defaultInterval
}

func (t *throttle) isBlocked(target string) bool {
	rec, ok := t.records[target]
	return ok && rec.blocked
}

// arm blocks target for its interval, starting now.
func (t *throttle) arm(target string) {
	rec, ok := t.records[target]
	if !ok {
		rec = &throttleRecord{}
		t.records[target] = rec
	}
	if rec.cancel != nil {
		rec.cancel()
	}

	rec.blocked = true
	rec.lastDispatch = t.host.Now()
	d := t.interval(target)
	rec.cancel = t.host.AfterFunc(d, func() {
		rec.blocked = false
		rec.cancel = nil
		logging.Debug("Throttle", "Window for %s expired after %v", target, d)
	})
}

// lastDispatch returns when target was last armed.
func (t *throttle) lastDispatch(target string) (time.Time, bool) {
	rec, ok := t.records[target]
	if !ok {
		return time.Time{}, false
	}
	return rec.lastDispatch, true
}

// blocked lists blocked targets in the given order.
func (t *throttle) blocked(order []string) []string {
	var out []string
	for _, name := range order {
		if t.isBlocked(name) {
			out = append(out, name)
		}
	}
	return out
}

// stop cancels every throttle timer and unblocks all targets.
func (t *throttle) stop() {
	for _, rec := range t.records {
		if rec.cancel != nil {
			rec.cancel()
			rec.cancel = nil
		}
		rec.blocked = false
	}
}
