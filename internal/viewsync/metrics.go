package viewsync

import (
	"sync"
	"time"

	"panelsync/pkg/logging"
)

// Metrics tracks dispatch activity per target.
//
// Counters are kept per target so a persistently stale display can be traced
// to a failing handler or to a throttle that keeps deferring it.
type Metrics struct {
	mu sync.RWMutex

	targets map[string]*targetMetrics

	totalMarks           int64
	totalCoalescedMarks  int64
	totalTicks           int64
	totalDispatches      int64
	totalHandlerFailures int64
	totalDeferrals       int64
	totalRetries         int64
}

// targetMetrics holds dispatch metrics for one target.
type targetMetrics struct {
	Target          string
	Marks           int64
	Dispatches      int64
	HandlerFailures int64
	Deferrals       int64
	Retries         int64
	LastDispatchAt  time.Time
	LastFailureAt   time.Time
}

// NewMetrics creates an empty Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		targets: make(map[string]*targetMetrics),
	}
}

func (m *Metrics) target(name string) *targetMetrics {
	if tm, ok := m.targets[name]; ok {
		return tm
	}
	tm := &targetMetrics{Target: name}
	m.targets[name] = tm
	return tm
}

// RecordMark records a dirty mark; coalesced marks hit an already dirty flag.
func (m *Metrics) RecordMark(target string, coalesced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target(target).Marks++
	m.totalMarks++
	if coalesced {
		m.totalCoalescedMarks++
	}
}

// RecordTick records one dispatch pass.
func (m *Metrics) RecordTick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTicks++
}

// RecordDispatch records a completed dispatch of target.
func (m *Metrics) RecordDispatch(target string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm := m.target(target)
	tm.Dispatches++
	tm.LastDispatchAt = at
	m.totalDispatches++
}

// RecordHandlerFailure records a failed handler invocation.
func (m *Metrics) RecordHandlerFailure(target string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm := m.target(target)
	tm.HandlerFailures++
	tm.LastFailureAt = at
	m.totalHandlerFailures++

	logging.Debug("Metrics", "Handler failure for %s (failures: %d)", target, tm.HandlerFailures)
}

// RecordDeferral records a pass that skipped target because it was throttled.
func (m *Metrics) RecordDeferral(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target(target).Deferrals++
	m.totalDeferrals++
}

// RecordRetry records a scheduled retry of failed properties.
func (m *Metrics) RecordRetry(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target(target).Retries++
	m.totalRetries++
}

// MetricsSummary is a read-only view of Metrics.
type MetricsSummary struct {
	TotalMarks           int64               `json:"total_marks"`
	TotalCoalescedMarks  int64               `json:"total_coalesced_marks"`
	TotalTicks           int64               `json:"total_ticks"`
	TotalDispatches      int64               `json:"total_dispatches"`
	TotalHandlerFailures int64               `json:"total_handler_failures"`
	TotalDeferrals       int64               `json:"total_deferrals"`
	TotalRetries         int64               `json:"total_retries"`
	CoalescingRatio      float64             `json:"coalescing_ratio"`
	PerTarget            []TargetMetricsView `json:"per_target,omitempty"`
}

// TargetMetricsView is a read-only view of one target's metrics.
type TargetMetricsView struct {
	Target          string    `json:"target"`
	Marks           int64     `json:"marks"`
	Dispatches      int64     `json:"dispatches"`
	HandlerFailures int64     `json:"handler_failures"`
	Deferrals       int64     `json:"deferrals"`
	Retries         int64     `json:"retries"`
	LastDispatchAt  time.Time `json:"last_dispatch_at,omitempty"`
	LastFailureAt   time.Time `json:"last_failure_at,omitempty"`
}

// Summary returns a snapshot. PerTarget follows the given order; targets
// without activity are omitted.
func (m *Metrics) Summary(order []string) MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSummary{
		TotalMarks:           m.totalMarks,
		TotalCoalescedMarks:  m.totalCoalescedMarks,
		TotalTicks:           m.totalTicks,
		TotalDispatches:      m.totalDispatches,
		TotalHandlerFailures: m.totalHandlerFailures,
		TotalDeferrals:       m.totalDeferrals,
		TotalRetries:         m.totalRetries,
	}
	if m.totalMarks > 0 {
		s.CoalescingRatio = float64(m.totalCoalescedMarks) / float64(m.totalMarks)
	}

	for _, name := range order {
		tm, ok := m.targets[name]
		if !ok {
			continue
		}
		s.PerTarget = append(s.PerTarget, TargetMetricsView{
			Target:          tm.Target,
			Marks:           tm.Marks,
			Dispatches:      tm.Dispatches,
			HandlerFailures: tm.HandlerFailures,
			Deferrals:       tm.Deferrals,
			Retries:         tm.Retries,
			LastDispatchAt:  tm.LastDispatchAt,
			LastFailureAt:   tm.LastFailureAt,
		})
	}
	return s
}
