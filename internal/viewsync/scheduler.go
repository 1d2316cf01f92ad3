package viewsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"panelsync/internal/host"
	"panelsync/pkg/logging"
)

// Scheduler keeps targets synchronized with a mutable model by dispatching
// only their dirty properties, at most once per throttle window, in batches
// aligned to the host's frame callback.
//
// A Scheduler is confined to the host loop goroutine: none of its methods
// are safe for concurrent use.
type Scheduler struct {
	id    string
	host  host.Host
	state State

	registry *Registry
	dirty    *dirtyTable
	router   *router
	throttle *throttle
	batch    *batcher
	metrics  *Metrics

	handlers map[string][]SyncHandler
	source   EventSource
	policy   FailurePolicy

	attempts map[string]int
	retries  map[string]host.Cancel
	inFlight map[string]bool
}

type options struct {
	defaultInterval time.Duration
	policy          FailurePolicy
	source          EventSource
	metrics         *Metrics
}

// Option configures a Scheduler.
type Option func(*options)

// WithDefaultInterval sets the throttle window for targets declared without
// WithInterval.
func WithDefaultInterval(d time.Duration) Option {
	return func(o *options) {
		o.defaultInterval = d
	}
}

// WithFailurePolicy selects the handler failure policy.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithEventSource subscribes the router to src on Start.
func WithEventSource(src EventSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithMetrics records into m instead of a private Metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New creates a scheduler in StateUninitialized.
func New(h host.Host, opts ...Option) *Scheduler {
	o := options{
		defaultInterval: DefaultInterval,
		policy:          DefaultFailurePolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if o.policy.Mode == "" {
		o.policy.Mode = FailOpen
	}

	registry := NewRegistry()
	s := &Scheduler{
		id:       uuid.NewString(),
		host:     h,
		state:    StateUninitialized,
		registry: registry,
		dirty:    newDirtyTable(registry),
		throttle: newThrottle(h, o.defaultInterval),
		metrics:  o.metrics,
		handlers: make(map[string][]SyncHandler),
		source:   o.source,
		policy:   o.policy,
		attempts: make(map[string]int),
		retries:  make(map[string]host.Cancel),
		inFlight: make(map[string]bool),
	}
	s.router = newRouter(registry, s.MarkDirty)
	s.batch = newBatcher(h, s.runPass)
	return s
}

// ID identifies this scheduler instance in logs and stats.
func (s *Scheduler) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Registry exposes the target registry for read-only queries.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Metrics returns the metrics sink.
func (s *Scheduler) Metrics() *Metrics {
	return s.metrics
}

// transition moves the lifecycle state machine along a legal edge.
func (s *Scheduler) transition(to State) error {
	legal := false
	switch s.state {
	case StateUninitialized:
		legal = to == StateReady || to == StateTornDown
	case StateReady:
		legal = to == StateTornDown
	}
	if !legal {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}
	logging.Debug("Scheduler", "Scheduler %s: %s -> %s", s.id, s.state, to)
	s.state = to
	return nil
}

// Declare registers a target. It is only allowed before Start.
func (s *Scheduler) Declare(name string, properties []string, opts ...TargetOption) error {
	switch s.state {
	case StateReady:
		return fmt.Errorf("declare %q: %w", name, ErrRegistrySealed)
	case StateTornDown:
		return fmt.Errorf("declare %q: %w", name, ErrSchedulerTornDown)
	}
	if err := s.registry.Declare(name, properties, opts...); err != nil {
		return err
	}
	s.throttle.setInterval(name, s.registry.Interval(name))
	return nil
}

// HasProperty reports whether target declared property.
func (s *Scheduler) HasProperty(target, property string) bool {
	return s.registry.HasProperty(target, property)
}

// Handle adds a sync handler to target.
func (s *Scheduler) Handle(target string, h SyncHandler) error {
	if s.state == StateTornDown {
		return ErrSchedulerTornDown
	}
	if !s.registry.HasTarget(target) {
		return &UnknownTargetError{Target: target}
	}
	if h == nil {
		return fmt.Errorf("nil sync handler for %q", target)
	}
	s.handlers[target] = append(s.handlers[target], h)
	return nil
}

// Bind declares that event makes properties of target stale.
func (s *Scheduler) Bind(event, target string, properties ...string) error {
	if s.state == StateTornDown {
		return ErrSchedulerTornDown
	}
	return s.router.bind(event, target, properties)
}

// Events returns bound event names in first-bind order.
func (s *Scheduler) Events() []string {
	return s.router.eventNames()
}

// Start seals the registry, subscribes to the event source if one was
// configured and begins accepting marks.
func (s *Scheduler) Start() error {
	if err := s.transition(StateReady); err != nil {
		return err
	}
	if s.source != nil {
		s.router.attach(s.source)
	}
	logging.Info("Scheduler", "Started scheduler %s with %d targets and %d bound events",
		s.id, len(s.registry.order), len(s.router.events))
	return nil
}

func (s *Scheduler) checkReady() error {
	switch s.state {
	case StateUninitialized:
		return ErrNotStarted
	case StateTornDown:
		return ErrSchedulerTornDown
	}
	return nil
}

// MarkDirty flags property of target as stale and ensures a tick is
// scheduled. Repeated marks before the next dispatch coalesce.
func (s *Scheduler) MarkDirty(target, property string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	changed, err := s.dirty.mark(target, property)
	if err != nil {
		return err
	}
	s.metrics.RecordMark(target, !changed)
	s.batch.request()
	return nil
}

// MarkTargetDirty flags every property of target as stale.
func (s *Scheduler) MarkTargetDirty(target string) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if _, err := s.dirty.markAll(target); err != nil {
		return err
	}
	s.metrics.RecordMark(target, false)
	s.batch.request()
	return nil
}

// IsDirty reports whether property of target is stale.
func (s *Scheduler) IsDirty(target, property string) bool {
	return s.dirty.isDirty(target, property)
}

// IsPending reports whether target has outstanding work.
func (s *Scheduler) IsPending(target string) bool {
	return s.dirty.pending.contains(target)
}

// Flush marks every property of target and dispatches it immediately when
// it is not throttled. A throttled target stays pending for a later tick,
// so the throttle window still holds, and so does a target whose handlers
// are running. It reports whether a dispatch ran.
//
// Unlike a forced repaint, Flush never breaks the throttle window: callers
// must not expect an immediate sync when it returns false.
func (s *Scheduler) Flush(target string) (bool, error) {
	if err := s.MarkTargetDirty(target); err != nil {
		return false, err
	}
	if s.throttle.isBlocked(target) || s.inFlight[target] {
		return false, nil
	}
	return s.dispatch(target), nil
}

// Deliver routes event directly, bypassing the event source.
func (s *Scheduler) Deliver(event string, payload any) {
	s.router.deliver(event, payload)
}

// SetInterval changes the throttle window of target for future dispatches.
// A non-positive d restores the default window.
func (s *Scheduler) SetInterval(target string, d time.Duration) error {
	if s.state == StateTornDown {
		return ErrSchedulerTornDown
	}
	if !s.registry.HasTarget(target) {
		return &UnknownTargetError{Target: target}
	}
	s.throttle.setInterval(target, d)
	return nil
}

// Interval returns the effective throttle window of target.
func (s *Scheduler) Interval(target string) time.Duration {
	return s.throttle.interval(target)
}

// LastDispatch returns when target was last dispatched.
func (s *Scheduler) LastDispatch(target string) (time.Time, bool) {
	return s.throttle.lastDispatch(target)
}

// Teardown cancels the outstanding tick, throttle and retry timers,
// unsubscribes from the event source and drops all pending work. Later
// mutating calls return ErrSchedulerTornDown. Teardown is idempotent.
func (s *Scheduler) Teardown() error {
	if s.state == StateTornDown {
		return nil
	}
	if err := s.transition(StateTornDown); err != nil {
		return err
	}

	s.batch.stop()
	s.throttle.stop()
	for name, cancel := range s.retries {
		cancel()
		delete(s.retries, name)
	}
	s.router.detach()
	s.dirty.reset()

	logging.Info("Scheduler", "Tore down scheduler %s", s.id)
	return nil
}

// Stats is the read-only debug surface.
type Stats struct {
	ID      string                     `json:"id"`
	State   string                     `json:"state"`
	Phase   string                     `json:"phase"`
	Pending []string                   `json:"pending"`
	Dirty   map[string]map[string]bool `json:"dirty"`
	Blocked []string                   `json:"blocked"`
	Metrics MetricsSummary             `json:"metrics"`
}

// Stats returns a snapshot of pending targets, dirty flags and blocked
// targets. It has no side effects.
func (s *Scheduler) Stats() Stats {
	order := s.registry.Targets()
	return Stats{
		ID:      s.id,
		State:   s.state.String(),
		Phase:   s.batch.phase.String(),
		Pending: s.dirty.pending.snapshot(),
		Dirty:   s.dirty.snapshot(),
		Blocked: s.throttle.blocked(order),
		Metrics: s.metrics.Summary(order),
	}
}
