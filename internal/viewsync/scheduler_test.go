package viewsync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelsync/internal/testing/mock"
)

const frame = 16 * time.Millisecond

// call is one recorded handler invocation.
type call struct {
	at    time.Duration
	seq   int
	props []string
}

// recorder collects handler invocations per target.
type recorder struct {
	host  *mock.FakeHost
	seq   *int
	calls map[string][]call
	order []string
}

func newRecorder(h *mock.FakeHost) *recorder {
	return &recorder{host: h, seq: new(int), calls: make(map[string][]call)}
}

func (r *recorder) handler(target string) SyncHandler {
	return func(dirty []string) error {
		*r.seq++
		r.calls[target] = append(r.calls[target], call{at: r.host.Elapsed(), seq: *r.seq, props: dirty})
		r.order = append(r.order, target)
		return nil
	}
}

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *mock.FakeHost) {
	t.Helper()
	h := mock.NewFakeHost(frame)
	return New(h, opts...), h
}

// scenarioScheduler declares A(50ms; x,y) and B(200ms; z).
func scenarioScheduler(t *testing.T, opts ...Option) (*Scheduler, *mock.FakeHost, *recorder) {
	t.Helper()
	s, h := newTestScheduler(t, opts...)
	rec := newRecorder(h)

	require.NoError(t, s.Declare("A", []string{"x", "y"}, WithInterval(50*time.Millisecond)))
	require.NoError(t, s.Declare("B", []string{"z"}, WithInterval(200*time.Millisecond)))
	require.NoError(t, s.Handle("A", rec.handler("A")))
	require.NoError(t, s.Handle("B", rec.handler("B")))
	require.NoError(t, s.Start())
	return s, h, rec
}

func TestScheduler_Scenario(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.MarkDirty("A", "x"))
	}
	require.NoError(t, s.MarkDirty("B", "z"))
	h.RunFrame()

	require.Len(t, rec.calls["A"], 1)
	require.Len(t, rec.calls["B"], 1)
	assert.Equal(t, []string{"x"}, rec.calls["A"][0].props)
	assert.Equal(t, []string{"z"}, rec.calls["B"][0].props)
	assert.Equal(t, time.Duration(0), rec.calls["A"][0].at)

	h.Advance(10 * time.Millisecond)
	require.NoError(t, s.MarkDirty("A", "y"))
	assert.True(t, s.IsPending("A"))

	h.Advance(200 * time.Millisecond)

	require.Len(t, rec.calls["A"], 2)
	assert.Equal(t, []string{"y"}, rec.calls["A"][1].props)
	assert.GreaterOrEqual(t, rec.calls["A"][1].at, 50*time.Millisecond)
	assert.Len(t, rec.calls["B"], 1)
}

func TestScheduler_IdempotentMarking(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.MarkDirty("A", "x"))
	}
	assert.Equal(t, 1, h.PendingFrames(), "repeated marks must share one tick")

	h.Advance(frame)

	require.Len(t, rec.calls["A"], 1)
	assert.Equal(t, []string{"x"}, rec.calls["A"][0].props)

	summary := s.Metrics().Summary(nil)
	assert.Equal(t, int64(10), summary.TotalMarks)
	assert.Equal(t, int64(9), summary.TotalCoalescedMarks)
}

func TestScheduler_ThrottleLowerBound(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	for i := 0; i < 60; i++ {
		prop := "x"
		if i%2 == 1 {
			prop = "y"
		}
		require.NoError(t, s.MarkDirty("A", prop))
		h.Advance(7 * time.Millisecond)
	}
	h.Advance(time.Second)

	calls := rec.calls["A"]
	require.Greater(t, len(calls), 3)
	for i := 1; i < len(calls); i++ {
		gap := calls[i].at - calls[i-1].at
		assert.GreaterOrEqual(t, gap, 50*time.Millisecond, "dispatch %d came %v after the previous one", i, gap)
	}
}

func TestScheduler_PendingOrder(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	require.NoError(t, s.MarkDirty("B", "z"))
	require.NoError(t, s.MarkDirty("A", "y"))
	require.NoError(t, s.MarkDirty("A", "x"))
	assert.Equal(t, []string{"B", "A"}, s.Stats().Pending)

	h.RunFrame()
	assert.Equal(t, []string{"B", "A"}, rec.order)
	assert.Equal(t, []string{"x", "y"}, rec.calls["A"][0].props, "properties are delivered in declaration order")
}

func TestScheduler_SnapshotConsistency(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x", "y"}, WithInterval(20*time.Millisecond)))

	var seen [][]string
	var dirtyDuringHandler []bool
	require.NoError(t, s.Handle("A", func(dirty []string) error {
		seen = append(seen, dirty)
		dirtyDuringHandler = append(dirtyDuringHandler, s.IsDirty("A", "x"))
		if len(seen) == 1 {
			// re-entrant mark while the handler runs
			require.NoError(t, s.MarkDirty("A", "x"))
		}
		return nil
	}))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	require.NoError(t, s.MarkDirty("A", "y"))
	h.RunFrame()

	require.Len(t, seen, 1)
	assert.Equal(t, []string{"x", "y"}, seen[0])
	assert.False(t, dirtyDuringHandler[0], "flags are cleared before the handler runs")
	assert.True(t, s.IsDirty("A", "x"), "a mark made during the handler survives")
	assert.True(t, s.IsPending("A"))

	h.Advance(100 * time.Millisecond)
	require.Len(t, seen, 2)
	assert.Equal(t, []string{"x"}, seen[1])
}

func TestScheduler_HandlerMutatingSliceDoesNotLeak(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}))

	var second []string
	require.NoError(t, s.Handle("A", func(dirty []string) error {
		dirty[0] = "clobbered"
		return nil
	}))
	require.NoError(t, s.Handle("A", func(dirty []string) error {
		second = dirty
		return nil
	}))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	h.RunFrame()
	assert.Equal(t, []string{"x"}, second)
}

func TestScheduler_MarkDuringPass(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}))
	require.NoError(t, s.Declare("B", []string{"z", "w"}))
	require.NoError(t, s.Declare("C", []string{"q"}))
	rec := newRecorder(h)

	require.NoError(t, s.Handle("A", func(dirty []string) error {
		// B is later in this pass; C is not pending yet
		require.NoError(t, s.MarkDirty("B", "w"))
		require.NoError(t, s.MarkDirty("C", "q"))
		return rec.handler("A")(dirty)
	}))
	require.NoError(t, s.Handle("B", rec.handler("B")))
	require.NoError(t, s.Handle("C", rec.handler("C")))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	require.NoError(t, s.MarkDirty("B", "z"))
	h.RunFrame()

	require.Len(t, rec.calls["B"], 1)
	assert.Equal(t, []string{"z", "w"}, rec.calls["B"][0].props)
	assert.Empty(t, rec.calls["C"], "targets queued during a pass wait for the next tick")
	assert.True(t, s.IsPending("C"))
	assert.Equal(t, 1, h.PendingFrames())

	h.RunFrame()
	require.Len(t, rec.calls["C"], 1)
	assert.Equal(t, []string{"q"}, rec.calls["C"][0].props)
}

func TestScheduler_Isolation(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}, WithInterval(20*time.Millisecond)))
	require.NoError(t, s.Declare("B", []string{"z"}, WithInterval(20*time.Millisecond)))
	require.NoError(t, s.Declare("C", []string{"q"}, WithInterval(20*time.Millisecond)))
	rec := newRecorder(h)

	require.NoError(t, s.Handle("A", func([]string) error { return errors.New("render failed") }))
	require.NoError(t, s.Handle("B", func([]string) error { panic("nil model") }))
	require.NoError(t, s.Handle("B", rec.handler("B")))
	require.NoError(t, s.Handle("C", rec.handler("C")))
	require.NoError(t, s.Start())

	for round := 0; round < 2; round++ {
		require.NoError(t, s.MarkDirty("A", "x"))
		require.NoError(t, s.MarkDirty("B", "z"))
		require.NoError(t, s.MarkDirty("C", "q"))
		h.Advance(100 * time.Millisecond)
	}

	assert.Len(t, rec.calls["B"], 2, "a panicking handler does not stop the next handler of the same target")
	assert.Len(t, rec.calls["C"], 2)
	assert.Empty(t, s.Stats().Pending, "fail-open treats failed properties as delivered")

	summary := s.Metrics().Summary([]string{"A", "B", "C"})
	assert.Equal(t, int64(4), summary.TotalHandlerFailures)
	assert.Equal(t, int64(0), summary.TotalRetries)
}

func TestScheduler_NoLostUpdateAndConvergence(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	seq := rec.seq
	lastMark := map[string]int{}
	props := []struct{ target, prop string }{{"A", "x"}, {"B", "z"}, {"A", "y"}, {"A", "x"}, {"B", "z"}}

	for i := 0; i < 50; i++ {
		p := props[i%len(props)]
		require.NoError(t, s.MarkDirty(p.target, p.prop))
		*seq++
		lastMark[p.target+"."+p.prop] = *seq
		h.Advance(time.Duration(1+i%7) * time.Millisecond)
	}

	// convergence: one max throttle window plus one frame after the last mark
	h.Advance(200*time.Millisecond + frame)

	stats := s.Stats()
	assert.Empty(t, stats.Pending)
	assert.Equal(t, PhaseIdle.String(), stats.Phase)
	for target, row := range stats.Dirty {
		for prop, dirty := range row {
			assert.False(t, dirty, "%s.%s still dirty", target, prop)
		}
	}

	for key, markSeq := range lastMark {
		target, prop := key[:1], key[2:]
		delivered := false
		for _, c := range rec.calls[target] {
			if c.seq > markSeq && contains(c.props, prop) {
				delivered = true
			}
		}
		assert.True(t, delivered, "last mark of %s was never delivered", key)
	}
}

func TestScheduler_BlockedTargetsArePolled(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	require.NoError(t, s.MarkDirty("B", "z"))
	h.RunFrame()
	require.NoError(t, s.MarkDirty("B", "z"))

	h.Advance(3 * frame)
	stats := s.Stats()
	assert.Equal(t, []string{"B"}, stats.Pending)
	assert.Equal(t, []string{"B"}, stats.Blocked)
	assert.Equal(t, 1, h.PendingFrames(), "a blocked target keeps exactly one tick outstanding")
	assert.Len(t, rec.calls["B"], 1)

	summary := s.Metrics().Summary([]string{"B"})
	require.Len(t, summary.PerTarget, 1)
	assert.Equal(t, int64(3), summary.PerTarget[0].Deferrals)
}

func TestScheduler_TargetWithoutHandlers(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("orphan", []string{"p"}))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("orphan", "p"))
	h.RunFrame()

	assert.False(t, s.IsDirty("orphan", "p"))
	assert.False(t, s.IsPending("orphan"))
}

func TestScheduler_Lifecycle(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}))
	assert.Equal(t, StateUninitialized, s.State())

	assert.ErrorIs(t, s.MarkDirty("A", "x"), ErrNotStarted)

	require.NoError(t, s.Start())
	assert.Equal(t, StateReady, s.State())
	assert.ErrorIs(t, s.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, s.Declare("B", []string{"y"}), ErrRegistrySealed)

	require.NoError(t, s.Teardown())
	assert.Equal(t, StateTornDown, s.State())
	assert.NoError(t, s.Teardown(), "teardown is idempotent")
	assert.ErrorIs(t, s.Start(), ErrInvalidTransition)
}

func TestScheduler_TeardownBeforeStart(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.Teardown())
	assert.ErrorIs(t, s.Declare("A", nil), ErrSchedulerTornDown)
}

func TestScheduler_UnknownNames(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}))

	err := s.Bind("evt", "nope", "x")
	assert.ErrorIs(t, err, ErrUnknownTarget)
	var ute *UnknownTargetError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "nope", ute.Target)

	err = s.Bind("evt", "A", "missing")
	assert.ErrorIs(t, err, ErrUnknownProperty)
	var upe *UnknownPropertyError
	require.ErrorAs(t, err, &upe)
	assert.Equal(t, "missing", upe.Property)

	assert.ErrorIs(t, s.Handle("nope", func([]string) error { return nil }), ErrUnknownTarget)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.MarkDirty("nope", "x"), ErrUnknownTarget)
	assert.ErrorIs(t, s.MarkDirty("A", "missing"), ErrUnknownProperty)
	assert.ErrorIs(t, s.MarkTargetDirty("nope"), ErrUnknownTarget)
	assert.ErrorIs(t, s.SetInterval("nope", time.Second), ErrUnknownTarget)
}

func TestScheduler_Teardown(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	require.NoError(t, s.MarkDirty("A", "x"))
	h.RunFrame()
	require.NoError(t, s.MarkDirty("A", "y"))
	require.NoError(t, s.MarkDirty("B", "z"))
	require.Equal(t, 1, h.PendingFrames())
	require.Equal(t, 1, h.PendingTimers())

	require.NoError(t, s.Teardown())

	assert.Equal(t, 0, h.PendingFrames(), "teardown cancels the outstanding tick")
	assert.Equal(t, 0, h.PendingTimers(), "teardown cancels throttle timers")
	assert.Empty(t, s.Stats().Pending)
	assert.Empty(t, s.Stats().Blocked)
	assert.ErrorIs(t, s.MarkDirty("A", "x"), ErrSchedulerTornDown)
	assert.ErrorIs(t, s.Bind("e", "A", "x"), ErrSchedulerTornDown)
	_, err := s.Flush("A")
	assert.ErrorIs(t, err, ErrSchedulerTornDown)

	h.Advance(time.Second)
	assert.Len(t, rec.calls["A"], 1)
	assert.Empty(t, rec.calls["B"])
}

func TestScheduler_TeardownFromHandler(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}))
	require.NoError(t, s.Declare("B", []string{"z"}))
	rec := newRecorder(h)
	require.NoError(t, s.Handle("A", func([]string) error { return s.Teardown() }))
	require.NoError(t, s.Handle("B", rec.handler("B")))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	require.NoError(t, s.MarkDirty("B", "z"))
	h.RunFrame()

	assert.Empty(t, rec.calls["B"])
	assert.Equal(t, 0, h.PendingTimers())
	assert.Equal(t, 0, h.PendingFrames())
}

func TestScheduler_MarkTargetDirty(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	require.NoError(t, s.MarkTargetDirty("A"))
	h.RunFrame()

	require.Len(t, rec.calls["A"], 1)
	assert.Equal(t, []string{"x", "y"}, rec.calls["A"][0].props)
}

func TestScheduler_Flush(t *testing.T) {
	s, h, rec := scenarioScheduler(t)

	ran, err := s.Flush("A")
	require.NoError(t, err)
	assert.True(t, ran)
	require.Len(t, rec.calls["A"], 1)
	assert.Equal(t, []string{"x", "y"}, rec.calls["A"][0].props)
	assert.False(t, s.IsPending("A"))

	ran, err = s.Flush("A")
	require.NoError(t, err)
	assert.False(t, ran, "a throttled target is not flushed")
	assert.True(t, s.IsPending("A"))

	h.Advance(100 * time.Millisecond)
	require.Len(t, rec.calls["A"], 2)
	assert.GreaterOrEqual(t, rec.calls["A"][1].at, 50*time.Millisecond)
}

func TestScheduler_FlushFromOwnHandler(t *testing.T) {
	s, h := newTestScheduler(t)
	require.NoError(t, s.Declare("A", []string{"x"}))

	calls := 0
	require.NoError(t, s.Handle("A", func([]string) error {
		calls++
		ran, err := s.Flush("A")
		assert.NoError(t, err)
		assert.False(t, ran)
		return nil
	}))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	h.RunFrame()
	assert.Equal(t, 1, calls)
	assert.True(t, s.IsPending("A"))
}

func TestScheduler_SetInterval(t *testing.T) {
	s, h, rec := scenarioScheduler(t)
	require.NoError(t, s.SetInterval("B", 20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, s.Interval("B"))

	require.NoError(t, s.MarkDirty("B", "z"))
	h.RunFrame()
	require.NoError(t, s.MarkDirty("B", "z"))
	h.Advance(50 * time.Millisecond)

	require.Len(t, rec.calls["B"], 2)
	assert.Less(t, rec.calls["B"][1].at, 200*time.Millisecond)

	last, ok := s.LastDispatch("B")
	require.True(t, ok)
	assert.Equal(t, mock.Epoch.Add(rec.calls["B"][1].at), last)

	require.NoError(t, s.SetInterval("B", 0))
	assert.Equal(t, DefaultInterval, s.Interval("B"))
}

func TestScheduler_RetryWithBackoff(t *testing.T) {
	policy := FailurePolicy{
		Mode:           RetryWithBackoff,
		MaxRetries:     3,
		InitialBackoff: 20 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
	s, h := newTestScheduler(t, WithFailurePolicy(policy))
	require.NoError(t, s.Declare("A", []string{"x", "y"}, WithInterval(10*time.Millisecond)))

	var seen [][]string
	require.NoError(t, s.Handle("A", func(dirty []string) error {
		seen = append(seen, dirty)
		if len(seen) < 3 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	h.RunFrame()
	h.Advance(500 * time.Millisecond)

	require.Len(t, seen, 3)
	for _, props := range seen {
		assert.Equal(t, []string{"x"}, props)
	}
	summary := s.Metrics().Summary(nil)
	assert.Equal(t, int64(2), summary.TotalRetries)
	assert.Equal(t, int64(2), summary.TotalHandlerFailures)
	assert.Empty(t, s.Stats().Pending)
}

func TestScheduler_RetryGivesUp(t *testing.T) {
	policy := FailurePolicy{
		Mode:           RetryWithBackoff,
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     40 * time.Millisecond,
	}
	s, h := newTestScheduler(t, WithFailurePolicy(policy))
	require.NoError(t, s.Declare("A", []string{"x"}, WithInterval(5*time.Millisecond)))

	calls := 0
	require.NoError(t, s.Handle("A", func([]string) error {
		calls++
		return errors.New("permanent")
	}))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	h.Advance(2 * time.Second)

	assert.Equal(t, 3, calls)
	assert.Empty(t, s.Stats().Pending)
	assert.Equal(t, 0, h.PendingTimers())
}

func TestScheduler_TeardownCancelsRetry(t *testing.T) {
	policy := DefaultFailurePolicy()
	policy.Mode = RetryWithBackoff
	s, h := newTestScheduler(t, WithFailurePolicy(policy))
	require.NoError(t, s.Declare("A", []string{"x"}))
	require.NoError(t, s.Handle("A", func([]string) error { return errors.New("x") }))
	require.NoError(t, s.Start())

	require.NoError(t, s.MarkDirty("A", "x"))
	h.RunFrame()
	require.Equal(t, 2, h.PendingTimers(), "throttle and retry timers")

	require.NoError(t, s.Teardown())
	assert.Equal(t, 0, h.PendingTimers())
}

func TestScheduler_Stats(t *testing.T) {
	s, h, _ := scenarioScheduler(t)

	require.NoError(t, s.MarkDirty("A", "y"))
	stats := s.Stats()
	assert.Equal(t, s.ID(), stats.ID)
	assert.Equal(t, "Ready", stats.State)
	assert.Equal(t, "Requested", stats.Phase)
	assert.Equal(t, []string{"A"}, stats.Pending)
	assert.Equal(t, map[string]bool{"x": false, "y": true}, stats.Dirty["A"])
	assert.Equal(t, map[string]bool{"z": false}, stats.Dirty["B"])
	assert.Empty(t, stats.Blocked)

	// Stats has no side effects
	assert.Equal(t, stats, s.Stats())

	h.RunFrame()
	stats = s.Stats()
	assert.Equal(t, []string{"A"}, stats.Blocked)
	assert.Equal(t, "Idle", stats.Phase)
	require.Len(t, stats.Metrics.PerTarget, 1)
	assert.Equal(t, int64(1), stats.Metrics.PerTarget[0].Dispatches)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
