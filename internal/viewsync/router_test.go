package viewsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory EventSource.
type fakeSource struct {
	subs   map[string][]func(any)
	unsubs int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[string][]func(any))}
}

func (f *fakeSource) On(event string, handler func(payload any)) func() {
	f.subs[event] = append(f.subs[event], handler)
	idx := len(f.subs[event]) - 1
	return func() {
		f.subs[event][idx] = nil
		f.unsubs++
	}
}

func (f *fakeSource) emit(event string, payload any) {
	for _, h := range f.subs[event] {
		if h != nil {
			h(payload)
		}
	}
}

func (f *fakeSource) listeners(event string) int {
	n := 0
	for _, h := range f.subs[event] {
		if h != nil {
			n++
		}
	}
	return n
}

type markCall struct{ target, property string }

func newTestRouter(t *testing.T) (*router, *[]markCall) {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Declare("inventory", []string{"items", "gold", "weight"}))
	require.NoError(t, r.Declare("playerInfo", []string{"gold", "stats"}))

	var marks []markCall
	rt := newRouter(r, func(target, property string) error {
		marks = append(marks, markCall{target, property})
		return nil
	})
	return rt, &marks
}

func TestRouter_BindValidation(t *testing.T) {
	rt, _ := newTestRouter(t)

	assert.Error(t, rt.bind("", "inventory", []string{"gold"}))
	assert.ErrorIs(t, rt.bind("evt", "bank", []string{"gold"}), ErrUnknownTarget)
	assert.ErrorIs(t, rt.bind("evt", "inventory", []string{"gold", "mana"}), ErrUnknownProperty)
	assert.Empty(t, rt.eventNames(), "rejected bindings are not recorded")
}

func TestRouter_Deliver(t *testing.T) {
	rt, marks := newTestRouter(t)
	require.NoError(t, rt.bind("inventory:item:added", "inventory", []string{"items", "weight"}))
	require.NoError(t, rt.bind("inventory:item:added", "playerInfo", []string{"gold"}))
	require.NoError(t, rt.bind("player:gold:changed", "inventory", []string{"gold"}))

	rt.deliver("inventory:item:added", map[string]any{"item": "sword"})
	assert.Equal(t, []markCall{
		{"inventory", "items"},
		{"inventory", "weight"},
		{"playerInfo", "gold"},
	}, *marks)

	*marks = nil
	rt.deliver("unbound", nil)
	assert.Empty(t, *marks)

	assert.Equal(t, []string{"inventory:item:added", "player:gold:changed"}, rt.eventNames())
}

func TestRouter_DeliverStopsAfterTeardown(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("a", []string{"x", "y"}))
	calls := 0
	rt := newRouter(r, func(string, string) error {
		calls++
		return ErrSchedulerTornDown
	})
	require.NoError(t, rt.bind("evt", "a", []string{"x", "y"}))

	rt.deliver("evt", nil)
	assert.Equal(t, 1, calls)
}

func TestRouter_AttachDetach(t *testing.T) {
	rt, marks := newTestRouter(t)
	src := newFakeSource()

	require.NoError(t, rt.bind("player:gold:changed", "inventory", []string{"gold"}))
	require.NoError(t, rt.bind("player:gold:changed", "playerInfo", []string{"gold"}))
	rt.attach(src)
	assert.Equal(t, 1, src.listeners("player:gold:changed"), "one subscription per event")

	require.NoError(t, rt.bind("player:stats:changed", "playerInfo", []string{"stats"}))
	assert.Equal(t, 1, src.listeners("player:stats:changed"), "late bindings subscribe immediately")

	src.emit("player:gold:changed", 10)
	src.emit("player:stats:changed", nil)
	assert.Len(t, *marks, 3)

	rt.detach()
	assert.Equal(t, 2, src.unsubs)
	src.emit("player:gold:changed", 20)
	assert.Len(t, *marks, 3)
}

func TestScheduler_EventSource(t *testing.T) {
	src := newFakeSource()
	s, h := newTestScheduler(t, WithEventSource(src))
	require.NoError(t, s.Declare("quests", []string{"list", "tracker"}))
	require.NoError(t, s.Bind("quest:progress", "quests", "tracker"))
	require.NoError(t, s.Bind("quest:started", "quests", "list"))
	require.NoError(t, s.Bind("quest:started", "quests", "list"))

	var got [][]string
	require.NoError(t, s.Handle("quests", func(dirty []string) error {
		got = append(got, dirty)
		return nil
	}))

	src.emit("quest:started", nil)
	assert.False(t, s.IsPending("quests"), "the source is not attached before Start")

	require.NoError(t, s.Start())
	src.emit("quest:started", nil)
	src.emit("quest:progress", nil)
	h.RunFrame()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"list", "tracker"}, got[0])
	assert.Equal(t, []string{"quest:progress", "quest:started"}, s.Events())

	require.NoError(t, s.Teardown())
	assert.Equal(t, 2, src.unsubs)
}

func TestScheduler_Deliver(t *testing.T) {
	s, h, rec := scenarioScheduler(t)
	require.NoError(t, s.Bind("refresh", "A", "y"))

	s.Deliver("refresh", nil)
	h.RunFrame()
	require.Len(t, rec.calls["A"], 1)
	assert.Equal(t, []string{"y"}, rec.calls["A"][0].props)

	require.NoError(t, s.Teardown())
	s.Deliver("refresh", nil)
	h.Advance(time.Second)
	assert.Len(t, rec.calls["A"], 1, "events after teardown are dropped")
}
