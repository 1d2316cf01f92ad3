package eventbus

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_OnEmitOff(t *testing.T) {
	b := New()
	var got []any

	unsub := b.On("player:gold:changed", func(p any) { got = append(got, p) })
	b.Emit("player:gold:changed", 10)
	b.Emit("player:stats:changed", nil)
	assert.Equal(t, []any{10}, got)
	assert.True(t, b.HasListeners("player:gold:changed"))

	unsub()
	unsub()
	b.Emit("player:gold:changed", 20)
	assert.Equal(t, []any{10}, got)
	assert.False(t, b.HasListeners("player:gold:changed"))
	assert.Empty(t, b.Events())
}

func TestBus_Once(t *testing.T) {
	b := New()
	calls := 0
	b.Once("quest:completed", func(any) { calls++ })

	b.Emit("quest:completed", nil)
	b.Emit("quest:completed", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.ListenerCount("quest:completed"))
}

func TestBus_OnceCancelled(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Once("quest:completed", func(any) { calls++ })
	unsub()

	b.Emit("quest:completed", nil)
	assert.Zero(t, calls)
}

func TestBus_OnMany(t *testing.T) {
	b := New()
	var seen []string
	unsub := b.OnMany([]string{"companion:added", "companion:removed"}, func(p any) {
		seen = append(seen, p.(string))
	})

	b.Emit("companion:added", "a")
	b.Emit("companion:removed", "b")
	unsub()
	b.Emit("companion:added", "c")

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestBus_Wildcard(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	b := New(WithClock(func() time.Time { return at }))

	var envs []Envelope
	b.On(Wildcard, func(p any) { envs = append(envs, p.(Envelope)) })

	b.Emit("inventory:item:added", "sword")
	require.Len(t, envs, 1)
	assert.Equal(t, "inventory:item:added", envs[0].Event)
	assert.Equal(t, "sword", envs[0].Payload)
	assert.Equal(t, at, envs[0].Time)
	assert.NotEmpty(t, envs[0].ID)
}

func TestBus_PanickingListener(t *testing.T) {
	b := New(WithMaxFailed(2))
	after := 0

	b.On("evt", func(any) { panic("boom") })
	b.On("evt", func(any) { after++ })

	for i := 0; i < 3; i++ {
		b.Emit("evt", i)
	}

	assert.Equal(t, 3, after, "later listeners still run")
	failed := b.FailedEvents()
	require.Len(t, failed, 2, "the failure list is bounded")
	assert.Equal(t, 1, failed[0].Payload)
	assert.Equal(t, 2, failed[1].Payload)
	assert.Contains(t, failed[0].Error, "boom")

	b.ClearFailedEvents()
	assert.Empty(t, b.FailedEvents())
}

func TestBus_History(t *testing.T) {
	b := New(WithMaxHistory(3))
	b.Emit("a", 1)
	b.Emit("b", 2)
	b.Emit("a", 3)
	b.Emit("a", 4)

	all := b.History("")
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].Event)

	onlyA := b.History("a")
	require.Len(t, onlyA, 2)
	assert.Equal(t, 3, onlyA[0].Payload)
	assert.Equal(t, 4, onlyA[1].Payload)

	none := New(WithMaxHistory(0))
	none.Emit("a", 1)
	assert.Empty(t, none.History(""))
}

func TestBus_QueueFlush(t *testing.T) {
	b := New()
	var got []any
	b.On("evt", func(p any) {
		got = append(got, p)
		if p == 1 {
			b.Queue("evt", 99)
			assert.Zero(t, b.Flush(), "nested flush is a no-op")
		}
	})

	b.Queue("evt", 1)
	b.Queue("evt", 2)
	assert.Equal(t, 2, b.QueueLen())
	assert.Empty(t, got, "queued events wait for Flush")

	assert.Equal(t, 2, b.Flush())
	assert.Equal(t, []any{1, 2}, got)
	assert.Equal(t, 1, b.QueueLen())

	b.ClearQueue()
	assert.Zero(t, b.Flush())
}

func TestBus_EmitBatch(t *testing.T) {
	b := New()
	var seen []string
	b.On(Wildcard, func(p any) { seen = append(seen, p.(Envelope).Event) })

	b.EmitBatch(
		Message{Event: "player:gold:changed", Payload: 5},
		Message{Event: ""},
		Message{Event: "inventory:item:added"},
	)
	assert.Equal(t, []string{"player:gold:changed", "inventory:item:added"}, seen)
}

func TestBus_ClearAndEvents(t *testing.T) {
	b := New()
	b.On("a", func(any) {})
	b.On("a", func(any) {})
	b.On("b", func(any) {})

	events := b.Events()
	sort.Strings(events)
	assert.Equal(t, []string{"a", "b"}, events)
	assert.Equal(t, 2, b.ListenerCount("a"))

	b.Clear("a")
	assert.Equal(t, 0, b.ListenerCount("a"))
	b.Clear("")
	assert.Empty(t, b.Events())
}

func TestBus_UnsubscribeDuringEmit(t *testing.T) {
	b := New()
	calls := 0
	var unsubSecond func()
	b.On("evt", func(any) { unsubSecond() })
	unsubSecond = b.On("evt", func(any) { calls++ })

	b.Emit("evt", nil)
	assert.Equal(t, 1, calls, "the emission snapshot is unaffected")
	b.Emit("evt", nil)
	assert.Equal(t, 1, calls)
}

func TestBus_Concurrent(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0
	b.On("evt", func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Emit("evt", j)
				_ = b.History("evt")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, count)
}
