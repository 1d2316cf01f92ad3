package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"panelsync/pkg/logging"
)

// Wildcard subscribes to every event. Wildcard listeners receive an
// Envelope instead of the bare payload.
const Wildcard = "*"

const (
	// DefaultMaxHistory bounds the emission history.
	DefaultMaxHistory = 100

	// DefaultMaxFailed bounds the failed-listener record.
	DefaultMaxFailed = 50
)

// Envelope is one emitted event as seen by wildcard listeners and history.
type Envelope struct {
	ID      string    `json:"id"`
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// FailedEvent records a listener that panicked while handling an event.
type FailedEvent struct {
	Envelope
	Error string `json:"error"`
}

type listener struct {
	id uint64
	fn func(any)
}

// Message is an event name with its payload.
type Message struct {
	Event   string
	Payload any
}

// Bus is a synchronous publish/subscribe hub. It is safe for concurrent use;
// listeners are invoked on the emitting goroutine, outside the bus lock, so a
// listener may subscribe, unsubscribe or emit.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]listener
	nextID    uint64

	history    []Envelope
	maxHistory int
	failed     []FailedEvent
	maxFailed  int

	queue    []Message
	flushing bool

	now func() time.Time
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxHistory bounds the emission history. Zero disables history.
func WithMaxHistory(n int) Option {
	return func(b *Bus) {
		b.maxHistory = n
	}
}

// WithMaxFailed bounds the failed-listener record.
func WithMaxFailed(n int) Option {
	return func(b *Bus) {
		b.maxFailed = n
	}
}

// WithClock overrides the time source used to stamp envelopes.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		b.now = now
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		listeners:  make(map[string][]listener),
		maxHistory: DefaultMaxHistory,
		maxFailed:  DefaultMaxFailed,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On subscribes fn to event and returns a function that removes the
// subscription. Calling the returned function more than once is harmless.
func (b *Bus) On(event string, fn func(payload any)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[event] = append(b.listeners[event], listener{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.off(event, id)
	}
}

// Once subscribes fn for the next emission of event only.
func (b *Bus) Once(event string, fn func(payload any)) func() {
	var (
		once  sync.Once
		unsub func()
		ready = make(chan struct{})
	)
	unsub = b.On(event, func(payload any) {
		<-ready
		fired := false
		once.Do(func() {
			unsub()
			fired = true
		})
		if fired {
			fn(payload)
		}
	})
	close(ready)
	return unsub
}

// OnMany subscribes fn to each of events. The returned function removes all
// of the subscriptions.
func (b *Bus) OnMany(events []string, fn func(payload any)) func() {
	unsubs := make([]func(), 0, len(events))
	for _, e := range events {
		unsubs = append(unsubs, b.On(e, fn))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (b *Bus) off(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.listeners[event]
	for i, l := range ls {
		if l.id == id {
			// copy so an in-flight Emit keeps its snapshot intact
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			if len(next) == 0 {
				delete(b.listeners, event)
			} else {
				b.listeners[event] = next
			}
			return
		}
	}
}

// Emit delivers payload to every listener of event, then to wildcard
// listeners. A panicking listener is recorded and skipped.
func (b *Bus) Emit(event string, payload any) {
	env := Envelope{
		ID:      uuid.NewString(),
		Event:   event,
		Payload: payload,
	}

	b.mu.Lock()
	env.Time = b.now()
	b.record(env)
	direct := b.listeners[event]
	var wild []listener
	if event != Wildcard {
		wild = b.listeners[Wildcard]
	}
	b.mu.Unlock()

	logging.Debug("EventBus", "Emit %s (%d listeners)", event, len(direct)+len(wild))

	for _, l := range direct {
		b.call(env, l, payload)
	}
	for _, l := range wild {
		b.call(env, l, env)
	}
}

// EmitBatch emits msgs in order, skipping messages without an event name.
func (b *Bus) EmitBatch(msgs ...Message) {
	for _, m := range msgs {
		if m.Event == "" {
			continue
		}
		b.Emit(m.Event, m.Payload)
	}
}

func (b *Bus) call(env Envelope, l listener, arg any) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("listener panic: %v", r)
			logging.Warn("EventBus", "Listener for %s failed: %v", env.Event, err)
			b.trackFailed(env, err)
		}
	}()
	l.fn(arg)
}

func (b *Bus) record(env Envelope) {
	if b.maxHistory <= 0 {
		return
	}
	b.history = append(b.history, env)
	if over := len(b.history) - b.maxHistory; over > 0 {
		b.history = append([]Envelope(nil), b.history[over:]...)
	}
}

func (b *Bus) trackFailed(env Envelope, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxFailed <= 0 {
		return
	}
	b.failed = append(b.failed, FailedEvent{Envelope: env, Error: err.Error()})
	if over := len(b.failed) - b.maxFailed; over > 0 {
		b.failed = append([]FailedEvent(nil), b.failed[over:]...)
	}
}

// History returns recorded emissions, oldest first. A non-empty filter keeps
// only that event.
func (b *Bus) History(filter string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Envelope, 0, len(b.history))
	for _, env := range b.history {
		if filter == "" || env.Event == filter {
			out = append(out, env)
		}
	}
	return out
}

// FailedEvents returns the recorded listener failures, oldest first.
func (b *Bus) FailedEvents() []FailedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]FailedEvent(nil), b.failed...)
}

// ClearFailedEvents drops the failure record.
func (b *Bus) ClearFailedEvents() {
	b.mu.Lock()
	b.failed = nil
	b.mu.Unlock()
}

// Queue defers event until the next Flush.
func (b *Bus) Queue(event string, payload any) {
	b.mu.Lock()
	b.queue = append(b.queue, Message{Event: event, Payload: payload})
	b.mu.Unlock()
}

// Flush emits every queued event and returns how many were emitted. Events
// queued by listeners during a flush wait for the next one; a nested Flush
// returns 0.
func (b *Bus) Flush() int {
	b.mu.Lock()
	if b.flushing || len(b.queue) == 0 {
		b.mu.Unlock()
		return 0
	}
	b.flushing = true
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.flushing = false
		b.mu.Unlock()
	}()

	for _, m := range batch {
		b.Emit(m.Event, m.Payload)
	}
	return len(batch)
}

// QueueLen returns the number of deferred events.
func (b *Bus) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// ClearQueue drops deferred events without emitting them.
func (b *Bus) ClearQueue() {
	b.mu.Lock()
	b.queue = nil
	b.mu.Unlock()
}

// HasListeners reports whether event has at least one listener.
func (b *Bus) HasListeners(event string) bool {
	return b.ListenerCount(event) > 0
}

// ListenerCount returns the number of listeners of event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

// Events returns the names of events with listeners, in no particular order.
func (b *Bus) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.listeners))
	for e := range b.listeners {
		out = append(out, e)
	}
	return out
}

// Clear removes every listener of event, or of all events when event is
// empty.
func (b *Bus) Clear(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event == "" {
		b.listeners = make(map[string][]listener)
		return
	}
	delete(b.listeners, event)
}
