package viewsync

import (
	"errors"

	"panelsync/pkg/logging"
)

// binding states that an event makes some properties of a target stale.
type binding struct {
	target     string
	properties []string
}

// router maps incoming events to dirty marks. It never invokes a sync
// handler, so delivery cost is proportional to the number of bound
// properties.
type router struct {
	registry *Registry
	mark     func(target, property string) error

	bindings map[string][]binding
	events   []string

	source EventSource
	unsubs map[string]func()
}

func newRouter(registry *Registry, mark func(target, property string) error) *router {
	return &router{
		registry: registry,
		mark:     mark,
		bindings: make(map[string][]binding),
		unsubs:   make(map[string]func()),
	}
}

// bind validates the target and properties, then records the binding.
// When a source is attached the event is subscribed immediately.
func (r *router) bind(event, target string, properties []string) error {
	if event == "" {
		return errors.New("event name must not be empty")
	}
	if !r.registry.HasTarget(target) {
		return &UnknownTargetError{Target: target}
	}
	for _, p := range properties {
		if err := r.registry.validate(target, p); err != nil {
			return err
		}
	}

	props := make([]string, len(properties))
	copy(props, properties)

	if _, known := r.bindings[event]; !known {
		r.events = append(r.events, event)
	}
	r.bindings[event] = append(r.bindings[event], binding{target: target, properties: props})

	if r.source != nil {
		r.subscribe(event)
	}

	logging.Debug("Router", "Bound %s -> %s%v", event, target, props)
	return nil
}

// deliver marks every property bound to event.
func (r *router) deliver(event string, _ any) {
	bs, ok := r.bindings[event]
	if !ok {
		logging.Debug("Router", "No bindings for event %s", event)
		return
	}

	for _, b := range bs {
		for _, p := range b.properties {
			if err := r.mark(b.target, p); err != nil {
				if errors.Is(err, ErrSchedulerTornDown) {
					logging.Debug("Router", "Dropping %s after teardown", event)
					return
				}
				logging.Warn("Router", "Failed to mark %s.%s for %s: %v", b.target, p, event, err)
			}
		}
	}
}

// attach subscribes every bound event on source.
func (r *router) attach(source EventSource) {
	r.source = source
	for _, event := range r.events {
		r.subscribe(event)
	}
}

func (r *router) subscribe(event string) {
	if _, done := r.unsubs[event]; done {
		return
	}
	r.unsubs[event] = r.source.On(event, func(payload any) {
		r.deliver(event, payload)
	})
}

// detach removes every subscription.
func (r *router) detach() {
	for event, unsub := range r.unsubs {
		unsub()
		delete(r.unsubs, event)
	}
	r.source = nil
}

// eventNames returns bound event names in first-bind order.
func (r *router) eventNames() []string {
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}
