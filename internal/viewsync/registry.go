package viewsync

import (
	"fmt"
	"time"
)

// targetSpec is the static description of one target.
type targetSpec struct {
	name       string
	properties []string
	index      map[string]int
	interval   time.Duration
}

// TargetOption customizes a declaration.
type TargetOption func(*targetSpec)

// WithInterval sets the minimum time between two dispatches of the target.
func WithInterval(d time.Duration) TargetOption {
	return func(t *targetSpec) {
		t.interval = d
	}
}

// Registry holds the declared targets and their property names.
type Registry struct {
	targets map[string]*targetSpec
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		targets: make(map[string]*targetSpec),
	}
}

// Declare registers a target with its properties. Declaring an existing
// target again merges any new properties and re-applies the options.
func (r *Registry) Declare(name string, properties []string, opts ...TargetOption) error {
	if name == "" {
		return fmt.Errorf("target name must not be empty")
	}

	spec, ok := r.targets[name]
	if !ok {
		spec = &targetSpec{
			name:  name,
			index: make(map[string]int),
		}
		r.targets[name] = spec
		r.order = append(r.order, name)
	}

	for _, p := range properties {
		if p == "" {
			return fmt.Errorf("target %q: property name must not be empty", name)
		}
		if _, exists := spec.index[p]; exists {
			continue
		}
		spec.index[p] = len(spec.properties)
		spec.properties = append(spec.properties, p)
	}

	for _, opt := range opts {
		opt(spec)
	}
	return nil
}

// HasTarget reports whether name was declared.
func (r *Registry) HasTarget(name string) bool {
	_, ok := r.targets[name]
	return ok
}

// HasProperty reports whether target declared property.
func (r *Registry) HasProperty(target, property string) bool {
	spec, ok := r.targets[target]
	if !ok {
		return false
	}
	_, ok = spec.index[property]
	return ok
}

// Targets returns target names in declaration order.
func (r *Registry) Targets() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Properties returns the properties of target in declaration order.
func (r *Registry) Properties(target string) ([]string, error) {
	spec, ok := r.targets[target]
	if !ok {
		return nil, &UnknownTargetError{Target: target}
	}
	out := make([]string, len(spec.properties))
	copy(out, spec.properties)
	return out, nil
}

// Interval returns the declared throttle interval of target, or zero when
// none was declared.
func (r *Registry) Interval(target string) time.Duration {
	if spec, ok := r.targets[target]; ok {
		return spec.interval
	}
	return 0
}

// validate returns a typed error for an undeclared target or property.
func (r *Registry) validate(target, property string) error {
	spec, ok := r.targets[target]
	if !ok {
		return &UnknownTargetError{Target: target}
	}
	if _, ok := spec.index[property]; !ok {
		return &UnknownPropertyError{Target: target, Property: property}
	}
	return nil
}

func (r *Registry) spec(target string) (*targetSpec, error) {
	spec, ok := r.targets[target]
	if !ok {
		return nil, &UnknownTargetError{Target: target}
	}
	return spec, nil
}
