package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// PanelsyncConfig is the top-level configuration structure for panelsync.
type PanelsyncConfig struct {
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Targets   []TargetConfig  `yaml:"targets" json:"targets"`
	Bindings  []BindingConfig `yaml:"bindings" json:"bindings"`
}

// SchedulerConfig holds scheduler-wide settings.
type SchedulerConfig struct {
	// Host frame cadence (default: 16ms)
	FrameInterval   Duration            `yaml:"frameInterval,omitempty" json:"frameInterval,omitempty"`
	// Throttle window for targets without one (default: 100ms)
	DefaultInterval Duration            `yaml:"defaultInterval,omitempty" json:"defaultInterval,omitempty"`
	FailurePolicy   FailurePolicyConfig `yaml:"failurePolicy,omitempty" json:"failurePolicy,omitempty"`
}

// Failure policy modes accepted in configuration.
const (
	FailureModeFailOpen = "fail-open"
	FailureModeRetry    = "retry"
)

// FailurePolicyConfig selects what happens when a sync handler fails.
type FailurePolicyConfig struct {
	Mode           string   `yaml:"mode,omitempty" json:"mode,omitempty"`
	MaxRetries     int      `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
	InitialBackoff Duration `yaml:"initialBackoff,omitempty" json:"initialBackoff,omitempty"`
	MaxBackoff     Duration `yaml:"maxBackoff,omitempty" json:"maxBackoff,omitempty"`
}

// TargetConfig declares one display target.
type TargetConfig struct {
	Name       string   `yaml:"name" json:"name"`
	Interval   Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Properties []string `yaml:"properties" json:"properties"`
}

// BindingConfig maps one event to the properties it invalidates.
type BindingConfig struct {
	Event string       `yaml:"event" json:"event"`
	Marks []MarkConfig `yaml:"marks" json:"marks"`
}

// MarkConfig names properties of one target.
type MarkConfig struct {
	Target     string   `yaml:"target" json:"target"`
	Properties []string `yaml:"properties" json:"properties"`
}

// Target returns the target named name.
func (c PanelsyncConfig) Target(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// Duration is a time.Duration written as a Go duration string ("50ms").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts a duration string, or an integer number of
// milliseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if value.Tag == "!!int" {
		var ms int64
		if err := value.Decode(&ms); err != nil {
			return err
		}
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON writes the duration string, so JSON and YAML output agree.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", time.Duration(d).String())), nil
}
