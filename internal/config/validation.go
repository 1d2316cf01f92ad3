package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateEntityName validates that a target, property or event name
// follows naming conventions.
func ValidateEntityName(field, name, entityType string) error {
	if err := ValidateRequired(field, name, entityType); err != nil {
		return err
	}

	if len(name) > 100 {
		return ValidationError{
			Field:   field,
			Value:   name,
			Message: "must not exceed 100 characters",
		}
	}

	if strings.ContainsAny(name, " \t\n") {
		return ValidationError{
			Field:   field,
			Value:   name,
			Message: "cannot contain whitespace",
		}
	}

	return nil
}

// Validate checks cfg and reports every problem found. path is only used
// to label the errors.
func Validate(cfg PanelsyncConfig, path string) *ConfigurationErrorCollection {
	errs := NewConfigurationErrorCollection()
	add := func(err error, suggestions ...string) {
		if ve, ok := err.(ValidationError); ok {
			errs.AddError(path, ve.Field, ve.Message, suggestions...)
			return
		}
		errs.AddError(path, "", err.Error(), suggestions...)
	}

	s := cfg.Scheduler
	if s.FrameInterval <= 0 {
		errs.AddError(path, "scheduler.frameInterval", "must be positive")
	}
	if s.DefaultInterval <= 0 {
		errs.AddError(path, "scheduler.defaultInterval", "must be positive")
	}

	p := s.FailurePolicy
	if err := ValidateOneOf("scheduler.failurePolicy.mode", p.Mode,
		[]string{FailureModeFailOpen, FailureModeRetry}); err != nil {
		add(err)
	}
	if p.MaxRetries < 0 {
		errs.AddError(path, "scheduler.failurePolicy.maxRetries", "must not be negative")
	}
	if p.InitialBackoff <= 0 {
		errs.AddError(path, "scheduler.failurePolicy.initialBackoff", "must be positive")
	}
	if p.MaxBackoff < p.InitialBackoff {
		errs.AddError(path, "scheduler.failurePolicy.maxBackoff", "must not be less than initialBackoff")
	}

	targets := make(map[string]map[string]bool, len(cfg.Targets))
	for i, t := range cfg.Targets {
		field := fmt.Sprintf("targets[%d]", i)
		if err := ValidateEntityName(field+".name", t.Name, "target"); err != nil {
			add(err)
			continue
		}
		if _, dup := targets[t.Name]; dup {
			errs.AddError(path, field+".name", fmt.Sprintf("duplicate target %q", t.Name),
				"Merge the property lists into one target entry")
			continue
		}
		if t.Interval < 0 {
			errs.AddError(path, field+".interval", "must not be negative",
				"Omit interval to use scheduler.defaultInterval")
		}
		if len(t.Properties) == 0 {
			errs.AddError(path, field+".properties", fmt.Sprintf("target %q declares no properties", t.Name))
		}

		props := make(map[string]bool, len(t.Properties))
		for j, prop := range t.Properties {
			pf := fmt.Sprintf("%s.properties[%d]", field, j)
			if err := ValidateEntityName(pf, prop, "property"); err != nil {
				add(err)
				continue
			}
			if props[prop] {
				errs.AddError(path, pf, fmt.Sprintf("duplicate property %q on target %q", prop, t.Name))
			}
			props[prop] = true
		}
		targets[t.Name] = props
	}

	for i, b := range cfg.Bindings {
		field := fmt.Sprintf("bindings[%d]", i)
		if err := ValidateEntityName(field+".event", b.Event, "binding"); err != nil {
			add(err)
		}
		if len(b.Marks) == 0 {
			errs.AddError(path, field+".marks", fmt.Sprintf("event %q marks nothing", b.Event))
		}
		for j, m := range b.Marks {
			mf := fmt.Sprintf("%s.marks[%d]", field, j)
			props, ok := targets[m.Target]
			if !ok {
				errs.AddError(path, mf+".target", fmt.Sprintf("unknown target %q", m.Target),
					"Declare the target under targets or fix the name")
				continue
			}
			if len(m.Properties) == 0 {
				errs.AddError(path, mf+".properties", "at least one property is required")
			}
			for k, prop := range m.Properties {
				if !props[prop] {
					errs.AddError(path, fmt.Sprintf("%s.properties[%d]", mf, k),
						fmt.Sprintf("unknown property %q on target %q", prop, m.Target))
				}
			}
		}
	}

	return errs
}
