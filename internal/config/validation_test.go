package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	errs := Validate(GetDefaultConfig(), "")
	assert.False(t, errs.HasErrors(), errs.GetDetailedReport())
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Scheduler.FailurePolicy.Mode = "ignore"
	cfg.Targets = append(cfg.Targets,
		TargetConfig{Name: "inventory", Properties: []string{"items"}},
		TargetConfig{Name: "bank", Interval: -ms(1), Properties: []string{"gold", "gold"}},
		TargetConfig{Name: "has space", Properties: []string{"x"}},
	)
	cfg.Bindings = append(cfg.Bindings,
		BindingConfig{Event: "bank:opened", Marks: []MarkConfig{
			{Target: "vault", Properties: []string{"gold"}},
			{Target: "bank", Properties: []string{"silver"}},
		}},
		BindingConfig{Event: "noop"},
	)

	errs := Validate(cfg, "/etc/panelsync/config.yaml")
	require.True(t, errs.HasErrors())

	fields := make([]string, 0, errs.Count())
	for _, e := range errs.Errors {
		fields = append(fields, e.Field)
		assert.Equal(t, "config.yaml", e.FileName)
		assert.Equal(t, "validation", e.ErrorType)
	}

	assert.Contains(t, fields, "scheduler.failurePolicy.mode")
	assert.Contains(t, fields, "targets[6].name")
	assert.Contains(t, fields, "targets[7].interval")
	assert.Contains(t, fields, "targets[7].properties[1]")
	assert.Contains(t, fields, "targets[8].name")
	assert.Contains(t, fields, "bindings[13].marks[0].target")
	assert.Contains(t, fields, "bindings[13].marks[1].properties[0]")
	assert.Contains(t, fields, "bindings[14].marks")
	assert.Len(t, errs.Errors, 8)
}

func TestValidate_SchedulerBounds(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Scheduler.FrameInterval = 0
	cfg.Scheduler.DefaultInterval = -ms(5)
	cfg.Scheduler.FailurePolicy.MaxRetries = -1
	cfg.Scheduler.FailurePolicy.MaxBackoff = ms(10)

	errs := Validate(cfg, "")
	assert.Equal(t, 4, errs.Count())
	assert.Contains(t, errs.Error(), "4 configuration errors")
	assert.Contains(t, errs.Errors[0].Error(), "[validation] defaults")
}

func TestValidationHelpers(t *testing.T) {
	assert.NoError(t, ValidateEntityName("name", "inventory", "target"))
	assert.Error(t, ValidateEntityName("name", "", "target"))
	assert.Error(t, ValidateEntityName("name", "two words", "target"))

	err := ValidateOneOf("mode", "x", []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, "field 'mode': must be one of: a, b", err.Error())
}

func TestConfigurationError_DetailedReport(t *testing.T) {
	errs := NewConfigurationErrorCollection()
	assert.Equal(t, "No configuration errors to report", errs.GetDetailedReport())

	errs.AddError("/x/config.yaml", "targets[0].name", "duplicate target", "Merge them")
	errs.Add(NewConfigurationErrorWithDetails("/x/config.yaml", "config.yaml", "parse", "bad", "line 3", nil))

	report := errs.GetDetailedReport()
	assert.Contains(t, report, "Field: targets[0].name")
	assert.Contains(t, report, "- Merge them")
	assert.Contains(t, report, "Details: line 3")
	assert.Len(t, errs.GetErrorsByType("parse"), 1)
}
