package config

import (
	"fmt"
	"reflect"
	"time"
)

// ReloadPlan describes how a reloaded configuration differs from the one in
// effect. Intervals can be applied to a running scheduler; everything in
// RestartRequired needs a restart because the target registry is sealed.
type ReloadPlan struct {
	Intervals       map[string]time.Duration
	RestartRequired []string
}

// Empty reports whether the plan has nothing to do.
func (p ReloadPlan) Empty() bool {
	return len(p.Intervals) == 0 && len(p.RestartRequired) == 0
}

// Plan compares current with next. A target whose interval is unset in next
// resolves to next's scheduler.defaultInterval.
func Plan(current, next PanelsyncConfig) ReloadPlan {
	plan := ReloadPlan{Intervals: make(map[string]time.Duration)}

	effective := func(cfg PanelsyncConfig, t TargetConfig) time.Duration {
		if t.Interval > 0 {
			return t.Interval.Std()
		}
		return cfg.Scheduler.DefaultInterval.Std()
	}

	for _, nt := range next.Targets {
		ct, ok := current.Target(nt.Name)
		if !ok {
			plan.RestartRequired = append(plan.RestartRequired, fmt.Sprintf("target %q added", nt.Name))
			continue
		}
		if !reflect.DeepEqual(ct.Properties, nt.Properties) {
			plan.RestartRequired = append(plan.RestartRequired, fmt.Sprintf("properties of %q changed", nt.Name))
		}
		if before, after := effective(current, ct), effective(next, nt); before != after {
			plan.Intervals[nt.Name] = after
		}
	}
	for _, ct := range current.Targets {
		if _, ok := next.Target(ct.Name); !ok {
			plan.RestartRequired = append(plan.RestartRequired, fmt.Sprintf("target %q removed", ct.Name))
		}
	}

	if !reflect.DeepEqual(current.Bindings, next.Bindings) {
		plan.RestartRequired = append(plan.RestartRequired, "bindings changed")
	}
	if current.Scheduler.FrameInterval != next.Scheduler.FrameInterval {
		plan.RestartRequired = append(plan.RestartRequired, "scheduler.frameInterval changed")
	}
	if current.Scheduler.FailurePolicy != next.Scheduler.FailurePolicy {
		plan.RestartRequired = append(plan.RestartRequired, "scheduler.failurePolicy changed")
	}
	return plan
}
