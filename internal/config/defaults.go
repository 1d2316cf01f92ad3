package config

import "time"

const (
	// DefaultFrameInterval is the host frame cadence.
	DefaultFrameInterval = 16 * time.Millisecond

	// DefaultThrottleInterval applies to targets without an interval.
	DefaultThrottleInterval = 100 * time.Millisecond
)

func ms(n int) Duration {
	return Duration(time.Duration(n) * time.Millisecond)
}

// GetDefaultConfig returns the built-in panel set with its event wiring.
func GetDefaultConfig() PanelsyncConfig {
	return PanelsyncConfig{
		Scheduler: SchedulerConfig{
			FrameInterval:   Duration(DefaultFrameInterval),
			DefaultInterval: Duration(DefaultThrottleInterval),
			FailurePolicy: FailurePolicyConfig{
				Mode:           FailureModeFailOpen,
				MaxRetries:     3,
				InitialBackoff: ms(250),
				MaxBackoff:     Duration(5 * time.Second),
			},
		},
		Targets: []TargetConfig{
			{Name: "inventory", Interval: ms(50), Properties: []string{"items", "gold", "weight", "equipped"}},
			{Name: "equipment", Interval: ms(50), Properties: []string{"slots", "stats"}},
			{Name: "playerInfo", Interval: ms(100), Properties: []string{"stats", "gold", "level"}},
			{Name: "party", Interval: ms(200), Properties: []string{"members", "stats"}},
			{Name: "market", Interval: ms(100), Properties: []string{"prices", "stock"}},
			{Name: "quests", Interval: ms(300), Properties: []string{"list", "tracker"}},
		},
		Bindings: []BindingConfig{
			{Event: "inventory:item:added", Marks: []MarkConfig{
				{Target: "inventory", Properties: []string{"items", "weight"}},
				{Target: "playerInfo", Properties: []string{"gold"}},
			}},
			{Event: "inventory:item:removed", Marks: []MarkConfig{
				{Target: "inventory", Properties: []string{"items", "weight"}},
			}},
			{Event: "player:equipment:changed", Marks: []MarkConfig{
				{Target: "equipment", Properties: []string{"slots", "stats"}},
				{Target: "inventory", Properties: []string{"equipped"}},
				{Target: "playerInfo", Properties: []string{"stats"}},
			}},
			{Event: "player:gold:changed", Marks: []MarkConfig{
				{Target: "inventory", Properties: []string{"gold"}},
				{Target: "playerInfo", Properties: []string{"gold"}},
			}},
			{Event: "player:stats:changed", Marks: []MarkConfig{
				{Target: "playerInfo", Properties: []string{"stats"}},
			}},
			{Event: "player:level:changed", Marks: []MarkConfig{
				{Target: "playerInfo", Properties: []string{"level", "stats"}},
			}},
			{Event: "quest:started", Marks: []MarkConfig{
				{Target: "quests", Properties: []string{"list"}},
			}},
			{Event: "quest:completed", Marks: []MarkConfig{
				{Target: "quests", Properties: []string{"list"}},
			}},
			{Event: "quest:progress", Marks: []MarkConfig{
				{Target: "quests", Properties: []string{"tracker"}},
			}},
			{Event: "companion:added", Marks: []MarkConfig{
				{Target: "party", Properties: []string{"members"}},
			}},
			{Event: "companion:removed", Marks: []MarkConfig{
				{Target: "party", Properties: []string{"members"}},
			}},
			{Event: "market:prices:changed", Marks: []MarkConfig{
				{Target: "market", Properties: []string{"prices"}},
			}},
			{Event: "market:stock:changed", Marks: []MarkConfig{
				{Target: "market", Properties: []string{"stock"}},
			}},
		},
	}
}

// applyDefaults fills unset scheduler fields from GetDefaultConfig.
func applyDefaults(cfg *PanelsyncConfig) {
	def := GetDefaultConfig().Scheduler
	s := &cfg.Scheduler
	if s.FrameInterval == 0 {
		s.FrameInterval = def.FrameInterval
	}
	if s.DefaultInterval == 0 {
		s.DefaultInterval = def.DefaultInterval
	}
	p := &s.FailurePolicy
	if p.Mode == "" {
		p.Mode = def.FailurePolicy.Mode
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = def.FailurePolicy.MaxRetries
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = def.FailurePolicy.InitialBackoff
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = def.FailurePolicy.MaxBackoff
	}
}
