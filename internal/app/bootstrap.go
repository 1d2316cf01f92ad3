package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"panelsync/internal/config"
	"panelsync/internal/eventbus"
	"panelsync/internal/host"
	"panelsync/internal/panels"
	"panelsync/internal/viewsync"
	"panelsync/internal/world"
	"panelsync/pkg/logging"
)

// characterName names the demonstration world's player.
const characterName = "Wanderer"

var (
	// ErrNotRunning is returned by operations that need the loop while Run
	// is not active.
	ErrNotRunning = errors.New("application is not running")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("application is already running")
)

// Application wires the scheduler to its host loop, event bus, demonstration
// world and panels, and runs them until its context ends.
//
// The application follows a two-phase pattern:
//  1. Bootstrap phase: load configuration, declare targets, bind events,
//     register panels
//  2. Execution phase: run the loop and start the scheduler on it
//
// Example usage:
//
//	cfg := app.NewConfig(false, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config *Config
	path   string

	mu       sync.Mutex
	settings config.PanelsyncConfig

	loop      *host.Loop
	bus       *eventbus.Bus
	scheduler *viewsync.Scheduler
	world     *world.World
	panels    *panels.Set
	simulator *world.Simulator
	caps      *Capabilities

	emitted atomic.Int64
	running atomic.Bool
	ready   chan struct{}
}

// NewApplication loads the panelsync configuration, unless cfg already
// carries one, and bootstraps the application from it.
//
// Configuration Loading Behavior:
//   - If cfg.PanelsyncConfig is set: it is used as is
//   - If cfg.ConfigPath is set: that file must exist and be valid
//   - Otherwise: the user config file, falling back to built-in defaults
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.PanelsyncConfig != nil {
		return Bootstrap(cfg, *cfg.PanelsyncConfig, cfg.ConfigPath)
	}

	settings, path, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load panelsync configuration")
		return nil, fmt.Errorf("failed to load panelsync configuration: %w", err)
	}
	if path != "" {
		logging.Info("Bootstrap", "Loaded configuration from %s", path)
	} else {
		logging.Info("Bootstrap", "Using built-in configuration")
	}
	return Bootstrap(cfg, settings, path)
}

// Bootstrap builds every component from settings. path is the file the
// settings came from, or empty for defaults; it is watched when cfg.Watch
// is set.
func Bootstrap(cfg *Config, settings config.PanelsyncConfig, path string) (*Application, error) {
	settings.Targets = append([]config.TargetConfig(nil), settings.Targets...)

	a := &Application{
		config:   cfg,
		path:     path,
		settings: settings,
		loop:     host.NewLoop(settings.Scheduler.FrameInterval.Std()),
		bus:      eventbus.New(),
		caps:     NewCapabilities(),
		ready:    make(chan struct{}),
	}

	a.caps.Provide(CapabilityFrames, a.loop)
	a.caps.Provide(CapabilityEventSource, a.bus)
	detectEnvironment(a.caps, path)
	if err := a.caps.Require(CapabilityFrames, CapabilityEventSource); err != nil {
		return nil, err
	}
	logging.Debug("Bootstrap", "Capabilities: %v", a.caps.List())

	a.bus.On(eventbus.Wildcard, func(any) {
		a.emitted.Add(1)
	})

	a.scheduler = viewsync.New(a.loop, SchedulerOptions(settings, a.bus)...)
	if err := declare(a.scheduler, settings); err != nil {
		logging.Error("Bootstrap", err, "Failed to declare targets")
		return nil, err
	}

	a.world = world.New(characterName, a.bus)
	a.world.SeedMarket()

	set, err := panels.NewSet(settings.Targets, a.world, cfg.PanelOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to build panels: %w", err)
	}
	if err := set.Register(a.scheduler); err != nil {
		return nil, err
	}
	a.panels = set

	if cfg.SimulationRate > 0 {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		a.simulator = world.NewSimulator(a.world, a.loop, cfg.SimulationRate, rand.New(rand.NewSource(seed)))
		logging.Debug("Bootstrap", "Simulation at %.1f mutations/s, seed %d", cfg.SimulationRate, seed)
	}

	logging.Info("Bootstrap", "Scheduler %s: %d targets, %d events bound",
		a.scheduler.ID(), len(settings.Targets), len(a.scheduler.Events()))
	return a, nil
}

// SchedulerOptions maps the scheduler section of settings to scheduler
// options, routing events from src.
func SchedulerOptions(settings config.PanelsyncConfig, src viewsync.EventSource) []viewsync.Option {
	return []viewsync.Option{
		viewsync.WithDefaultInterval(settings.Scheduler.DefaultInterval.Std()),
		viewsync.WithFailurePolicy(FailurePolicy(settings.Scheduler.FailurePolicy)),
		viewsync.WithEventSource(src),
	}
}

// FailurePolicy converts the configured policy. Unset backoff values keep
// the scheduler's defaults.
func FailurePolicy(c config.FailurePolicyConfig) viewsync.FailurePolicy {
	p := viewsync.DefaultFailurePolicy()
	if c.Mode == config.FailureModeRetry {
		p.Mode = viewsync.RetryWithBackoff
	}
	p.MaxRetries = c.MaxRetries
	if c.InitialBackoff > 0 {
		p.InitialBackoff = c.InitialBackoff.Std()
	}
	if c.MaxBackoff > 0 {
		p.MaxBackoff = c.MaxBackoff.Std()
	}
	return p
}

func declare(s *viewsync.Scheduler, settings config.PanelsyncConfig) error {
	for _, t := range settings.Targets {
		var opts []viewsync.TargetOption
		if t.Interval > 0 {
			opts = append(opts, viewsync.WithInterval(t.Interval.Std()))
		}
		if err := s.Declare(t.Name, t.Properties, opts...); err != nil {
			return fmt.Errorf("declare %s: %w", t.Name, err)
		}
	}
	for _, b := range settings.Bindings {
		for _, m := range b.Marks {
			if err := s.Bind(b.Event, m.Target, m.Properties...); err != nil {
				return fmt.Errorf("bind %s: %w", b.Event, err)
			}
		}
	}
	return nil
}

// Capabilities returns the detected capabilities.
func (a *Application) Capabilities() *Capabilities {
	return a.caps
}

// Panels returns the panel set.
func (a *Application) Panels() *panels.Set {
	return a.panels
}

// Bus returns the event bus.
func (a *Application) Bus() *eventbus.Bus {
	return a.bus
}

// Settings returns the configuration in effect, including reloaded
// intervals.
func (a *Application) Settings() config.PanelsyncConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// Ready is closed once the scheduler has started.
func (a *Application) Ready() <-chan struct{} {
	return a.ready
}

// Emit publishes event on the bus from the loop goroutine.
func (a *Application) Emit(ctx context.Context, event string, payload any) error {
	return a.onLoop(ctx, func() error {
		a.bus.Emit(event, payload)
		return nil
	})
}

// MarkDirty marks one property of target stale.
func (a *Application) MarkDirty(ctx context.Context, target, property string) error {
	return a.onLoop(ctx, func() error {
		return a.scheduler.MarkDirty(target, property)
	})
}

// MarkTargetDirty marks every property of target stale.
func (a *Application) MarkTargetDirty(ctx context.Context, target string) error {
	return a.onLoop(ctx, func() error {
		return a.scheduler.MarkTargetDirty(target)
	})
}

// Flush forces an update of target. It reports whether the target was
// dispatched immediately.
func (a *Application) Flush(ctx context.Context, target string) (bool, error) {
	var dispatched bool
	err := a.onLoop(ctx, func() error {
		var err error
		dispatched, err = a.scheduler.Flush(target)
		return err
	})
	return dispatched, err
}

// Stats reads the scheduler's debug surface on the loop.
func (a *Application) Stats(ctx context.Context) (viewsync.Stats, error) {
	var stats viewsync.Stats
	err := a.onLoop(ctx, func() error {
		stats = a.scheduler.Stats()
		return nil
	})
	return stats, err
}

func (a *Application) onLoop(ctx context.Context, fn func() error) error {
	if !a.running.Load() {
		return ErrNotRunning
	}
	var err error
	if callErr := a.loop.Call(ctx, func() { err = fn() }); callErr != nil {
		return callErr
	}
	return err
}
