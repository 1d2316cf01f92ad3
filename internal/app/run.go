package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"panelsync/internal/config"
	"panelsync/internal/host"
	"panelsync/internal/viewsync"
	"panelsync/pkg/logging"
)

// shutdownTimeout bounds how long teardown waits for the loop.
const shutdownTimeout = 5 * time.Second

// Report summarizes a run for the CLI.
type Report struct {
	Scheduler       viewsync.Stats `json:"scheduler"`
	Panels          map[string]int `json:"panels"`
	EventsEmitted   int64          `json:"events_emitted"`
	FailedEvents    int            `json:"failed_events"`
	SimulationSteps int            `json:"simulation_steps"`
	RejectedSteps   int            `json:"rejected_steps"`
}

// Run starts the loop and the scheduler on it, then the simulator and the
// config watcher when configured. It blocks until ctx is done and tears
// everything down in reverse order.
func (a *Application) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- a.loop.Run(loopCtx)
	}()

	if err := a.onLoop(ctx, a.start); err != nil {
		a.running.Store(false)
		a.loop.Stop()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	close(a.ready)

	watcher := a.startWatcher(ctx)
	a.notify(daemon.SdNotifyReady)
	logging.Info("Bootstrap", "Scheduler %s running", a.scheduler.ID())

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-loopDone:
		runErr = err
		if runErr == nil {
			runErr = host.ErrLoopStopped
		}
	}

	logging.Info("Bootstrap", "Shutting down")
	a.notify(daemon.SdNotifyStopping)
	if watcher != nil {
		watcher.Stop()
	}
	a.shutdown()
	return runErr
}

func (a *Application) start() error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	if a.simulator != nil {
		a.simulator.Start()
	}
	return nil
}

func (a *Application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.loop.Call(ctx, func() {
		if a.simulator != nil {
			a.simulator.Stop()
		}
		if err := a.scheduler.Teardown(); err != nil {
			logging.Error("Bootstrap", err, "Scheduler teardown failed")
		}
	})
	if err != nil && !errors.Is(err, host.ErrLoopStopped) {
		logging.Warn("Bootstrap", "Teardown did not complete: %v", err)
	}

	a.running.Store(false)
	a.loop.Stop()
}

// Report collects scheduler stats, panel sync counts and event totals.
func (a *Application) Report(ctx context.Context) (Report, error) {
	var r Report
	err := a.onLoop(ctx, func() error {
		r.Scheduler = a.scheduler.Stats()
		if a.simulator != nil {
			r.SimulationSteps = a.simulator.Steps()
			r.RejectedSteps = a.simulator.Rejected()
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}
	r.Panels = a.panels.Recorder().Counts()
	r.EventsEmitted = a.emitted.Load()
	r.FailedEvents = len(a.bus.FailedEvents())
	return r, nil
}

func (a *Application) startWatcher(ctx context.Context) *config.Watcher {
	if !a.config.Watch {
		return nil
	}
	v, ok := a.caps.Get(CapabilityConfigFile)
	if !ok {
		logging.Warn("ConfigWatcher", "Watch requested but no configuration file is in use")
		return nil
	}

	w := config.NewWatcher(v.(string), config.DefaultReloadDebounce)
	w.OnChange = a.applyReload
	w.OnError = func(err error) {
		logging.Error("ConfigWatcher", err, "Keeping current configuration")
	}
	if err := w.Start(ctx); err != nil {
		logging.Warn("ConfigWatcher", "Cannot watch %s: %v", w.Path(), err)
		return nil
	}
	return w
}

// applyReload hands a reloaded configuration to the loop. Throttle
// intervals are applied; everything else is reported as needing a restart.
func (a *Application) applyReload(next config.PanelsyncConfig) {
	a.loop.Post(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		plan := config.Plan(a.settings, next)
		if plan.Empty() {
			logging.Debug("ConfigWatcher", "Configuration unchanged")
			return
		}
		for _, reason := range plan.RestartRequired {
			logging.Warn("ConfigWatcher", "Restart required to apply: %s", reason)
		}

		names := make([]string, 0, len(plan.Intervals))
		for name := range plan.Intervals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			d := plan.Intervals[name]
			if err := a.scheduler.SetInterval(name, d); err != nil {
				logging.Error("ConfigWatcher", err, "Failed to update interval of %s", name)
				continue
			}
			for i := range a.settings.Targets {
				if a.settings.Targets[i].Name == name {
					a.settings.Targets[i].Interval = config.Duration(d)
				}
			}
			logging.Info("ConfigWatcher", "Interval of %s is now %v", name, d)
		}
		a.settings.Scheduler.DefaultInterval = next.Scheduler.DefaultInterval
	})
}

func (a *Application) notify(state string) {
	if !a.config.Notify {
		return
	}
	if !a.caps.Has(CapabilitySystemd) {
		logging.Debug("Bootstrap", "No notification socket, skipping %q", state)
		return
	}
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Bootstrap", "Service manager notification failed: %v", err)
		return
	}
	logging.Debug("Bootstrap", "Notified service manager %q (sent=%v)", state, sent)
}
