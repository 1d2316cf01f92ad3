package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"panelsync/pkg/logging"
)

// DefaultReloadDebounce is how long the watcher waits for further writes
// before re-reading the file.
const DefaultReloadDebounce = 200 * time.Millisecond

// Watcher re-reads the configuration file when it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// editors that save by renaming a temporary file are picked up. Only valid
// configurations are passed to OnChange; invalid ones go to OnError and the
// previous configuration stays in effect.
type Watcher struct {
	mu sync.Mutex

	path     string
	debounce time.Duration

	// OnChange receives every successfully parsed configuration.
	OnChange func(PanelsyncConfig)

	// OnError receives read and validation errors.
	OnError func(error)

	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for path. A zero debounce selects
// DefaultReloadDebounce.
func NewWatcher(path string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
	}
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}

	w.watcher = fw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.processEvents(ctx)

	logging.Info("ConfigWatcher", "Watching %s for changes", w.path)
	return nil
}

// Stop ends watching and waits for the event goroutine to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.watcher.Close()
	logging.Debug("ConfigWatcher", "Stopped watching %s", w.path)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("ConfigWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	logging.Debug("ConfigWatcher", "Change detected: %s", event)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) cancelPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	running := w.running
	w.timer = nil
	w.mu.Unlock()
	if !running {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		// renamed away mid-save; the follow-up Create triggers another reload
		logging.Debug("ConfigWatcher", "Skipping reload of %s: %v", w.path, err)
		return
	}

	cfg, err := Parse(data, w.path)
	if err != nil {
		logging.Warn("ConfigWatcher", "Ignoring invalid configuration: %v", err)
		if w.OnError != nil {
			w.OnError(err)
		}
		return
	}

	logging.Info("ConfigWatcher", "Reloaded configuration from %s", w.path)
	if w.OnChange != nil {
		w.OnChange(cfg)
	}
}
