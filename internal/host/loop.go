package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"panelsync/pkg/logging"
)

var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("loop is already running")

	// ErrLoopStopped is returned when work is submitted to a stopped loop.
	ErrLoopStopped = errors.New("loop has been stopped")
)

// defaultTaskBuffer bounds how many posted tasks may wait for the loop.
const defaultTaskBuffer = 1024

// Loop is a single-goroutine event loop implementing Host.
//
// Timers are backed by time.AfterFunc and re-posted into the loop when they
// fire; frame callbacks are run on every tick of a ticker at the configured
// frame interval. AfterFunc, RequestFrame and the returned Cancel functions
// must be called on the loop goroutine. Post and Call are safe from any
// goroutine.
type Loop struct {
	frameInterval time.Duration

	tasks    chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// Owned by the loop goroutine.
	frames []*scheduled
	timers map[*scheduled]*time.Timer
}

// scheduled is one pending callback.
type scheduled struct {
	fn        func()
	cancelled bool
}

// NewLoop creates a loop. A non-positive frameInterval selects
// DefaultFrameInterval.
func NewLoop(frameInterval time.Duration) *Loop {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	return &Loop{
		frameInterval: frameInterval,
		tasks:         make(chan func(), defaultTaskBuffer),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
		timers:        make(map[*scheduled]*time.Timer),
	}
}

// FrameInterval returns the presentation cycle length.
func (l *Loop) FrameInterval() time.Duration {
	return l.frameInterval
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules fn to run on the loop after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Cancel {
	s := &scheduled{fn: fn}
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if s.cancelled {
				return
			}
			delete(l.timers, s)
			s.fn()
		})
	})
	l.timers[s] = t
	return func() {
		if s.cancelled {
			return
		}
		s.cancelled = true
		t.Stop()
		delete(l.timers, s)
	}
}

// RequestFrame schedules fn to run on the next frame tick.
func (l *Loop) RequestFrame(fn func()) Cancel {
	s := &scheduled{fn: fn}
	l.frames = append(l.frames, s)
	return func() {
		s.cancelled = true
	}
}

// Post submits fn to run on the loop. It returns false if the loop has been
// stopped. Post must not be called from the loop goroutine while the task
// buffer is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopCh:
		return false
	default:
	}

	select {
	case l.tasks <- fn:
		return true
	case <-l.stopCh:
		return false
	}
}

// Call runs fn on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.doneCh:
		// The task may have run just before the loop exited.
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Run processes tasks, timers and frames until ctx is cancelled or Stop is
// called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer close(l.doneCh)

	ticker := time.NewTicker(l.frameInterval)
	defer ticker.Stop()

	logging.Debug("Loop", "Started with frame interval %v", l.frameInterval)

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case <-l.stopCh:
			l.shutdown()
			return nil
		case fn := <-l.tasks:
			l.exec(fn)
		case <-ticker.C:
			l.runFrames()
		}
	}
}

// Stop terminates the loop and waits for Run to return if it is running.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	if l.running.Load() {
		<-l.doneCh
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

func (l *Loop) runFrames() {
	if len(l.frames) == 0 {
		return
	}
	batch := l.frames
	l.frames = nil
	for _, s := range batch {
		if s.cancelled {
			continue
		}
		s.cancelled = true
		l.exec(s.fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Loop", fmt.Errorf("panic: %v", r), "Recovered panic in loop task")
		}
	}()
	fn()
}

func (l *Loop) shutdown() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
	for s, t := range l.timers {
		s.cancelled = true
		t.Stop()
	}
	l.timers = make(map[*scheduled]*time.Timer)
	l.frames = nil
	logging.Debug("Loop", "Stopped")
}
