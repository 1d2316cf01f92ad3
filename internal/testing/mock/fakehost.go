package mock

import (
	"time"

	"panelsync/internal/host"
)

// Epoch is the virtual start time of every FakeHost.
var Epoch = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// FakeHost implements host.Host on a virtual clock. Frame boundaries fall on
// multiples of the frame interval measured from Epoch; a frame requested at
// time t runs at the first boundary strictly after t, even when a timer has
// already moved the clock onto that boundary.
//
// FakeHost is not safe for concurrent use; like the real loop, everything
// runs on the test goroutine.
type FakeHost struct {
	clock         *MockClock
	frameInterval time.Duration

	seq    uint64
	timers []*fakeTimer
	frames []*fakeEntry

	// lastFrame is the boundary the queued frames are counted from.
	lastFrame time.Time

	// FramesRun counts frame passes that executed at least one callback.
	FramesRun int
}

type fakeEntry struct {
	fn        func()
	cancelled bool
}

type fakeTimer struct {
	fakeEntry
	due time.Time
	seq uint64
}

var _ host.Host = (*FakeHost)(nil)

// NewFakeHost creates a fake host. A non-positive frameInterval selects
// host.DefaultFrameInterval.
func NewFakeHost(frameInterval time.Duration) *FakeHost {
	if frameInterval <= 0 {
		frameInterval = host.DefaultFrameInterval
	}
	return &FakeHost{
		clock:         NewMockClock(Epoch),
		frameInterval: frameInterval,
		lastFrame:     Epoch,
	}
}

// Now returns the virtual time.
func (h *FakeHost) Now() time.Time {
	return h.clock.Now()
}

// Elapsed returns the virtual time since Epoch.
func (h *FakeHost) Elapsed() time.Duration {
	return h.clock.Now().Sub(Epoch)
}

// AfterFunc queues fn to run once virtual time reaches now+d.
func (h *FakeHost) AfterFunc(d time.Duration, fn func()) host.Cancel {
	h.seq++
	t := &fakeTimer{
		fakeEntry: fakeEntry{fn: fn},
		due:       h.clock.Now().Add(d),
		seq:       h.seq,
	}
	h.timers = append(h.timers, t)
	return func() {
		t.cancelled = true
	}
}

// RequestFrame queues fn for the next frame.
func (h *FakeHost) RequestFrame(fn func()) host.Cancel {
	if h.PendingFrames() == 0 {
		h.lastFrame = h.floorBoundary()
	}
	e := &fakeEntry{fn: fn}
	h.frames = append(h.frames, e)
	return func() {
		e.cancelled = true
	}
}

// RunFrame runs every frame callback queued so far without moving the
// clock. Callbacks requested while running wait for the next frame.
func (h *FakeHost) RunFrame() {
	batch := h.frames
	h.frames = nil
	h.lastFrame = h.floorBoundary()
	ran := false
	for _, e := range batch {
		if e.cancelled {
			continue
		}
		e.cancelled = true
		ran = true
		e.fn()
	}
	if ran {
		h.FramesRun++
	}
}

// Advance moves virtual time forward by d, firing timers and frames in
// chronological order. A timer due at the same instant as a frame fires
// first.
func (h *FakeHost) Advance(d time.Duration) {
	end := h.clock.Now().Add(d)
	for {
		h.compact()

		timer := h.nextTimer()
		haveFrame := len(h.frames) > 0
		frameAt := h.nextFrameBoundary()

		switch {
		case timer != nil && !timer.due.After(end) && (!haveFrame || !timer.due.After(frameAt)):
			if timer.due.After(h.clock.Now()) {
				h.clock.Set(timer.due)
			}
			timer.cancelled = true
			timer.fn()
		case haveFrame && !frameAt.After(end):
			h.clock.Set(frameAt)
			h.RunFrame()
		default:
			h.clock.Set(end)
			return
		}
	}
}

// PendingTimers reports timers that have neither fired nor been cancelled.
func (h *FakeHost) PendingTimers() int {
	h.compact()
	return len(h.timers)
}

// PendingFrames reports frame callbacks that have neither run nor been
// cancelled.
func (h *FakeHost) PendingFrames() int {
	n := 0
	for _, e := range h.frames {
		if !e.cancelled {
			n++
		}
	}
	return n
}

func (h *FakeHost) nextTimer() *fakeTimer {
	var next *fakeTimer
	for _, t := range h.timers {
		if next == nil || t.due.Before(next.due) || (t.due.Equal(next.due) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (h *FakeHost) nextFrameBoundary() time.Time {
	next := h.lastFrame.Add(h.frameInterval)
	if now := h.clock.Now(); next.Before(now) {
		next = h.floorBoundary().Add(h.frameInterval)
	}
	return next
}

// floorBoundary returns the last frame boundary at or before now.
func (h *FakeHost) floorBoundary() time.Time {
	elapsed := h.clock.Now().Sub(Epoch)
	return Epoch.Add(elapsed / h.frameInterval * h.frameInterval)
}

func (h *FakeHost) compact() {
	live := h.timers[:0]
	for _, t := range h.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	h.timers = live
}
