package viewsync

import (
	"panelsync/internal/host"
)

// Phase is the batch scheduler state.
type Phase int

const (
	// PhaseIdle means no tick is scheduled.
	PhaseIdle Phase = iota

	// PhaseRequested means exactly one frame request is outstanding.
	PhaseRequested

	// PhaseProcessing means a dispatch pass is executing.
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseRequested:
		return "Requested"
	case PhaseProcessing:
		return "Processing"
	default:
		return "Unknown"
	}
}

// batcher coalesces tick requests into at most one outstanding frame
// callback.
type batcher struct {
	host    host.Host
	process func()

	phase  Phase
	cancel host.Cancel
	again  bool
	ticks  uint64
}

func newBatcher(h host.Host, process func()) *batcher {
	return &batcher{
		host:    h,
		process: process,
	}
}

// request ensures a tick is outstanding. While processing, the request is
// remembered and issued when the pass finishes.
func (b *batcher) request() {
	switch b.phase {
	case PhaseIdle:
		b.phase = PhaseRequested
		b.cancel = b.host.RequestFrame(b.tick)
	case PhaseRequested:
	case PhaseProcessing:
		b.again = true
	}
}

func (b *batcher) tick() {
	b.cancel = nil
	b.phase = PhaseProcessing
	b.again = false
	b.ticks++

	b.process()

	if b.phase != PhaseProcessing {
		// stopped during the pass
		return
	}
	b.phase = PhaseIdle
	if b.again {
		b.again = false
		b.request()
	}
}

// stop cancels the outstanding frame request.
func (b *batcher) stop() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.phase = PhaseIdle
	b.again = false
}
