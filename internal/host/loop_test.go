package host

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop(time.Millisecond)
	go func() {
		_ = l.Run(context.Background())
	}()
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_CallRunsOnLoop(t *testing.T) {
	l := startLoop(t)

	var ran bool
	err := l.Call(context.Background(), func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestLoop_RequestFrame(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{})
	require.NoError(t, l.Call(context.Background(), func() {
		l.RequestFrame(func() { close(fired) })
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("frame callback did not run")
	}
}

func TestLoop_CancelledFrameDoesNotRun(t *testing.T) {
	l := startLoop(t)

	ran := make(chan struct{}, 1)
	require.NoError(t, l.Call(context.Background(), func() {
		cancel := l.RequestFrame(func() { ran <- struct{}{} })
		cancel()
	}))

	time.Sleep(20 * time.Millisecond)
	select {
	case <-ran:
		t.Fatal("cancelled frame callback ran")
	default:
	}
}

func TestLoop_AfterFunc(t *testing.T) {
	l := startLoop(t)

	fired := make(chan time.Time, 1)
	var start time.Time
	require.NoError(t, l.Call(context.Background(), func() {
		start = l.Now()
		l.AfterFunc(10*time.Millisecond, func() { fired <- time.Now() })
	}))

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 10*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_CancelledTimerDoesNotRun(t *testing.T) {
	l := startLoop(t)

	ran := make(chan struct{}, 1)
	require.NoError(t, l.Call(context.Background(), func() {
		cancel := l.AfterFunc(5*time.Millisecond, func() { ran <- struct{}{} })
		cancel()
		cancel()
	}))

	time.Sleep(30 * time.Millisecond)
	select {
	case <-ran:
		t.Fatal("cancelled timer ran")
	default:
	}
}

func TestLoop_PanicDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)

	require.NoError(t, l.Call(context.Background(), func() { panic("boom") }))

	var ran bool
	require.NoError(t, l.Call(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_RunTwice(t *testing.T) {
	l := startLoop(t)
	require.NoError(t, l.Call(context.Background(), func() {}))

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, ErrLoopAlreadyRunning)
}

func TestLoop_PostAfterStop(t *testing.T) {
	l := NewLoop(0)
	assert.Equal(t, DefaultFrameInterval, l.FrameInterval())

	go func() { _ = l.Run(context.Background()) }()
	require.NoError(t, l.Call(context.Background(), func() {}))
	l.Stop()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrLoopStopped)
}

func TestLoop_ContextCancelStops(t *testing.T) {
	l := NewLoop(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	require.NoError(t, l.Call(context.Background(), func() {}))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	<-l.Done()
}
