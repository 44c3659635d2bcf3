package capture

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerFiresPeriodically(t *testing.T) {
	var fires atomic.Int32
	s := NewScheduler()

	require.NoError(t, s.Start(20*time.Millisecond, func() { fires.Add(1) }))
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return fires.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())

	after := fires.Load()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, after, fires.Load(), "no fires after Stop returns")
}

func TestSchedulerFirstFireAfterFullInterval(t *testing.T) {
	var fires atomic.Int32
	s := NewScheduler()

	require.NoError(t, s.Start(300*time.Millisecond, func() { fires.Add(1) }))
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fires.Load())
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler()

	// Stopping a scheduler that never started is a no-op
	s.Stop()
	s.Stop()

	var fires atomic.Int32
	s = NewScheduler()
	require.NoError(t, s.Start(10*time.Millisecond, func() { fires.Add(1) }))
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestSchedulerNotRestartable(t *testing.T) {
	s := NewScheduler()
	require.NoError(t, s.Start(time.Second, func() {}))
	assert.ErrorIs(t, s.Start(time.Second, func() {}), ErrSchedulerStarted)

	s.Stop()
	assert.ErrorIs(t, s.Start(time.Second, func() {}), ErrSchedulerStarted)

	// Stopped before start is terminal as well
	s = NewScheduler()
	s.Stop()
	assert.ErrorIs(t, s.Start(time.Second, func() {}), ErrSchedulerStarted)
}

func TestSchedulerRejectsBadArguments(t *testing.T) {
	s := NewScheduler()
	assert.Error(t, s.Start(0, func() {}))
	assert.Error(t, s.Start(time.Second, nil))
	assert.False(t, s.Running())
}

func TestSchedulerStopWaitsForInFlightFire(t *testing.T) {
	started := make(chan struct{}, 1)
	var finished atomic.Bool

	s := NewScheduler()
	require.NoError(t, s.Start(10*time.Millisecond, func() {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	}))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never fired")
	}

	s.Stop()
	assert.True(t, finished.Load(), "Stop returned while a fire was still running")
}
