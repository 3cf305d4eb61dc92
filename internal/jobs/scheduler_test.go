package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(time.Hour, func() {})
	defer s.Shutdown()

	assert.False(t, s.IsRunning())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	// Idempotent start.
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestSchedulerRunsTask(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := NewScheduler(50*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer s.Shutdown()

	require.NoError(t, s.Start())
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}
}

func TestSchedulerRestartable(t *testing.T) {
	s := NewScheduler(time.Hour, func() {})
	defer s.Shutdown()

	require.NoError(t, s.Start())
	s.Stop()
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
}
