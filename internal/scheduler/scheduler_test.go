package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOnce_RunsOnce(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var runs atomic.Int32
	fired := make(chan struct{}, 4)
	next, err := s.ScheduleOnce("once", 50*time.Millisecond, func() {
		runs.Add(1)
		fired <- struct{}{}
	})
	require.NoError(t, err)
	assert.True(t, next.After(time.Now().Add(-time.Second)))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduleOnce_ReplacesSameTag(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var first, second atomic.Int32
	_, err := s.ScheduleOnce("auto-stop", 150*time.Millisecond, func() { first.Add(1) })
	require.NoError(t, err)
	_, err = s.ScheduleOnce("auto-stop", 50*time.Millisecond, func() { second.Add(1) })
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return second.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, first.Load())
}

func TestRemoveJob_CancelsPending(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var runs atomic.Int32
	_, err := s.ScheduleOnce("pending", 100*time.Millisecond, func() { runs.Add(1) })
	require.NoError(t, err)
	assert.True(t, s.Has("pending"))

	require.NoError(t, s.RemoveJob("pending"))
	assert.False(t, s.Has("pending"))
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, runs.Load())

	assert.NoError(t, s.RemoveJob("never-existed"))
}

func TestScheduleOnce_RejectsNonPositiveDelay(t *testing.T) {
	_, err := NewScheduler().ScheduleOnce("x", 0, func() {})
	assert.Error(t, err)
}

func TestScheduleInterval_Repeats(t *testing.T) {
	s := NewScheduler()
	s.Start()
	defer s.Stop()

	var runs atomic.Int32
	require.NoError(t, s.ScheduleInterval("tick", 30*time.Millisecond, func() { runs.Add(1) }))
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}
