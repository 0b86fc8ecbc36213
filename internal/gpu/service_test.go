package gpu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"construction-safety-assistant/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePod struct {
	mu      sync.Mutex
	starts  int
	stops   int
	stopErr error
}

func (f *fakePod) StartPod(context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return map[string]any{"desiredStatus": "RUNNING"}, nil
}

func (f *fakePod) StopPod(context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return map[string]any{"desiredStatus": "EXITED"}, nil
}

func (f *fakePod) GetStatus(context.Context) (map[string]any, error) {
	return map[string]any{"id": "pod-1"}, nil
}

func (f *fakePod) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// manualTimer records jobs and lets the test fire them.
type manualTimer struct {
	jobs    map[string]func()
	removed []string
}

func newManualTimer() *manualTimer { return &manualTimer{jobs: map[string]func(){}} }

func (m *manualTimer) ScheduleOnce(tag string, delay time.Duration, job func()) (time.Time, error) {
	m.jobs[tag] = job
	return time.Now().Add(delay), nil
}

func (m *manualTimer) RemoveJob(tag string) error {
	m.removed = append(m.removed, tag)
	delete(m.jobs, tag)
	return nil
}

func TestIdleTimeout_AtLeastOneMinute(t *testing.T) {
	assert.Equal(t, time.Minute, IdleTimeout(0))
	assert.Equal(t, time.Minute, IdleTimeout(-5))
	assert.Equal(t, 30*time.Minute, IdleTimeout(30))
}

func TestStart_ArmsAutoStop(t *testing.T) {
	pod := &fakePod{}
	timer := newManualTimer()
	svc := NewService(pod, timer, 30*time.Minute, nil)

	before := time.Now()
	data, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RUNNING", data["desiredStatus"])

	until := svc.ActiveUntil()
	require.NotNil(t, until)
	assert.WithinDuration(t, before.Add(30*time.Minute), *until, 5*time.Second)
	assert.Contains(t, timer.jobs, autoStopTag)
	assert.Equal(t, []string{autoStopTag}, timer.removed)
}

func TestStop_CancelsTimerAndClearsSession(t *testing.T) {
	pod := &fakePod{}
	timer := newManualTimer()
	svc := NewService(pod, timer, time.Minute, nil)

	_, err := svc.Start(context.Background())
	require.NoError(t, err)
	_, err = svc.Stop(context.Background())
	require.NoError(t, err)

	assert.Nil(t, svc.ActiveUntil())
	assert.NotContains(t, timer.jobs, autoStopTag)
	assert.Equal(t, 1, pod.stopCount())
}

func TestAutoStop_ClearsSessionEvenOnFailure(t *testing.T) {
	pod := &fakePod{stopErr: &APIError{Op: "stop", StatusCode: 500}}
	timer := newManualTimer()
	svc := NewService(pod, timer, time.Minute, nil)

	_, err := svc.Start(context.Background())
	require.NoError(t, err)
	timer.jobs[autoStopTag]()

	assert.Nil(t, svc.ActiveUntil())
	assert.Equal(t, 1, pod.stopCount())
}

func TestStop_FailureKeepsError(t *testing.T) {
	pod := &fakePod{stopErr: errors.New("unreachable")}
	svc := NewService(pod, newManualTimer(), time.Minute, nil)

	_, err := svc.Stop(context.Background())
	assert.Error(t, err)
}

func TestStatus_IncludesActiveUntil(t *testing.T) {
	svc := NewService(&fakePod{}, newManualTimer(), time.Minute, nil)
	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pod-1", st.Pod["id"])
	assert.Nil(t, st.ActiveUntil)

	_, err = svc.Start(context.Background())
	require.NoError(t, err)
	st, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, st.ActiveUntil)
}

func TestStart_WithSchedulerFiresAutoStop(t *testing.T) {
	sched := scheduler.NewScheduler()
	sched.Start()
	defer sched.Stop()

	pod := &fakePod{}
	svc := NewService(pod, sched, 50*time.Millisecond, nil)

	_, err := svc.Start(context.Background())
	require.NoError(t, err)
	_, err = svc.Start(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return pod.stopCount() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return svc.ActiveUntil() == nil }, time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, pod.stopCount(), "restart must replace the earlier timer")
}

func TestAutoStop_FromEarlierSessionIsIgnoredAfterRestart(t *testing.T) {
	pod := &fakePod{}
	timer := newManualTimer()
	svc := NewService(pod, timer, time.Minute, nil)

	_, err := svc.Start(context.Background())
	require.NoError(t, err)
	stale := timer.jobs[autoStopTag]

	_, err = svc.Start(context.Background())
	require.NoError(t, err)
	stale()

	assert.Equal(t, 0, pod.stopCount())
	assert.NotNil(t, svc.ActiveUntil())

	timer.jobs[autoStopTag]()
	assert.Equal(t, 1, pod.stopCount())
	assert.Nil(t, svc.ActiveUntil())
}

func TestAutoStop_IgnoredAfterManualStop(t *testing.T) {
	pod := &fakePod{}
	timer := newManualTimer()
	svc := NewService(pod, timer, time.Minute, nil)

	_, err := svc.Start(context.Background())
	require.NoError(t, err)
	stale := timer.jobs[autoStopTag]
	_, err = svc.Stop(context.Background())
	require.NoError(t, err)

	stale()
	assert.Equal(t, 1, pod.stopCount())
}
