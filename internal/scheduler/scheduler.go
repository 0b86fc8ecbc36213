// Package scheduler wraps gocron for the service's background timers: the GPU
// idle auto-stop and periodic index reloads.
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler manages tagged jobs. Tags are unique.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleOnce runs job a single time after delay. Any job already holding
// the tag is removed first.
func (s *Scheduler) ScheduleOnce(tag string, delay time.Duration, job func()) (time.Time, error) {
	if delay <= 0 {
		return time.Time{}, fmt.Errorf("delay must be positive, got %s", delay)
	}
	if err := s.RemoveJob(tag); err != nil {
		return time.Time{}, err
	}
	j, err := s.scheduler.Every(delay).WaitForSchedule().LimitRunsTo(1).Tag(tag).Do(job)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduling %s: %w", tag, err)
	}
	return j.NextRun(), nil
}

// ScheduleInterval schedules a job to run at regular intervals
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func()) error {
	if err := s.RemoveJob(tag); err != nil {
		return err
	}
	_, err := s.scheduler.Every(every).WaitForSchedule().Tag(tag).Do(job)
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", tag, err)
	}
	return nil
}

// RemoveJob removes a scheduled job by tag. A missing tag is not an error.
func (s *Scheduler) RemoveJob(tag string) error {
	err := s.scheduler.RemoveByTag(tag)
	if err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		return fmt.Errorf("removing %s: %w", tag, err)
	}
	return nil
}

// Has reports whether a job with tag is registered.
func (s *Scheduler) Has(tag string) bool {
	jobs, err := s.scheduler.FindJobsByTag(tag)
	return err == nil && len(jobs) > 0
}
