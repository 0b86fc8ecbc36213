package gpu

import (
	"context"
	"sync"
	"time"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/telemetry"
	"construction-safety-assistant/models"
)

const autoStopTag = "gpu-auto-stop"

// PodController is the pod-control surface the service drives.
type PodController interface {
	StartPod(ctx context.Context) (map[string]any, error)
	StopPod(ctx context.Context) (map[string]any, error)
	GetStatus(ctx context.Context) (map[string]any, error)
}

// Timer arms and cancels tagged one-shot jobs.
type Timer interface {
	ScheduleOnce(tag string, delay time.Duration, job func()) (time.Time, error)
	RemoveJob(tag string) error
}

// Service tracks one GPU session in memory. Every Start re-arms the auto-stop;
// Stop disarms it before stopping the pod. Start, Stop and the auto-stop run
// one at a time, and an auto-stop armed by an earlier session does nothing.
type Service struct {
	client      PodController
	timer       Timer
	idle        time.Duration
	metrics     *telemetry.Metrics
	opMu        sync.Mutex
	mu          sync.Mutex
	session     uint64
	activeUntil *time.Time
}

// New builds the service from configuration. Missing credentials yield
// config.ErrGPUNotConfigured.
func New(cfg *config.Config, timer Timer, metrics *telemetry.Metrics) (*Service, error) {
	rc, err := cfg.Runpod()
	if err != nil {
		return nil, err
	}
	return NewService(NewClient(rc), timer, IdleTimeout(rc.IdleTimeoutMinutes), metrics), nil
}

func NewService(client PodController, timer Timer, idle time.Duration, metrics *telemetry.Metrics) *Service {
	return &Service{client: client, timer: timer, idle: idle, metrics: metrics}
}

// IdleTimeout converts configured minutes to a duration of at least one minute.
func IdleTimeout(minutes int) time.Duration {
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

// Start starts the pod and arms the auto-stop, replacing any earlier one.
func (s *Service) Start(ctx context.Context) (map[string]any, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	data, err := s.client.StartPod(ctx)
	s.metrics.RecordGPUAction("start", err == nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timer.RemoveJob(autoStopTag); err != nil {
		logger.Warn("Failed to cancel previous GPU auto-stop", "error", err)
	}
	s.session++
	session := s.session
	next, err := s.timer.ScheduleOnce(autoStopTag, s.idle, func() { s.autoStop(session) })
	if err != nil {
		logger.Error("Failed to arm GPU auto-stop", "error", err)
		s.activeUntil = nil
		return data, nil
	}
	until := next.UTC()
	s.activeUntil = &until
	logger.Info("GPU pod started", "auto_stop_at", until)
	return data, nil
}

// Stop disarms the auto-stop and stops the pod.
func (s *Service) Stop(ctx context.Context) (map[string]any, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.session++
	if err := s.timer.RemoveJob(autoStopTag); err != nil {
		logger.Warn("Failed to cancel GPU auto-stop", "error", err)
	}
	s.mu.Unlock()

	data, err := s.client.StopPod(ctx)
	s.metrics.RecordGPUAction("stop", err == nil)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.activeUntil = nil
	s.mu.Unlock()
	logger.Info("GPU pod stopped")
	return data, nil
}

// Status returns the provider's pod status and the local auto-stop deadline.
func (s *Service) Status(ctx context.Context) (*models.GPUStatus, error) {
	data, err := s.client.GetStatus(ctx)
	s.metrics.RecordGPUAction("status", err == nil)
	if err != nil {
		return nil, err
	}
	return &models.GPUStatus{Pod: data, ActiveUntil: s.ActiveUntil()}, nil
}

// ActiveUntil is the armed auto-stop time, or nil when no session is armed.
func (s *Service) ActiveUntil() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeUntil == nil {
		return nil
	}
	t := *s.activeUntil
	return &t
}

// autoStop clears the session even when the stop call fails. It skips when
// the session it was armed for has since been restarted or stopped.
func (s *Service) autoStop(session uint64) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	current := s.session
	s.mu.Unlock()
	if current != session {
		logger.Debug("Skipping stale GPU auto-stop", "session", session, "current", current)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.client.StopPod(ctx)
	s.metrics.RecordGPUAction("auto_stop", err == nil)
	if err != nil {
		logger.Error("GPU auto-stop failed", "error", err)
	} else {
		logger.Info("GPU pod auto-stopped after idle timeout")
	}

	s.mu.Lock()
	s.activeUntil = nil
	s.mu.Unlock()
}
