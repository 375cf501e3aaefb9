package restart

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillcoder/gracehook/internal/infra/metrics"
)

// Service restarts the process on a cron schedule by triggering the regular
// signal driven shutdown. A random jitter up to jitterMax is added to every
// planned time so that replicas sharing a schedule do not stop together.
type Service struct {
	logger     *slog.Logger
	scheduler  Scheduler
	schedule   string
	tz         string
	jitterMax  time.Duration
	trigger    Trigger
	now        func() time.Time
	ready      chan struct{}
	doneCh     chan struct{}
	inShutdown atomic.Bool
	mu         sync.RWMutex
	plannedAt  time.Time
}

// New creates a new planned restart service.
func New(
	logger *slog.Logger,
	scheduler Scheduler,
	schedule,
	tz string,
	jitterMax time.Duration,
	trigger Trigger,
) *Service {
	return &Service{
		logger:    logger.With("component", "planned-restart"),
		scheduler: scheduler,
		schedule:  schedule,
		tz:        tz,
		jitterMax: jitterMax,
		trigger:   trigger,
		now:       time.Now,
		ready:     make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Name returns the name of the restart component
func (s *Service) Name() string {
	return "planned-restart"
}

// Start plans the first restart and starts waiting for it in a goroutine.
// An unusable schedule is reported here instead of inside the loop.
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "restart service is shutting down, skipping start")

		return nil
	}

	at, err := s.PlanCommand(ctx)
	if err != nil {
		return err
	}

	go s.RunCommand(ctx, at)

	return nil
}

// Ready returns a channel that is closed once the restart is planned
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Ping reports an error until a restart is planned.
func (s *Service) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		return nil
	default:
		return ErrNotReady
	}
}

// PingerCritical reports that a missing restart plan never makes the process unhealthy.
func (s *Service) PingerCritical() bool {
	return false
}

// PlannedAt returns the planned restart time, zero when nothing is planned.
func (s *Service) PlannedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.plannedAt
}

// PlanCommand computes the next restart time with jitter and publishes it.
func (s *Service) PlanCommand(ctx context.Context) (time.Time, error) {
	next, err := s.scheduler.NextAfter(s.schedule, s.tz, s.now())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrPlanRestart, err)
	}

	at := next.Add(s.jitter())

	s.mu.Lock()
	s.plannedAt = at
	s.mu.Unlock()

	metrics.SetPlannedRestart(at)

	s.logger.InfoContext(ctx, "restart planned",
		"at", at,
		"schedule", s.schedule,
		"tz", s.tz,
	)

	return at, nil
}

// RunCommand waits until at and then triggers the restart once.
func (s *Service) RunCommand(ctx context.Context, at time.Time) {
	defer close(s.doneCh)

	close(s.ready)

	timer := time.NewTimer(at.Sub(s.now()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "terminating restart loop")

		return
	case <-timer.C:
	}

	if s.inShutdown.Load() {
		return
	}

	s.logger.InfoContext(ctx, "planned restart time reached, shutting down", "plannedAt", at)

	if err := s.trigger(); err != nil {
		s.logger.ErrorContext(ctx, "restart failed", "reason", fmt.Errorf("%w: %w", ErrTriggerRestart, err))
	}
}

// Shutdown waits for the restart loop to exit and clears the published plan.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "restart service is already shutting down, skipping shutdown")

		return nil
	}

	defer metrics.SetPlannedRestart(time.Time{})

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before restart loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "restart loop exited")
	}

	return nil
}

func (s *Service) jitter() time.Duration {
	if s.jitterMax <= 0 {
		return 0
	}

	return rand.N(s.jitterMax)
}
