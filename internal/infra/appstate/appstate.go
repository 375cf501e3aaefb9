package appstate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/skillcoder/gracehook/internal/infra/shutdown"
	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
)

// State represents the application state
type State string

const (
	// StateInit is the initial state when the application is created
	StateInit State = "init"

	// StateStarting is the state when the application is starting up
	StateStarting State = "starting"

	// StateRunning is the state when the application is running normally
	StateRunning State = "running"

	// StateTerminating is the state when the application is shutting down
	StateTerminating State = "terminating"

	// StateTerminated is the final state when the application has terminated
	StateTerminated State = "terminated"

	// StateFailed is the final state of an application that failed to start
	StateFailed State = "failed"
)

const defaultShutdownersCount = 10

// AppState is the application context: it manages the application state with
// thread-safe operations and is registered with the shutdown hook as a unit.
type AppState struct {
	mu                  sync.RWMutex
	logger              *slog.Logger
	startedAt           time.Time
	readyAt             *time.Time
	terminatingAt       *time.Time
	terminatedAt        *time.Time
	state               State
	terminationFilePath string
	shutdownTimeout     time.Duration
	shutdowners         []shutdown.Shutdowner
	closeObservers      []func(shutdownhook.Unit)
	terminated          chan struct{}
}

var _ shutdownhook.Unit = (*AppState)(nil)

// New creates a new AppState with the given start time
func New(
	logger *slog.Logger,
	appStart time.Time,
	terminationFilePath string,
	shutdownTimeout time.Duration,
) *AppState {
	return &AppState{
		logger:              logger.With("component", "app-state"),
		startedAt:           appStart,
		state:               StateInit,
		terminationFilePath: terminationFilePath,
		shutdownTimeout:     shutdownTimeout,
		shutdowners:         make([]shutdown.Shutdowner, 0, defaultShutdownersCount),
		terminated:          make(chan struct{}),
	}
}

// Name returns the name of the application context
func (s *AppState) Name() string {
	return "application"
}

// RegisterShutdowner adds a component stopped when the application closes.
// Components are stopped in reverse registration order.
func (s *AppState) RegisterShutdowner(shutdowner shutdown.Shutdowner) error {
	if shutdowner == nil {
		return fmt.Errorf("register shutdowner: %w", ErrNilShutdowner)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateTerminating || s.state == StateTerminated {
		return fmt.Errorf("register shutdowner %s: %w", shutdowner.Name(), ErrAlreadyTerminated)
	}

	s.shutdowners = append(s.shutdowners, shutdowner)

	return nil
}

// SetStarting transitions the state from Init to Starting
func (s *AppState) SetStarting(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit {
		return fmt.Errorf("set starting: %w", ErrInvalidStateTransition)
	}

	return s.setState(StateStarting)
}

// SetRunning transitions the state from Starting to Running
func (s *AppState) SetRunning(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStarting {
		return fmt.Errorf("set running: %w", ErrInvalidStateTransition)
	}

	now := time.Now()
	s.readyAt = &now

	defer s.terminateIfRequested(ctx)

	return s.setState(StateRunning)
}

// SetFailed marks an application that failed to start. A failed application
// is inactive and can be deregistered from the shutdown hook.
func (s *AppState) SetFailed(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateInit && s.state != StateStarting {
		return fmt.Errorf("set failed: %w", ErrInvalidStateTransition)
	}

	return s.setState(StateFailed)
}

// IsActive reports whether the application is started and not yet terminated.
func (s *AppState) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch s.state {
	case StateStarting, StateRunning, StateTerminating:
		return true
	default:
		return false
	}
}

// OnClose registers fn to be called when the application begins closing.
func (s *AppState) OnClose(fn func(shutdownhook.Unit)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeObservers = append(s.closeObservers, fn)
}

// Close starts terminating the application: close observers are notified,
// then registered components are shut down in the background. Close is a
// no-op unless the application is active and not already terminating.
func (s *AppState) Close() {
	s.mu.Lock()

	if s.state != StateStarting && s.state != StateRunning {
		s.mu.Unlock()

		return
	}

	now := time.Now()
	s.terminatingAt = &now
	s.state = StateTerminating
	observers := slices.Clone(s.closeObservers)
	shutdowners := slices.Clone(s.shutdowners)

	s.mu.Unlock()

	s.logger.Info("closing application", "components", len(shutdowners))

	// observers may call back into their owner, so they run without s.mu held
	for _, fn := range observers {
		fn(s)
	}

	go s.shutdown(shutdowners)
}

// Terminated returns a channel that is closed once the application has terminated.
func (s *AppState) Terminated() <-chan struct{} {
	return s.terminated
}

func (s *AppState) shutdown(shutdowners []shutdown.Shutdowner) {
	ctx := context.Background()

	err := shutdown.GracefulShutdown(ctx, s.logger, s.shutdownTimeout, shutdowners)
	if err != nil {
		s.logger.ErrorContext(ctx, "application components shutdown failed", "reason", err)
	}

	s.mu.Lock()
	now := time.Now()
	s.terminatedAt = &now
	s.state = StateTerminated
	terminatingAt := *s.terminatingAt
	s.mu.Unlock()

	close(s.terminated)

	s.logger.InfoContext(ctx, "application terminated", "duration", now.Sub(terminatingAt))
}

// terminateIfRequested sends SIGTERM to the own process when the termination
// file appeared while the application was starting.
func (s *AppState) terminateIfRequested(ctx context.Context) {
	if !shutdown.CheckTerminationFile(ctx, s.logger, s.terminationFilePath) {
		return
	}

	s.logger.InfoContext(ctx, "termination file found after initialization, sending SIGTERM")

	if err := shutdown.SignalSelf(); err != nil {
		s.logger.ErrorContext(ctx, "failed to request termination", "reason", err)
	}
}

// setState is an internal method to set the state
func (s *AppState) setState(newState State) error {
	if s.state == StateTerminated {
		return fmt.Errorf("set state: %w", ErrAlreadyTerminated)
	}

	s.state = newState

	return nil
}

// GetState returns the current application state
func (s *AppState) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// GetStartTime returns the time when the application started
func (s *AppState) GetStartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.startedAt
}

// GetUptime returns the duration since the application started
func (s *AppState) GetUptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return time.Since(s.startedAt)
}

// IsHealthy returns true if the application is in a healthy state (running)
func (s *AppState) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateRunning
}

// IsReady returns true if the application is ready to serve requests (running and readyAt is set)
func (s *AppState) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateRunning && s.readyAt != nil
}
