package pinger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillcoder/gracehook/internal/infra/shutdown"
)

const (
	// defaultPingTimeout is the default timeout for ping operations
	defaultPingTimeout = 1 * time.Second
)

// pingerInfo holds pinger instance and its configuration
type pingerInfo struct {
	pinger         Pinger
	readyCritical  bool
	healthCritical bool
	timeout        time.Duration
}

// Statistics is the last known state of a single pinger
type Statistics struct {
	IsReady      bool          `json:"ready"`
	IsHealthy    bool          `json:"healthy"`
	LastRun      time.Time     `json:"lastRun"`
	LastLatency  time.Duration `json:"lastLatency"`
	LastError    string        `json:"lastError,omitempty"`
	SuccessCount int           `json:"successCount"`
	ErrorCount   int           `json:"errorCount"`
}

// Service periodically runs registered pingers and keeps their results
type Service struct {
	logger     *slog.Logger
	interval   time.Duration
	pingers    map[string]*pingerInfo
	stats      map[string]*Statistics
	mu         sync.RWMutex
	ready      chan struct{}
	inShutdown atomic.Bool
	doneCh     chan struct{}
	wg         sync.WaitGroup
}

// New creates a new pinger service with the specified interval
func New(
	logger *slog.Logger,
	interval time.Duration,
) *Service {
	return &Service{
		logger:   logger,
		interval: interval,
		pingers:  make(map[string]*pingerInfo),
		stats:    make(map[string]*Statistics),
		ready:    make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

var _ shutdown.Shutdowner = (*Service)(nil)

// Name returns the name of the pinger service component
func (s *Service) Name() string {
	return "pinger-service"
}

// Register registers a pinger under its name
func (s *Service) Register(pinger Pinger) error {
	if pinger == nil {
		return fmt.Errorf("register pinger: %w", ErrNilPinger)
	}

	name := pinger.Name()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pingers[name]; exists {
		return fmt.Errorf("register pinger %s: %w", name, ErrPingerAlreadyRegistered)
	}

	info := &pingerInfo{
		pinger:         pinger,
		readyCritical:  true,
		healthCritical: true,
		timeout:        defaultPingTimeout,
	}

	if rc, ok := pinger.(readyCriticalPinger); ok {
		info.readyCritical = rc.PingerReadyCritical()
	}

	if hc, ok := pinger.(healthCriticalPinger); ok {
		info.healthCritical = hc.PingerCritical()
	}

	if tp, ok := pinger.(timeoutPinger); ok && tp.PingerTimeout() > 0 {
		info.timeout = tp.PingerTimeout()
	}

	s.pingers[name] = info
	s.stats[name] = &Statistics{IsReady: !info.readyCritical, IsHealthy: !info.healthCritical}

	s.logger.Info("pinger registered",
		"name", name,
		"readyCritical", info.readyCritical,
		"healthCritical", info.healthCritical,
		"timeout", info.timeout,
	)

	return nil
}

// Start starts the pinger service in a goroutine
func (s *Service) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "pinger service is shutting down, skipping start")

		return nil
	}

	go s.run(ctx)

	return nil
}

// Ready returns a channel that is closed after the first round of pings
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Shutdown gracefully shuts down the pinger service
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "pinger service is already shutting down, skipping shutdown")

		return nil
	}

	defer func() {
		s.logger.InfoContext(ctx, "pinger service shut downed")
	}()

	s.logger.InfoContext(ctx, "shutting down pinger service")

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before pinger loop exited: %w", ctx.Err())
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "pinger loop exited")
	}

	// Wait for any in-flight ping operations to complete
	s.wg.Wait()

	return nil
}

// GetStats returns statistics for a specific pinger
func (s *Service) GetStats(name string) (Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, exists := s.stats[name]
	if !exists {
		return Statistics{}, fmt.Errorf("get stats: %w: %s", ErrPingerNotFound, name)
	}

	return *stats, nil
}

// GetAllStats returns a copy of all pinger statistics
func (s *Service) GetAllStats() map[string]Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]Statistics, len(s.stats))
	for name, stats := range s.stats {
		result[name] = *stats
	}

	return result
}

// IsReady reports whether every ready-critical pinger passed its last ping
func (s *Service) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stats := range s.stats {
		if !stats.IsReady {
			return false
		}
	}

	return true
}

// IsHealthy reports whether every health-critical pinger passed its last ping
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stats := range s.stats {
		if !stats.IsHealthy {
			return false
		}
	}

	return true
}

// run is the main goroutine that runs pingers at intervals
func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)

	logger := s.logger.With("component", "pinger-run")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run first ping immediately
	s.runPingers(ctx, logger)

	close(s.ready)

	for {
		if s.inShutdown.Load() {
			logger.InfoContext(ctx, "terminating pinger loop")

			return
		}

		select {
		case <-ticker.C:
			s.runPingers(ctx, logger)
		case <-ctx.Done():
			logger.InfoContext(ctx, "terminating pinger loop")

			return
		}
	}
}

// runPingers executes all registered pingers in parallel and waits for them
func (s *Service) runPingers(ctx context.Context, logger *slog.Logger) {
	s.mu.RLock()
	pingers := maps.Clone(s.pingers)
	s.mu.RUnlock()

	var wg sync.WaitGroup

	for name, info := range pingers {
		wg.Add(1)
		s.wg.Add(1)

		go func() {
			defer wg.Done()
			defer s.wg.Done()

			pingCtx, cancel := context.WithTimeout(ctx, info.timeout)
			defer cancel()

			start := time.Now()
			err := info.pinger.Ping(pingCtx)
			latency := time.Since(start)

			s.updateStats(name, info, latency, err)

			if err != nil {
				logger.DebugContext(ctx, "pinger error", "name", name, "latency", latency, "reason", err)

				return
			}

			logger.DebugContext(ctx, "pinger success", "name", name, "latency", latency)
		}()
	}

	wg.Wait()
}

func (s *Service) updateStats(name string, info *pingerInfo, latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, exists := s.stats[name]
	if !exists {
		return
	}

	stats.LastRun = time.Now()
	stats.LastLatency = latency

	if err != nil {
		stats.LastError = err.Error()
		stats.ErrorCount++
		stats.IsReady = !info.readyCritical
		stats.IsHealthy = !info.healthCritical

		return
	}

	stats.LastError = ""
	stats.SuccessCount++
	stats.IsReady = true
	stats.IsHealthy = true
}
