package shutdownhook

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/skillcoder/gracehook/internal/infra/metrics"
)

const (
	// defaultPollInterval is how often a closing unit is checked for termination
	defaultPollInterval = 50 * time.Millisecond

	// defaultTimeout bounds the wait for a single unit to become inactive
	defaultTimeout = 10 * time.Minute
)

// Status is a point-in-time view of the hook.
type Status struct {
	Registered int  `json:"registered"`
	Closing    int  `json:"closing"`
	Actions    int  `json:"actions"`
	InProgress bool `json:"inProgress"`
	Installed  bool `json:"installed"`
}

// Option configures a Hook.
type Option func(*Hook)

// WithPollInterval overrides the interval between IsActive checks of a closing unit.
func WithPollInterval(interval time.Duration) Option {
	return func(h *Hook) {
		if interval > 0 {
			h.pollInterval = interval
		}
	}
}

// WithTimeout overrides the maximum wait for a single unit to become inactive.
func WithTimeout(timeout time.Duration) Option {
	return func(h *Hook) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// Hook coordinates process shutdown: it closes and awaits every tracked unit,
// then runs the registered actions last-registered-first. A single Hook is
// meant to live for the whole process.
type Hook struct {
	logger       *slog.Logger
	installer    Installer
	pollInterval time.Duration
	timeout      time.Duration
	handlers     *Handlers

	installed           atomic.Bool
	installationEnabled atomic.Bool

	// mu guards everything below
	mu         sync.Mutex
	registered *orderedSet[Unit]
	closing    *orderedSet[Unit]
	actions    *orderedSet[Action]
	inProgress bool
}

// New creates a hook. The hook body is attached to installer on first use,
// once EnableInstallation has been called. A nil installer never installs.
func New(logger *slog.Logger, installer Installer, opts ...Option) *Hook {
	h := &Hook{
		logger:       logger.With("component", "shutdown-hook"),
		installer:    installer,
		pollInterval: defaultPollInterval,
		timeout:      defaultTimeout,
		registered:   newOrderedSet[Unit](),
		closing:      newOrderedSet[Unit](),
		actions:      newOrderedSet[Action](),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.handlers = &Handlers{hook: h}

	return h
}

// Name returns the name of the hook component
func (h *Hook) Name() string {
	return "shutdown-hook"
}

// Handlers returns the registry of shutdown actions.
func (h *Hook) Handlers() *Handlers {
	return h.handlers
}

// EnableInstallation allows the hook to attach itself to the installer.
// Until it is called, registrations never install the hook.
func (h *Hook) EnableInstallation() {
	h.installationEnabled.Store(true)
}

// RegisterUnit starts tracking unit. The unit moves to the closing set as soon
// as it reports that it began terminating.
func (h *Hook) RegisterUnit(unit Unit) error {
	if err := validate(unit, ErrNilUnit); err != nil {
		return fmt.Errorf("register unit: %w", err)
	}

	h.installIfNecessary()

	added, err := h.addUnit(unit)
	if err != nil || !added {
		return err
	}

	// subscribed outside the lock: a unit may notify synchronously
	unit.OnClose(h.onUnitClosing)
	metrics.RecordUnitRegistered()

	h.logger.Debug("unit registered", "unit", nameOf(unit))

	return nil
}

func (h *Hook) addUnit(unit Unit) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inProgress {
		return false, fmt.Errorf("register unit %s: %w", nameOf(unit), ErrShutdownInProgress)
	}

	// units that finished closing on their own are no longer interesting
	h.closing.removeFunc(func(u Unit) bool {
		return !u.IsActive()
	})

	return h.registered.add(unit), nil
}

// DeregisterUnit stops tracking a unit that failed to start. Active units
// cannot be deregistered.
func (h *Hook) DeregisterUnit(unit Unit) error {
	if err := validate(unit, ErrNilUnit); err != nil {
		return fmt.Errorf("deregister unit: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inProgress {
		return fmt.Errorf("deregister unit %s: %w", nameOf(unit), ErrShutdownInProgress)
	}

	if unit.IsActive() {
		return fmt.Errorf("deregister unit %s: %w", nameOf(unit), ErrUnitActive)
	}

	h.registered.remove(unit)

	h.logger.Debug("unit deregistered", "unit", nameOf(unit))

	return nil
}

// IsRegistered reports whether unit is currently registered and not closing.
func (h *Hook) IsRegistered(unit Unit) bool {
	if validate(unit, ErrNilUnit) != nil {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.registered.contains(unit)
}

// Status returns a snapshot of the hook state.
func (h *Hook) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Status{
		Registered: h.registered.len(),
		Closing:    h.closing.len(),
		Actions:    h.actions.len(),
		InProgress: h.inProgress,
		Installed:  h.installed.Load(),
	}
}

// Ping fails once shutdown has started.
func (h *Hook) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inProgress {
		return ErrShutdownInProgress
	}

	return nil
}

// PingerReadyCritical marks the hook as critical for readiness only: a node
// that is shutting down stops taking traffic but is still alive.
func (h *Hook) PingerReadyCritical() bool {
	return true
}

// PingerCritical reports that the hook does not affect liveness.
func (h *Hook) PingerCritical() bool {
	return false
}

// Run is the hook body. It snapshots all state under the lock, then closes
// registered units in registration order, then units that were already
// closing, then runs actions last-registered-first. Cancelling ctx interrupts
// the waits; failures are logged and never stop the sequence.
func (h *Hook) Run(ctx context.Context) {
	start := time.Now()

	h.mu.Lock()
	h.inProgress = true
	units := h.registered.values()
	closing := h.closing.values()
	actions := h.actions.values()
	h.mu.Unlock()

	slices.Reverse(actions)

	logger := h.logger.With("run", uuid.NewString())

	logger.InfoContext(ctx, "running shutdown hook",
		"units", len(units),
		"closingUnits", len(closing),
		"actions", len(actions),
	)

	for _, unit := range units {
		h.closeAndWait(ctx, logger, unit)
	}

	for _, unit := range closing {
		h.closeAndWait(ctx, logger, unit)
	}

	for _, action := range actions {
		h.runAction(ctx, logger, action)
	}

	duration := time.Since(start)
	metrics.ObserveShutdownDuration(duration)

	logger.InfoContext(ctx, "shutdown hook completed", "duration", duration)
}

// Reset clears all registrations and the in-progress flag so the hook can be
// reused, e.g. between independent runs in tests.
func (h *Hook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registered.clear()
	h.closing.clear()
	h.actions.clear()
	h.inProgress = false
}

// closeAndWait closes unit and waits until it reports inactive. The wait is
// bounded by the hook timeout; a timeout or a cancelled ctx is logged and the
// caller moves on to the next unit.
func (h *Hook) closeAndWait(ctx context.Context, logger *slog.Logger, unit Unit) {
	logger = logger.With("unit", nameOf(unit))

	if !unit.IsActive() {
		h.forget(unit)
		metrics.RecordUnitClose(metrics.UnitCloseInactive)

		return
	}

	start := time.Now()

	unit.Close()

	err := wait.PollUntilContextTimeout(ctx, h.pollInterval, h.timeout, true,
		func(context.Context) (bool, error) {
			return !unit.IsActive(), nil
		},
	)

	switch {
	case err == nil:
		h.forget(unit)
		metrics.RecordUnitClose(metrics.UnitCloseClosed)

		logger.InfoContext(ctx, "unit closed", "duration", time.Since(start))
	case ctx.Err() != nil:
		metrics.RecordUnitClose(metrics.UnitCloseInterrupted)

		logger.WarnContext(ctx, "interrupted waiting for unit to become inactive",
			"waited", time.Since(start),
			"reason", ctx.Err(),
		)
	default:
		metrics.RecordUnitClose(metrics.UnitCloseTimedOut)

		logger.WarnContext(ctx, "timed out waiting for unit to become inactive",
			"timeout", h.timeout,
			"reason", err,
		)
	}
}

func (h *Hook) runAction(ctx context.Context, logger *slog.Logger, action Action) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordActionRun(metrics.ActionRunPanic)

			logger.ErrorContext(ctx, "shutdown action panicked",
				"action", nameOf(action),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	action.Run()
	metrics.RecordActionRun(metrics.ActionRunOK)

	logger.DebugContext(ctx, "shutdown action completed", "action", nameOf(action))
}

// onUnitClosing is the close observer subscribed for every registered unit.
// The unit may still be disposing resources on another goroutine, so it is
// kept in the closing set until Run has waited for it.
func (h *Hook) onUnitClosing(unit Unit) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.registered.remove(unit) {
		h.closing.add(unit)
	}
}

// forget drops a unit whose termination has been confirmed.
func (h *Hook) forget(unit Unit) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closing.remove(unit)
}

func (h *Hook) installIfNecessary() {
	if h.installer == nil || !h.installationEnabled.Load() {
		return
	}

	if !h.installed.CompareAndSwap(false, true) {
		return
	}

	h.installer.Install(h.Run)
	h.logger.Info("shutdown hook installed")
}

func (h *Hook) addAction(action Action) error {
	if err := validate(action, ErrNilAction); err != nil {
		return fmt.Errorf("add action: %w", err)
	}

	h.installIfNecessary()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inProgress {
		return fmt.Errorf("add action %s: %w", nameOf(action), ErrShutdownInProgress)
	}

	h.actions.add(action)

	return nil
}

func (h *Hook) removeAction(action Action) error {
	if err := validate(action, ErrNilAction); err != nil {
		return fmt.Errorf("remove action: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.inProgress {
		return fmt.Errorf("remove action %s: %w", nameOf(action), ErrShutdownInProgress)
	}

	h.actions.remove(action)

	return nil
}

// validate rejects nil (including typed nil pointers) and anything that is not
// a pointer.
func validate(v any, nilErr error) error {
	if v == nil {
		return nilErr
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nilErr
	}

	return checkIdentity(v)
}

type named interface {
	Name() string
}

func nameOf(v any) string {
	if n, ok := v.(named); ok {
		return n.Name()
	}

	if reflect.ValueOf(v).Kind() == reflect.Pointer {
		return fmt.Sprintf("%T@%p", v, v)
	}

	return fmt.Sprintf("%T", v)
}
