package shutdownhook_test

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
)

const (
	testPollInterval = 5 * time.Millisecond
	testTimeout      = 2 * time.Second
)

// recorder collects the order of observed operations.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

// fakeUnit is a lifecycle unit whose termination completes after closeDelay,
// or never when hang is set.
type fakeUnit struct {
	name       string
	rec        *recorder
	closeDelay time.Duration
	hang       bool

	mu         sync.Mutex
	active     bool
	closeCalls int
	observers  []func(shutdownhook.Unit)
}

func newFakeUnit(name string, rec *recorder) *fakeUnit {
	return &fakeUnit{
		name:   name,
		rec:    rec,
		active: true,
	}
}

func (u *fakeUnit) Name() string {
	return u.name
}

func (u *fakeUnit) IsActive() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.active
}

func (u *fakeUnit) OnClose(fn func(shutdownhook.Unit)) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.observers = append(u.observers, fn)
}

func (u *fakeUnit) Close() {
	u.mu.Lock()
	u.closeCalls++
	first := u.closeCalls == 1
	observers := slices.Clone(u.observers)
	u.mu.Unlock()

	if !first {
		return
	}

	if u.rec != nil {
		u.rec.add("close(" + u.name + ")")
	}

	for _, fn := range observers {
		fn(u)
	}

	switch {
	case u.hang:
	case u.closeDelay == 0:
		u.setInactive()
	default:
		go func() {
			time.Sleep(u.closeDelay)
			u.setInactive()
		}()
	}
}

func (u *fakeUnit) setInactive() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.active = false
}

func (u *fakeUnit) closeCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.closeCalls
}

type fakeInstaller struct {
	installs atomic.Int32
	run      func(ctx context.Context)
}

func (i *fakeInstaller) Install(run func(ctx context.Context)) {
	i.installs.Add(1)
	i.run = run
}

func newTestHook(installer shutdownhook.Installer, opts ...shutdownhook.Option) *shutdownhook.Hook {
	opts = append([]shutdownhook.Option{
		shutdownhook.WithPollInterval(testPollInterval),
		shutdownhook.WithTimeout(testTimeout),
	}, opts...)

	return shutdownhook.New(slog.Default(), installer, opts...)
}

func recordingAction(rec *recorder, name string) *shutdownhook.FuncAction {
	return shutdownhook.NewAction(name, func() {
		rec.add(name + "()")
	})
}

func TestHook_RegisterUnit(t *testing.T) {
	t.Parallel()

	t.Run("registered unit is reported", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := newFakeUnit("u1", nil)

		require.False(t, hook.IsRegistered(unit))
		require.NoError(t, hook.RegisterUnit(unit))
		require.True(t, hook.IsRegistered(unit))
		require.Equal(t, 1, hook.Status().Registered)
	})

	t.Run("registering twice keeps one entry", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := newFakeUnit("u1", nil)

		require.NoError(t, hook.RegisterUnit(unit))
		require.NoError(t, hook.RegisterUnit(unit))
		require.Equal(t, 1, hook.Status().Registered)
	})

	t.Run("nil unit is rejected", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)

		require.ErrorIs(t, hook.RegisterUnit(nil), shutdownhook.ErrNilUnit)

		var typedNil *fakeUnit
		require.ErrorIs(t, hook.RegisterUnit(typedNil), shutdownhook.ErrNilUnit)
	})

	t.Run("unit that starts closing leaves registered set", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := newFakeUnit("u1", nil)
		unit.hang = true

		require.NoError(t, hook.RegisterUnit(unit))

		unit.Close()

		require.False(t, hook.IsRegistered(unit))
		require.Equal(t, shutdownhook.Status{Closing: 1}, hook.Status())
	})

	t.Run("unit notifying on subscribe is tracked as closing", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := &notifyingUnit{fakeUnit: newFakeUnit("u1", nil)}
		unit.hang = true
		unit.Close()

		registered := make(chan error, 1)

		go func() {
			registered <- hook.RegisterUnit(unit)
		}()

		select {
		case err := <-registered:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("register unit blocked")
		}

		require.False(t, hook.IsRegistered(unit))
		require.Equal(t, shutdownhook.Status{Closing: 1}, hook.Status())
	})
}

// notifyingUnit calls close observers right away once it is closing.
type notifyingUnit struct {
	*fakeUnit
}

func (u *notifyingUnit) OnClose(fn func(shutdownhook.Unit)) {
	if u.closeCount() > 0 {
		fn(u)

		return
	}

	u.fakeUnit.OnClose(fn)
}

func TestHook_DeregisterUnit(t *testing.T) {
	t.Parallel()

	t.Run("active unit fails with illegal state", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := newFakeUnit("u1", nil)
		require.NoError(t, hook.RegisterUnit(unit))

		err := hook.DeregisterUnit(unit)
		require.ErrorIs(t, err, shutdownhook.ErrUnitActive)
		require.ErrorIs(t, err, shutdownhook.ErrIllegalState)
		require.True(t, hook.IsRegistered(unit))
	})

	t.Run("inactive unit is removed", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := newFakeUnit("u1", nil)
		require.NoError(t, hook.RegisterUnit(unit))

		unit.setInactive()

		require.NoError(t, hook.DeregisterUnit(unit))
		require.False(t, hook.IsRegistered(unit))
	})
}

func TestHook_Run(t *testing.T) {
	t.Parallel()

	t.Run("closes units in order then runs actions in reverse", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)

		u1 := newFakeUnit("U1", rec)
		u1.closeDelay = 20 * time.Millisecond
		u2 := newFakeUnit("U2", rec)
		u2.closeDelay = 20 * time.Millisecond

		require.NoError(t, hook.RegisterUnit(u1))
		require.NoError(t, hook.RegisterUnit(u2))
		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A1")))
		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A2")))

		hook.Run(t.Context())

		require.Equal(t, []string{"close(U1)", "close(U2)", "A2()", "A1()"}, rec.all())
		require.False(t, u1.IsActive())
		require.False(t, u2.IsActive())
		require.Equal(t, 1, u1.closeCount())
		require.Equal(t, 1, u2.closeCount())
	})

	t.Run("actions run in reverse registration order", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)

		for _, name := range []string{"A", "B", "C"} {
			require.NoError(t, hook.Handlers().Add(recordingAction(rec, name)))
		}

		hook.Run(t.Context())

		require.Equal(t, []string{"C()", "B()", "A()"}, rec.all())
	})

	t.Run("registered units are closed before closing units", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)

		closing := newFakeUnit("closing", nil)
		closing.closeDelay = 50 * time.Millisecond
		registered := newFakeUnit("registered", rec)

		require.NoError(t, hook.RegisterUnit(closing))
		require.NoError(t, hook.RegisterUnit(registered))

		closing.Close()

		var closedBeforeWait bool

		require.NoError(t, hook.Handlers().Add(shutdownhook.NewAction("check", func() {
			closedBeforeWait = !closing.IsActive()
		})))

		hook.Run(t.Context())

		require.Equal(t, []string{"close(registered)"}, rec.all())
		require.True(t, closedBeforeWait, "closing unit must be awaited before actions run")
		require.Zero(t, hook.Status().Closing)
	})

	t.Run("inactive unit is not closed", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)
		unit := newFakeUnit("u1", nil)
		require.NoError(t, hook.RegisterUnit(unit))
		unit.setInactive()

		hook.Run(t.Context())

		require.Zero(t, unit.closeCount())
	})

	t.Run("unit that never stops does not block others", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil, shutdownhook.WithTimeout(100*time.Millisecond))

		stuck := newFakeUnit("stuck", rec)
		stuck.hang = true
		next := newFakeUnit("next", rec)

		require.NoError(t, hook.RegisterUnit(stuck))
		require.NoError(t, hook.RegisterUnit(next))
		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A1")))

		start := time.Now()

		hook.Run(t.Context())

		require.Less(t, time.Since(start), testTimeout)
		require.Equal(t, []string{"close(stuck)", "close(next)", "A1()"}, rec.all())
		require.True(t, stuck.IsActive())
		require.False(t, next.IsActive())
	})

	t.Run("cancelled context interrupts waits but still closes and runs actions", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil, shutdownhook.WithTimeout(time.Hour))

		stuck := newFakeUnit("stuck", rec)
		stuck.hang = true
		other := newFakeUnit("other", rec)
		other.hang = true

		require.NoError(t, hook.RegisterUnit(stuck))
		require.NoError(t, hook.RegisterUnit(other))
		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A1")))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		done := make(chan struct{})

		go func() {
			defer close(done)

			hook.Run(ctx)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("run did not return after interruption")
		}

		require.Equal(t, []string{"close(stuck)", "close(other)", "A1()"}, rec.all())
	})

	t.Run("panicking action does not stop the others", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)

		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A1")))
		require.NoError(t, hook.Handlers().Add(shutdownhook.NewAction("boom", func() {
			panic("boom")
		})))
		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A3")))

		require.NotPanics(t, func() {
			hook.Run(t.Context())
		})
		require.Equal(t, []string{"A3()", "A1()"}, rec.all())
	})
}

func TestHook_MutationsDuringShutdown(t *testing.T) {
	t.Parallel()

	hook := newTestHook(nil)
	registered := newFakeUnit("registered", nil)
	action := shutdownhook.NewAction("action", func() {})

	require.NoError(t, hook.RegisterUnit(registered))
	require.NoError(t, hook.Handlers().Add(action))

	hook.Run(t.Context())

	require.True(t, hook.Status().InProgress)
	require.ErrorIs(t, hook.RegisterUnit(newFakeUnit("late", nil)), shutdownhook.ErrShutdownInProgress)
	require.ErrorIs(t, hook.DeregisterUnit(registered), shutdownhook.ErrShutdownInProgress)
	require.ErrorIs(t, hook.Handlers().Add(shutdownhook.NewAction("late", func() {})), shutdownhook.ErrShutdownInProgress)
	require.ErrorIs(t, hook.Handlers().Remove(action), shutdownhook.ErrIllegalState)
	require.ErrorIs(t, hook.Ping(t.Context()), shutdownhook.ErrShutdownInProgress)
}

func TestHook_Reset(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	hook := newTestHook(nil)

	before := newFakeUnit("before", nil)
	before.hang = true

	require.NoError(t, hook.RegisterUnit(before))
	require.NoError(t, hook.Handlers().Add(recordingAction(rec, "old")))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	hook.Run(ctx)

	hook.Reset()

	require.False(t, hook.IsRegistered(before))
	require.Equal(t, shutdownhook.Status{}, hook.Status())
	require.NoError(t, hook.Ping(t.Context()))

	after := newFakeUnit("after", rec)
	require.NoError(t, hook.RegisterUnit(after))
	require.NoError(t, hook.Handlers().Add(recordingAction(rec, "new")))

	hook.Run(t.Context())

	require.Equal(t, []string{"old()", "close(after)", "new()"}, rec.all())
}

func TestHandlers(t *testing.T) {
	t.Parallel()

	t.Run("same action is added once", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)
		action := recordingAction(rec, "A")

		require.NoError(t, hook.Handlers().Add(action))
		require.NoError(t, hook.Handlers().Add(action))

		hook.Run(t.Context())

		require.Equal(t, []string{"A()"}, rec.all())
	})

	t.Run("actions wrapping the same func are distinct", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		fn := func() { calls.Add(1) }
		hook := newTestHook(nil)

		require.NoError(t, hook.Handlers().Add(shutdownhook.NewAction("a", fn)))
		require.NoError(t, hook.Handlers().Add(shutdownhook.NewAction("a", fn)))

		hook.Run(t.Context())

		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("removed action does not run", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)
		keep := recordingAction(rec, "keep")
		drop := recordingAction(rec, "drop")

		require.NoError(t, hook.Handlers().Add(keep))
		require.NoError(t, hook.Handlers().Add(drop))
		require.NoError(t, hook.Handlers().Remove(drop))
		require.NoError(t, hook.Handlers().Remove(recordingAction(rec, "unknown")))

		hook.Run(t.Context())

		require.Equal(t, []string{"keep()"}, rec.all())
	})

	t.Run("invalid actions are rejected", func(t *testing.T) {
		t.Parallel()

		hook := newTestHook(nil)

		require.ErrorIs(t, hook.Handlers().Add(nil), shutdownhook.ErrNilAction)
		require.ErrorIs(t, hook.Handlers().Add(sliceAction{1}), shutdownhook.ErrNotComparable)
		require.ErrorIs(t, hook.Handlers().Add(holderAction{v: []int{1}}), shutdownhook.ErrNotComparable)
		require.ErrorIs(t, hook.Handlers().Remove(nil), shutdownhook.ErrNilAction)
		require.Zero(t, hook.Status().Actions)
	})

	t.Run("value actions are rejected instead of merged", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		hook := newTestHook(nil)

		require.ErrorIs(t, hook.Handlers().Add(valueAction{id: 1, calls: &calls}), shutdownhook.ErrNotComparable)
		require.ErrorIs(t, hook.Handlers().Add(valueAction{id: 1, calls: &calls}), shutdownhook.ErrNotComparable)
		require.ErrorIs(t, hook.Handlers().Remove(valueAction{id: 1, calls: &calls}), shutdownhook.ErrNotComparable)

		require.NoError(t, hook.Handlers().Add(&valueAction{id: 1, calls: &calls}))
		require.NoError(t, hook.Handlers().Add(&valueAction{id: 1, calls: &calls}))

		hook.Run(t.Context())

		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("run resets the hook", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		hook := newTestHook(nil)
		unit := newFakeUnit("u1", rec)

		require.NoError(t, hook.RegisterUnit(unit))
		require.NoError(t, hook.Handlers().Add(recordingAction(rec, "A")))

		hook.Handlers().Run(t.Context())

		require.Equal(t, []string{"close(u1)", "A()"}, rec.all())
		require.Equal(t, shutdownhook.Status{}, hook.Status())
		require.NoError(t, hook.RegisterUnit(newFakeUnit("u2", nil)))
	})
}

type sliceAction []int

func (sliceAction) Run() {}

type holderAction struct {
	v any
}

func (holderAction) Run() {}

type valueAction struct {
	id    int
	calls *atomic.Int32
}

func (a valueAction) Run() {
	a.calls.Add(1)
}

func TestHook_Installation(t *testing.T) {
	t.Parallel()

	t.Run("not installed until enabled", func(t *testing.T) {
		t.Parallel()

		installer := &fakeInstaller{}
		hook := newTestHook(installer)

		require.NoError(t, hook.RegisterUnit(newFakeUnit("u1", nil)))
		require.NoError(t, hook.Handlers().Add(shutdownhook.NewAction("a", func() {})))
		require.Zero(t, installer.installs.Load())
		require.False(t, hook.Status().Installed)
	})

	t.Run("installed once on first use", func(t *testing.T) {
		t.Parallel()

		installer := &fakeInstaller{}
		hook := newTestHook(installer)
		hook.EnableInstallation()

		require.NoError(t, hook.Handlers().Remove(shutdownhook.NewAction("a", func() {})))
		require.Zero(t, installer.installs.Load())

		require.NoError(t, hook.RegisterUnit(newFakeUnit("u1", nil)))
		require.NoError(t, hook.RegisterUnit(newFakeUnit("u2", nil)))
		require.NoError(t, hook.Handlers().Add(shutdownhook.NewAction("a", func() {})))

		require.Equal(t, int32(1), installer.installs.Load())
		require.True(t, hook.Status().Installed)
	})

	t.Run("installed body runs the hook", func(t *testing.T) {
		t.Parallel()

		rec := &recorder{}
		installer := &fakeInstaller{}
		hook := newTestHook(installer)
		hook.EnableInstallation()

		require.NoError(t, hook.RegisterUnit(newFakeUnit("u1", rec)))
		require.NotNil(t, installer.run)

		installer.run(t.Context())

		require.Equal(t, []string{"close(u1)"}, rec.all())
		require.True(t, hook.Status().InProgress)
	})
}

func TestHook_ConcurrentRegistrationDuringRun(t *testing.T) {
	t.Parallel()

	const workers = 50

	hook := newTestHook(nil)
	units := make([]*fakeUnit, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup

	start := make(chan struct{})

	for i := range workers {
		units[i] = newFakeUnit("u", nil)

		wg.Add(1)

		go func() {
			defer wg.Done()

			<-start

			errs[i] = hook.RegisterUnit(units[i])
		}()
	}

	close(start)
	hook.Run(t.Context())
	wg.Wait()

	for i := range workers {
		if errs[i] == nil {
			require.Equal(t, 1, units[i].closeCount(), "unit %d registered before run must be closed", i)

			continue
		}

		require.ErrorIs(t, errs[i], shutdownhook.ErrShutdownInProgress)
		require.Zero(t, units[i].closeCount(), "rejected unit %d must not be closed", i)
	}
}
