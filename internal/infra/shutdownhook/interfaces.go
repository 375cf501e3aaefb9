package shutdownhook

import "context"

// Unit is a closeable, observable lifecycle unit (an application context) whose
// termination the hook waits for. Units are tracked by identity, so
// implementations must be pointers.
type Unit interface {
	// IsActive reports whether the unit is still running or still terminating.
	IsActive() bool

	// Close starts terminating the unit. It must be idempotent and may return
	// before the unit becomes inactive.
	Close()

	// OnClose registers fn to be called when the unit begins terminating.
	// fn may be called synchronously when the unit is already terminating.
	OnClose(fn func(Unit))
}

// Action is a deferred cleanup operation run after all units are closed.
// Actions are tracked by identity, so implementations must be pointers.
type Action interface {
	Run()
}

// Installer attaches the hook body to the process termination mechanism.
type Installer interface {
	Install(run func(ctx context.Context))
}

// HandlerRegistry lets framework and library code register cleanup actions.
type HandlerRegistry interface {
	Add(action Action) error
	Remove(action Action) error
}

// FuncAction adapts a plain func to Action. Every FuncAction is a distinct
// action even when it wraps the same func.
type FuncAction struct {
	name string
	fn   func()
}

// NewAction returns a named action running fn.
func NewAction(name string, fn func()) *FuncAction {
	return &FuncAction{name: name, fn: fn}
}

// Name returns the action name used in logs.
func (a *FuncAction) Name() string {
	return a.name
}

// Run runs the wrapped func.
func (a *FuncAction) Run() {
	if a.fn != nil {
		a.fn()
	}
}
