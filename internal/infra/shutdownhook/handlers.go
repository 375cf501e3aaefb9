package shutdownhook

import "context"

// Handlers is the shutdown action registry of a Hook. Actions run after all
// units are closed, in reverse order of registration.
type Handlers struct {
	hook *Hook
}

var _ HandlerRegistry = (*Handlers)(nil)

// Add registers action. Adding the same action twice keeps a single entry at
// its original position. Fails with ErrShutdownInProgress once Run started.
func (hs *Handlers) Add(action Action) error {
	return hs.hook.addAction(action)
}

// Remove unregisters action. Removing an unknown action is a no-op.
// Fails with ErrShutdownInProgress once Run started.
func (hs *Handlers) Remove(action Action) error {
	return hs.hook.removeAction(action)
}

// Run runs the hook and resets it afterwards, leaving it ready for new
// registrations.
func (hs *Handlers) Run(ctx context.Context) {
	hs.hook.Run(ctx)
	hs.hook.Reset()
}
