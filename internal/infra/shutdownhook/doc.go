// Package shutdownhook coordinates graceful process shutdown.
//
// A Hook tracks lifecycle units (application contexts) and shutdown actions.
// When the process is asked to terminate, the installed hook body closes every
// registered unit and waits for it to become inactive, then waits for units
// that had already started closing, and finally runs the actions in reverse
// registration order. Each wait is bounded; timeouts and interruptions are
// logged and never abort the sequence.
//
// Registrations are rejected with ErrShutdownInProgress once the hook body has
// started, until Reset is called.
package shutdownhook
