package appstate

import "errors"

var (
	// ErrInvalidStateTransition is returned when the requested state cannot follow the current one
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrAlreadyTerminated is returned when the application is terminating or terminated
	ErrAlreadyTerminated = errors.New("application already terminated")

	// ErrNilShutdowner is returned when registering a nil component
	ErrNilShutdowner = errors.New("shutdowner cannot be nil")
)
