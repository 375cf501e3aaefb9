package shutdownhook

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalState is the parent of all errors caused by calling the hook in a state that forbids the call
	ErrIllegalState = errors.New("illegal state")

	// ErrShutdownInProgress is returned when mutating the hook after Run has started
	ErrShutdownInProgress = fmt.Errorf("%w: shutdown in progress", ErrIllegalState)

	// ErrUnitActive is returned when deregistering a unit that is still active
	ErrUnitActive = fmt.Errorf("%w: cannot deregister active unit", ErrIllegalState)

	ErrNilUnit       = errors.New("unit must not be nil")
	ErrNilAction     = errors.New("action must not be nil")
	ErrNotComparable = errors.New("value has no identity, use a pointer")
)
