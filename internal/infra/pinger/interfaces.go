package pinger

import (
	"context"
	"time"
)

// Pinger defines the interface for health check pingers
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// A pinger is critical for readiness and health unless it says otherwise
// through these optional interfaces.
type readyCriticalPinger interface {
	PingerReadyCritical() bool
}

type healthCriticalPinger interface {
	PingerCritical() bool
}

// timeoutPinger overrides the default per-ping timeout.
type timeoutPinger interface {
	PingerTimeout() time.Duration
}
