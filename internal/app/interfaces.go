package app

import (
	"context"
	"time"

	"github.com/skillcoder/gracehook/internal/infra/appstate"
	"github.com/skillcoder/gracehook/internal/infra/pinger"
	"github.com/skillcoder/gracehook/internal/infra/shutdown"
	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
)

// appstater defines the interface for application state management
type appstater interface {
	shutdownhook.Unit
	RegisterShutdowner(shutdowner shutdown.Shutdowner) error
	SetStarting(ctx context.Context) error
	SetRunning(ctx context.Context) error
	SetFailed(ctx context.Context) error
	Terminated() <-chan struct{}
	GetStartTime() time.Time
	GetState() appstate.State
	GetUptime() time.Duration
	IsHealthy() bool
	IsReady() bool
}

// hooker is the part of the shutdown hook the application drives
type hooker interface {
	pinger.Pinger
	RegisterUnit(unit shutdownhook.Unit) error
	DeregisterUnit(unit shutdownhook.Unit) error
	Handlers() *shutdownhook.Handlers
	Status() shutdownhook.Status
}

// installer reports when the installed hook body has finished
type installer interface {
	Done() <-chan struct{}
}

type component interface {
	Name() string
	Start(ctx context.Context) error
	Ready() <-chan struct{}
	shutdown.Shutdowner
}
