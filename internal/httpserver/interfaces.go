package httpserver

import (
	"time"

	"github.com/skillcoder/gracehook/internal/infra/appstate"
	"github.com/skillcoder/gracehook/internal/infra/pinger"
	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
)

// appstater is an internal interface for application state management
type appstater interface {
	GetState() appstate.State
	IsHealthy() bool
	IsReady() bool
	GetUptime() time.Duration
	GetStartTime() time.Time
}

// checker aggregates the results of the registered pingers
type checker interface {
	IsHealthy() bool
	IsReady() bool
	GetAllStats() map[string]pinger.Statistics
}

type hookStatuser interface {
	Status() shutdownhook.Status
}
