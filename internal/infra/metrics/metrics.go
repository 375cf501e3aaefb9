package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit close outcomes reported by the shutdown hook.
const (
	UnitCloseClosed      = "closed"
	UnitCloseInactive    = "inactive"
	UnitCloseTimedOut    = "timed_out"
	UnitCloseInterrupted = "interrupted"
)

// Shutdown action outcomes.
const (
	ActionRunOK    = "ok"
	ActionRunPanic = "panic"
)

var unitsRegisteredTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "gracehook_units_registered_total",
		Help: "Total number of lifecycle units registered with the shutdown hook.",
	},
)

var unitCloseTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "gracehook_unit_close_total",
		Help: "Total number of lifecycle units processed by the shutdown hook, by outcome " +
			"(closed, inactive, timed_out, interrupted).",
	},
	[]string{"outcome"},
)

var actionRunTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "gracehook_action_run_total",
		Help: "Total number of shutdown actions run by the shutdown hook, by outcome.",
	},
	[]string{"outcome"},
)

var shutdownDurationSeconds = promauto.With(prometheus.DefaultRegisterer).NewHistogram(
	prometheus.HistogramOpts{
		Name:    "gracehook_shutdown_duration_seconds",
		Help:    "Duration of a complete shutdown hook run.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	},
)

var plannedRestartTimestamp = promauto.With(prometheus.DefaultRegisterer).NewGauge(
	prometheus.GaugeOpts{
		Name: "gracehook_planned_restart_timestamp_seconds",
		Help: "Unix time of the next planned restart, 0 when none is scheduled.",
	},
)

// RecordUnitRegistered increments the counter of registered lifecycle units.
func RecordUnitRegistered() {
	unitsRegisteredTotal.Inc()
}

// RecordUnitClose counts a unit processed during shutdown with the given outcome.
func RecordUnitClose(outcome string) {
	unitCloseTotal.WithLabelValues(outcome).Inc()
}

// RecordActionRun counts a shutdown action run with the given outcome.
func RecordActionRun(outcome string) {
	actionRunTotal.WithLabelValues(outcome).Inc()
}

// ObserveShutdownDuration records how long a shutdown hook run took.
func ObserveShutdownDuration(d time.Duration) {
	shutdownDurationSeconds.Observe(d.Seconds())
}

// SetPlannedRestart publishes the next planned restart time; the zero time clears it.
func SetPlannedRestart(at time.Time) {
	if at.IsZero() {
		plannedRestartTimestamp.Set(0)

		return
	}

	plannedRestartTimestamp.Set(float64(at.Unix()))
}
