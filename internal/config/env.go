package config

import "time"

// Env key constants. All configuration env vars use the GRACEHOOK_ prefix;
// duration values require explicit units (e.g. 50ms, 40s, 2h).

// Log level: debug, info, warn, error.
const envKeyLogLevel = "GRACEHOOK_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "GRACEHOOK_LOG_FORMAT"

// Port for health/readiness/status HTTP server.
const envKeyHTTPPort = "GRACEHOOK_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "GRACEHOOK_METRICS_PORT"

// How often the shutdown hook re-checks whether a closed unit became inactive.
const (
	envKeyClosePollInterval = "GRACEHOOK_CLOSE_POLL_INTERVAL"
	envMinClosePollInterval = time.Millisecond
)

// Upper bound for waiting on a single closed unit.
const (
	envKeyCloseTimeout = "GRACEHOOK_CLOSE_TIMEOUT"
	envMinCloseTimeout = time.Second
)

// Time budget for stopping the components of the application.
const (
	envKeyComponentShutdownTimeout = "GRACEHOOK_COMPONENT_SHUTDOWN_TIMEOUT"
	envMinComponentShutdownTimeout = 100 * time.Millisecond
)

// Pinger check interval.
const (
	envKeyPingerInterval = "GRACEHOOK_PINGER_INTERVAL"
	envMinPingerInterval = time.Second
)

// File whose presence asks the process to terminate, set up by a preStop hook.
const envKeyTerminationFile = "GRACEHOOK_TERMINATION_FILE"

// Cron expression for a planned restart; empty disables it.
const envKeyRestartSchedule = "GRACEHOOK_RESTART_SCHEDULE"

// IANA timezone of the restart schedule (e.g. Europe/Berlin).
const envKeyRestartTZ = "GRACEHOOK_RESTART_TZ"

// Max jitter added to the planned restart time; 0 disables jitter.
const (
	envKeyRestartJitterMax = "GRACEHOOK_RESTART_JITTER_MAX"
	envMinRestartJitterMax = 0
)
