package httpserver

import "time"

const (
	defaultPort = "8080"

	pathHealthz      = "/-/healthz"
	pathReadyz       = "/-/readyz"
	pathStatus       = "/-/status"
	pathShutdownHook = "/-/shutdown-hook"
	pathMetrics      = "/metrics"

	readTimeout       = 3 * time.Second
	readHeaderTimeout = 3 * time.Second
	writeTimeout      = 5 * time.Second
	idleTimeout       = 60 * time.Second
	maxHeaderBytes    = 1 << 12 // 4kb
)
