package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skillcoder/gracehook/internal/infra/shutdown"
)

type Server struct {
	logger     *slog.Logger
	appState   appstater
	checks     checker
	hook       hookStatuser
	port       string
	server     *http.Server
	ready      chan struct{}
	inShutdown atomic.Bool
}

// New creates a new HTTP server instance
func New(
	logger *slog.Logger,
	appState appstater,
	checks checker,
	hook hookStatuser,
	port string,
) *Server {
	if port == "" {
		port = defaultPort
	}

	return &Server{
		logger:   logger,
		appState: appState,
		checks:   checks,
		hook:     hook,
		port:     port,
		ready:    make(chan struct{}),
	}
}

var _ shutdown.Shutdowner = (*Server)(nil)

// Name returns the name of the server component
func (s *Server) Name() string {
	return "http-server"
}

// Handler returns the router with the probe and status endpoints
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get(pathHealthz, s.handleHealthz)
	router.Get(pathReadyz, s.handleReadyz)
	router.Get(pathStatus, s.handleStatus)
	router.Get(pathShutdownHook, s.handleShutdownHook)

	return router
}

// Start listens on the configured port and serves in a goroutine
func (s *Server) Start(ctx context.Context) error {
	if s.inShutdown.Load() {
		s.logger.InfoContext(ctx, "http server is shutting down, skipping start")

		return nil
	}

	addr := ":" + s.port
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	listener, err := listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("listen http tcp: %w", err)
	}

	s.logger.InfoContext(ctx, "http server listening", "addr", listener.Addr().String())

	go s.serve(ctx, s.server, listener)

	return nil
}

// Ping returns nil when the server is ready to serve.
func (s *Server) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
		return nil
	default:
		return fmt.Errorf("http server is not ready")
	}
}

// Ready returns a channel that is closed when the HTTP server is ready to serve requests
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.inShutdown.CompareAndSwap(false, true) {
		s.logger.ErrorContext(ctx, "http server is already shutting down, skipping shutdown")

		return nil
	}

	return shutdownServer(ctx, s.logger, s.server, "http server")
}

func (s *Server) serve(ctx context.Context, server *http.Server, listener net.Listener) {
	close(s.ready)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.ErrorContext(ctx, "http server error", "reason", err)
	}
}

func listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := &net.ListenConfig{
		KeepAliveConfig: net.KeepAliveConfig{
			Enable: true,
		},
	}

	return lc.Listen(ctx, "tcp", addr)
}

func shutdownServer(ctx context.Context, logger *slog.Logger, server *http.Server, name string) error {
	logger.InfoContext(ctx, "shutting down "+name)

	if server == nil {
		return nil
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.ErrorContext(ctx, "error shutting down "+name, "reason", err)

		return fmt.Errorf("%s shutdown: %w", name, err)
	}

	logger.InfoContext(ctx, name+" closed properly")

	return nil
}
