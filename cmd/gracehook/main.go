package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/skillcoder/gracehook/internal/app"
	"github.com/skillcoder/gracehook/internal/config"
	"github.com/skillcoder/gracehook/internal/infra/appstate"
	"github.com/skillcoder/gracehook/internal/infra/logging"
	"github.com/skillcoder/gracehook/internal/infra/shutdown"
	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
)

func main() {
	appStart := time.Now()
	// Start listening for signals immediately as first thing, before any other initialization
	signals := shutdown.Notify()
	ctx := context.Background()

	err := run(ctx, signals, appStart)
	if err != nil {
		slog.ErrorContext(ctx, "failed to run", "reason", err)
		// Give the logger some time to flush
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "bye")
}

func run(ctx context.Context, signals <-chan os.Signal, appStart time.Time) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogFormat, cfg.LogLevel)

	installer := shutdown.NewSignalInstaller(logger, signals)
	hook := shutdownhook.New(logger, installer,
		shutdownhook.WithPollInterval(cfg.ClosePollInterval),
		shutdownhook.WithTimeout(cfg.CloseTimeout),
	)
	hook.EnableInstallation()

	appState := appstate.New(logger, appStart, cfg.TerminationFile, cfg.ComponentShutdownTimeout)

	application, err := app.New(logger, cfg, appState, hook, installer)
	if err != nil {
		return fmt.Errorf("new application: %w", err)
	}

	return application.Run(ctx)
}
