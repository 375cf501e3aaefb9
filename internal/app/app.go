package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/skillcoder/gracehook/internal/config"
	"github.com/skillcoder/gracehook/internal/httpserver"
	"github.com/skillcoder/gracehook/internal/infra/cronparser"
	"github.com/skillcoder/gracehook/internal/infra/pinger"
	"github.com/skillcoder/gracehook/internal/infra/shutdown"
	"github.com/skillcoder/gracehook/internal/infra/shutdownhook"
	"github.com/skillcoder/gracehook/internal/logic/restart"
)

type App struct {
	logger     *slog.Logger
	cfg        *config.Config
	appState   appstater
	hook       hooker
	installer  installer
	pingers    *pinger.Service
	components []component
}

// New creates a new application instance with all dependencies wired.
func New(
	logger *slog.Logger,
	cfg *config.Config,
	appState appstater,
	hook hooker,
	installer installer,
) (*App, error) {
	pingers := pinger.New(logger, cfg.PingerInterval)

	components := []component{
		httpserver.New(logger, appState, pingers, hook, cfg.HTTPPort),
		httpserver.NewMetricsServer(logger, cfg.MetricsPort),
	}

	if cfg.RestartEnabled() {
		components = append(components, restart.New(
			logger,
			cronparser.New(),
			cfg.RestartSchedule,
			cfg.RestartTZ,
			cfg.RestartJitterMax,
			shutdown.SignalSelf,
		))
	}

	if err := pingers.Register(hook); err != nil {
		return nil, fmt.Errorf("register hook pinger: %w", err)
	}

	for _, c := range components {
		p, ok := c.(pinger.Pinger)
		if !ok {
			continue
		}

		if err := pingers.Register(p); err != nil {
			return nil, fmt.Errorf("register %s pinger: %w", c.Name(), err)
		}
	}

	// pingers start last so their first round sees the other components up
	components = append(components, pingers)

	return &App{
		logger:     logger,
		cfg:        cfg,
		appState:   appState,
		hook:       hook,
		installer:  installer,
		pingers:    pingers,
		components: components,
	}, nil
}

// Run starts the application and blocks until the shutdown hook has finished.
func (a *App) Run(ctx context.Context) error {
	if shutdown.CheckTerminationFile(ctx, a.logger, a.cfg.TerminationFile) {
		a.logger.InfoContext(ctx, "termination requested before start, exiting")

		return nil
	}

	if err := a.hook.RegisterUnit(a.appState); err != nil {
		return fmt.Errorf("%w: %w", ErrRegisterApplication, err)
	}

	if err := a.registerActions(); err != nil {
		return err
	}

	if err := a.appState.SetStarting(ctx); err != nil {
		return fmt.Errorf("set starting: %w", err)
	}

	// component loops run until the application begins closing
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.appState.OnClose(func(shutdownhook.Unit) {
		cancel()
	})

	a.logger.InfoContext(ctx, "starting application", "components", len(a.components))

	started, err := a.start(runCtx)
	if err != nil {
		cancel()
		a.fail(ctx, started)

		return err
	}

	select {
	case <-allChannelsClose(ctx, a.logger, a.readyChannels()...):
		if err := a.appState.SetRunning(ctx); err != nil {
			a.logger.WarnContext(ctx, "application closed while starting", "reason", err)
		} else {
			a.logger.InfoContext(ctx, "application is running", "startup", a.appState.GetUptime())
		}
	case <-a.appState.Terminated():
		a.logger.WarnContext(ctx, "application terminated while starting")
	}

	<-a.installer.Done()

	return nil
}

// start starts the components in order and hands every started one to the
// application state, which stops them in reverse order when it closes.
func (a *App) start(ctx context.Context) ([]shutdown.Shutdowner, error) {
	started := make([]shutdown.Shutdowner, 0, len(a.components))

	for _, c := range a.components {
		if err := c.Start(ctx); err != nil {
			return started, fmt.Errorf("%w %s: %w", ErrStartComponent, c.Name(), err)
		}

		started = append(started, c)

		if err := a.appState.RegisterShutdowner(c); err != nil {
			return started, fmt.Errorf("register shutdowner %s: %w", c.Name(), err)
		}
	}

	return started, nil
}

// fail stops what was started, marks the application failed and removes it
// from the shutdown hook so the hook does not wait for it.
func (a *App) fail(ctx context.Context, started []shutdown.Shutdowner) {
	err := shutdown.GracefulShutdown(ctx, a.logger, a.cfg.ComponentShutdownTimeout, started)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to stop started components", "reason", err)
	}

	if err := a.appState.SetFailed(ctx); err != nil {
		a.logger.WarnContext(ctx, "failed to mark application failed", "reason", err)

		return
	}

	if err := a.hook.DeregisterUnit(a.appState); err != nil && !errors.Is(err, shutdownhook.ErrShutdownInProgress) {
		a.logger.ErrorContext(ctx, "failed to deregister application", "reason", err)
	}
}

// registerActions adds the final steps of the process. Actions run in
// reverse order, so the report is logged before stdout is synced.
func (a *App) registerActions() error {
	handlers := a.hook.Handlers()

	actions := []shutdownhook.Action{
		shutdownhook.NewAction("sync-stdout", func() {
			_ = os.Stdout.Sync()
		}),
		shutdownhook.NewAction("final-report", func() {
			a.logger.Info("application stopped",
				"uptime", a.appState.GetUptime(),
				"state", a.appState.GetState(),
				"checks", len(a.pingers.GetAllStats()),
			)
		}),
	}

	for _, action := range actions {
		if err := handlers.Add(action); err != nil {
			return fmt.Errorf("add shutdown action: %w", err)
		}
	}

	return nil
}

func (a *App) readyChannels() []<-chan struct{} {
	chans := make([]<-chan struct{}, 0, len(a.components))

	for _, c := range a.components {
		chans = append(chans, c.Ready())
	}

	return chans
}

// allChannelsClose returns a channel that is closed once every given channel
// is closed. A done ctx is only logged: readiness channels always close.
func allChannelsClose(ctx context.Context, logger *slog.Logger, chans ...<-chan struct{}) <-chan struct{} {
	out := make(chan struct{})

	var wg sync.WaitGroup

	for _, ch := range chans {
		wg.Add(1)

		go func() {
			defer wg.Done()

			<-ch
		}()
	}

	go func() {
		defer close(out)

		done := make(chan struct{})

		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			return
		case <-ctx.Done():
			logger.DebugContext(ctx, "context done while waiting for components readiness")
		}

		<-done
	}()

	return out
}
