package shutdown

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// SignalInstaller runs a hook body when the process receives a termination
// signal. A second signal while the body is running cancels its context.
type SignalInstaller struct {
	logger  *slog.Logger
	signals <-chan os.Signal
	once    sync.Once
	done    chan struct{}
}

// NewSignalInstaller creates an installer listening on signals, usually the channel returned by Notify.
func NewSignalInstaller(logger *slog.Logger, signals <-chan os.Signal) *SignalInstaller {
	return &SignalInstaller{
		logger:  logger,
		signals: signals,
		done:    make(chan struct{}),
	}
}

// Install starts waiting for a termination signal. Only the first call has an effect.
func (i *SignalInstaller) Install(run func(ctx context.Context)) {
	i.once.Do(func() {
		go i.wait(run)
	})
}

// Done returns a channel that is closed once the hook body has returned,
// or once the signal channel was closed without a signal.
func (i *SignalInstaller) Done() <-chan struct{} {
	return i.done
}

func (i *SignalInstaller) wait(run func(ctx context.Context)) {
	defer close(i.done)

	sig, ok := <-i.signals
	if !ok {
		i.logger.Info("signal channel closed, shutdown hook will not run")

		return
	}

	i.logger.Info("received termination signal, running shutdown hook", "signal", sig.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
		case sig, ok := <-i.signals:
			if !ok {
				return
			}

			i.logger.Warn("received second termination signal, interrupting shutdown hook", "signal", sig.String())
			cancel()
		}
	}()

	run(ctx)
}
