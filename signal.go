package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns the run context for a command. The first
// SIGINT/SIGTERM cancels it: workers stop taking folders and in-flight
// folders finish their current request. A second signal exits at once.
// context.Cause reports which signal stopped the run. stop must be called
// when the command returns to release signal delivery.
func shutdownContext(parent context.Context, logger *slog.Logger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn("received signal, stopping after in-flight folders",
				slog.String("signal", sig.String()),
			)
			cancel(fmt.Errorf("%w: %s", context.Canceled, sig))
		case <-ctx.Done():
			return
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, exiting without draining",
				slog.String("signal", sig.String()),
			)
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		close(done)
		cancel(nil)
	}
}
