package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pentarchy/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config and governance policy.
// 2) Build app wiring (store, voters, bus, stream hub, rate limiter).
// 3) Serve HTTP and run the outbox relay / pending sweeper until signalled.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI(ctx)
	if err != nil {
		slog.Error("bootstrap api failed", "event", "api_bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("api shutdown close failed", "event", "api_close_failed", "error", err.Error())
		}
	}()

	if err := app.Run(ctx); err != nil {
		slog.Error("api stopped with error", "event", "api_run_failed", "error", err.Error())
		stop()
		os.Exit(1)
	}
}
