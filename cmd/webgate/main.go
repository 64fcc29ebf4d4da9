package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/careassist/webgate/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting webgate",
		"addr", cfg.HTTP.Addr,
		"api_base_url", cfg.API.BaseURL,
		"redis_enabled", cfg.Redis.Enabled,
		"audit_enabled", cfg.Postgres.Enabled,
		"dev", cfg.IsDev)

	container, err := bootstrap.NewContainer(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	server := bootstrap.StartHTTPServer(cfg.HTTP.Addr, container.Handler(), logger)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	// Shut down on a fresh context; the signal context is already canceled.
	return bootstrap.ShutdownHTTPServer(context.Background(), server, cfg.HTTP.ShutdownTimeout, logger)
}
