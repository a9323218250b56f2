package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"linkpulse/internal"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Real environment variables take precedence over .env.
	envLoaded := godotenv.Load() == nil

	app, err := internal.NewApp()
	if err != nil {
		log.Fatalf("linkpulse: %v", err)
	}
	logger := app.Logger
	if envLoaded {
		logger.Info("Loaded environment from .env")
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		logger.Error("Migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := app.StartAsync(); err != nil {
		logger.Error("Failed to start server", slog.Any("error", err))
		os.Exit(1)
	}

	os.Exit(run(app, logger))
}

// run blocks until a termination signal and returns the process exit code.
func run(app *internal.Application, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	code := 0
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
		code = 1
	}
	if err := app.Cache.Close(); err != nil {
		logger.Warn("Closing link cache failed", slog.Any("error", err))
	}
	return code
}
