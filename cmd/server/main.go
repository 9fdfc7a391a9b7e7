// Package main is the entry point for the trading portfolio tracker API.
//
// Startup sequence:
//  1. Load configuration from the environment (.env supported)
//  2. Initialize logging
//  3. Wire databases, repositories, services and jobs via the DI container
//  4. Start the HTTP server and the job scheduler
//  5. Wait for SIGINT/SIGTERM and shut down gracefully
//
// Data lives in two SQLite databases under TRACKER_DATA_DIR:
//   - tracker.db: users, ledger transactions, holdings and watchlists
//   - cache.db: upstream market data responses
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradefolio/tracker/internal/config"
	"github.com/tradefolio/tracker/internal/di"
	"github.com/tradefolio/tracker/internal/server"
	"github.com/tradefolio/tracker/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting portfolio tracker")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	container.Scheduler.Start()

	// purge entries that expired while the server was down
	go func() {
		if err := container.Scheduler.RunNow(jobs.CacheCleanup); err != nil {
			log.Warn().Err(err).Msg("Startup cache cleanup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	container.Scheduler.Stop()

	// close websocket clients first so Shutdown does not wait on them
	container.Hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
