package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fogcast/cron-runner/internal/app"
	"github.com/fogcast/cron-runner/internal/config"
	"github.com/fogcast/cron-runner/pkg/jobs"
	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/server"
	"github.com/fogcast/cron-runner/pkg/status"
)

// crond triggers a tick every minute from inside the process, for deployments without system cron.
// It also serves the status endpoints and Prometheus metrics.
func main() {
	logger.SetupLogger()
	boot := logger.New("crond")

	cfg, err := config.Load(config.Dir())
	if err != nil {
		boot.Fatal().
			Err(err).
			Str("action", "config_failed").
			Msg("Failed to load configuration")
	}

	// crond keeps one log for its whole lifetime; the status reader still finds the latest tick by its marker
	closer, err := logger.OpenRunLog(cfg.LogDir)
	if err != nil {
		boot.Fatal().
			Err(err).
			Str("action", "log_open_failed").
			Msg("Failed to open run log")
	}
	defer func() { _ = closer.Close() }()
	log := logger.New("crond")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.NewRuntime(ctx, cfg)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "runtime_failed").
			Msg("Failed to set up scheduler")
	}
	defer func() { _ = rt.Close() }()

	if err := rt.Scheduler.ApplyArguments(os.Args); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "invalid_arguments").
			Msg("Invalid arguments")
	}

	manager, err := jobs.NewJobManager(rt.Scheduler, jobs.EveryMinute)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "manager_failed").
			Msg("Failed to create job manager")
	}

	port := cfg.Metrics.Port
	if port == "" {
		port = cfg.Status.Port
	}
	srv, err := server.New(server.Options{
		Port:    port,
		Status:  status.NewReader(cfg.RunLogPath()),
		Metrics: true,
	}, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_creation_failed").
			Msg("Failed to create server")
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().
				Err(err).
				Str("action", "server_failed").
				Msg("Status server stopped")
		}
	}()

	manager.Start()
	log.Info().
		Strs("jobs", rt.Scheduler.Registry().Names()).
		Msg("Cron daemon started")

	<-ctx.Done()

	log.Info().Msg("Shutting down cron daemon...")
	manager.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().
			Err(err).
			Str("action", "server_shutdown_failed").
			Msg("Failed to stop status server")
	}
	log.Info().Msg("Cron daemon stopped")
}
