package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fogcast/cron-runner/internal/config"
	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/server"
	"github.com/fogcast/cron-runner/pkg/status"
)

// status serves /cronjob-status for the log written by cmd/cron.
func main() {
	logger.SetupLogger()
	log := logger.New("cron-status")

	cfg, err := config.Load(config.Dir())
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "config_failed").
			Msg("Failed to load configuration")
	}

	logPath := cfg.RunLogPath()
	srv, err := server.New(server.Options{
		Port:   cfg.Status.Port,
		Status: status.NewReader(logPath),
	}, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_creation_failed").
			Msg("Failed to create server")
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().
				Err(err).
				Str("action", "server_failed").
				Msg("Server failed to start")
		}
	}()
	log.Info().
		Str("log_path", logPath).
		Msg("Watching run log")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().
			Err(err).
			Str("action", "server_shutdown_failed").
			Msg("Failed to stop server")
	}
}
