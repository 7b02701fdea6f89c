package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fogcast/cron-runner/internal/app"
	"github.com/fogcast/cron-runner/internal/config"
	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
)

// transfer replays every CSV run directory below data_dir into the configured time-series sink.
func main() {
	logger.SetupLogger()
	log := logger.New("csv-transfer")

	cfg, err := config.Load(config.Dir())
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "config_failed").
			Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, err := app.OpenSink(ctx, cfg)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "sink_failed").
			Msg("Failed to open time-series sink")
	}
	defer func() { _ = sink.Close() }()

	transfer := services.NewTransferService(
		storage.NewCSVSink(cfg.DataDir),
		sink.Writer,
		cfg.Latitude,
		cfg.Longitude,
		cfg.Influx.BatchSize,
	)

	report, err := transfer.TransferAll(ctx)
	if err != nil {
		log.Error().
			Err(err).
			Str("action", "transfer_failed").
			Int("directories", report.Directories).
			Int("points", report.Points).
			Msg("Transfer aborted")
		os.Exit(1)
	}

	log.Info().
		Str("action", "transfer_complete").
		Int("directories", report.Directories).
		Int("skipped", len(report.Skipped)).
		Int("files", report.Files).
		Int("points", report.Points).
		Msg("Transfer completed")
}
