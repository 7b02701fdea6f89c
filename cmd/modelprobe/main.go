package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fogcast/cron-runner/internal/app"
	"github.com/fogcast/cron-runner/internal/config"
	"github.com/fogcast/cron-runner/pkg/logger"
)

// modelprobe prints the configured models that have no data for the configured location,
// one per line, so they can be removed from model_ids.csv.
func main() {
	logger.SetupLogger()
	log := logger.New("model-probe")

	cfg, err := config.Load(config.Dir())
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "config_failed").
			Msg("Failed to load configuration")
	}

	modelIDs, err := config.ReadColumn(cfg.ModelIDsPath, "name")
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "models_failed").
			Msg("Failed to read model ids")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := app.OpenMeteoClient(cfg)
	failed := 0
	for _, model := range modelIDs {
		ok, err := client.ProbeModel(ctx, model, cfg.Latitude, cfg.Longitude)
		if err != nil {
			failed++
			log.Warn().
				Err(err).
				Str("model", model).
				Msg("Probe failed")
			continue
		}
		if !ok {
			fmt.Println(model)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
