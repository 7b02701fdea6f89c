package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fogcast/cron-runner/internal/app"
	"github.com/fogcast/cron-runner/internal/config"
	"github.com/fogcast/cron-runner/pkg/logger"
)

// One invocation is one tick. An external timer (system cron) starts the binary every minute;
// arguments are key=value tokens such as run_single_job_now=open_meteo_csv.
func main() {
	os.Exit(run())
}

func run() int {
	logger.SetupLogger()
	boot := logger.New("cron")

	cfg, err := config.Load(config.Dir())
	if err != nil {
		boot.Error().
			Err(err).
			Str("action", "config_failed").
			Msg("Failed to load configuration")
		return 1
	}

	closer, err := logger.OpenRunLog(cfg.LogDir)
	if err != nil {
		boot.Error().
			Err(err).
			Str("action", "log_open_failed").
			Msg("Failed to open run log")
		return 1
	}
	defer func() { _ = closer.Close() }()
	log := logger.New("cron")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.NewRuntime(ctx, cfg)
	if err != nil {
		log.Error().
			Err(err).
			Str("action", "runtime_failed").
			Msg("Failed to set up scheduler")
		return 1
	}
	defer func() { _ = rt.Close() }()

	if err := rt.Scheduler.ApplyArguments(os.Args); err != nil {
		return 1
	}

	report := rt.Scheduler.Run(ctx, time.Now())
	if report.Err != nil {
		return 1
	}
	return 0
}
