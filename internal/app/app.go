// Package app wires configuration into the clients, sinks and scheduler shared by the binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fogcast/cron-runner/internal/config"
	"github.com/fogcast/cron-runner/pkg/database/pool"
	"github.com/fogcast/cron-runner/pkg/jobs"
	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/notify"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
)

// Sink is the configured time-series store. Influx is set only for the influx sink
// and is what benchmarking queries. DB is set only for the postgres sink.
type Sink struct {
	Writer storage.PointWriter
	Influx influxdb2.Client
	DB     *pgxpool.Pool
}

// Close releases the writer and its connections
func (s *Sink) Close() error {
	return s.Writer.Close()
}

// OpenSink connects the sink selected by the configuration.
func OpenSink(ctx context.Context, cfg *config.Config) (*Sink, error) {
	switch cfg.TimeSeriesSink {
	case config.SinkPostgres:
		db, err := pool.New(ctx, cfg.Postgres.URL, pool.DefaultConfig())
		if err != nil {
			return nil, err
		}
		w := storage.NewPostgresWriter(db, cfg.Postgres.Table, db.Close)
		if err := w.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &Sink{Writer: w, DB: db}, nil
	case config.SinkInflux:
		client := storage.NewInfluxClient(storage.InfluxConfig{
			URL:            cfg.Influx.URL,
			Token:          cfg.Influx.Token,
			Org:            cfg.Influx.Org,
			BatchSize:      cfg.Influx.BatchSize,
			TimeoutSeconds: cfg.Influx.TimeoutSeconds,
		})
		return &Sink{
			Writer: storage.NewInfluxWriter(client, cfg.Influx.Org, cfg.Influx.Bucket, true),
			Influx: client,
		}, nil
	default:
		return nil, fmt.Errorf("unknown time-series sink %q", cfg.TimeSeriesSink)
	}
}

// Notifier combines every configured alert channel.
func Notifier(cfg *config.Config) (notify.Notifier, error) {
	discord := notify.NewDiscordNotifier(cfg.Discord.WebhookURL, &http.Client{Timeout: 10 * time.Second})
	telegram, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, "")
	if err != nil {
		return nil, err
	}
	return notify.Combine(discord, telegram), nil
}

// OpenMeteoClient builds the forecast client from configuration
func OpenMeteoClient(cfg *config.Config) *services.OpenMeteoClient {
	backoff := services.DefaultBackoff()
	backoff.MaxRetries = cfg.OpenMeteo.MaxRetries

	return services.NewOpenMeteoClient(services.OpenMeteoConfig{
		BaseURL:        cfg.OpenMeteo.BaseURL,
		Timeout:        cfg.OpenMeteoTimeout(),
		RequestsPerMin: cfg.OpenMeteo.RequestsPerMin,
		Backoff:        backoff,
	}, nil)
}

// ForecastSettings reads the model and field lists from the configured CSV files on every call.
func ForecastSettings(cfg *config.Config) jobs.ForecastSettings {
	return jobs.ForecastSettings{
		Latitude:     cfg.Latitude,
		Longitude:    cfg.Longitude,
		ForecastDays: cfg.OpenMeteo.ForecastDays,
		LoadModelIDs: func() ([]string, error) {
			return config.ReadColumn(cfg.ModelIDsPath, "name")
		},
		LoadHourlyFields: func() ([]string, error) {
			return config.ReadColumn(cfg.HourlyFieldsPath, "field")
		},
	}
}

// Runtime is everything a scheduler process holds on to
type Runtime struct {
	Scheduler *jobs.Scheduler
	sink      *Sink
}

// Close releases the sink
func (r *Runtime) Close() error {
	if r.sink.DB != nil {
		stats := pool.GetStats(r.sink.DB)
		logger.New("runtime").Debug().
			Int64("acquire_count", stats.AcquireCount).
			Int32("total_conns", stats.TotalConns).
			Int32("idle_conns", stats.IdleConns).
			Msg("Closing database pool")
	}
	return r.sink.Close()
}

// NewRuntime builds the production registry and scheduler. The run log must be opened first
// so that every component logs to it.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	notifier, err := Notifier(cfg)
	if err != nil {
		return nil, err
	}

	sink, err := OpenSink(ctx, cfg)
	if err != nil {
		return nil, err
	}

	openMeteo := OpenMeteoClient(cfg)
	pegelBackoff := services.DefaultBackoff()
	pegel := services.NewPegelOnlineClient(services.PegelOnlineConfig{
		BaseURL: cfg.PegelOnline.BaseURL,
		Timeout: cfg.PegelOnlineTimeout(),
		Backoff: pegelBackoff,
	}, nil)

	deps := jobs.Dependencies{
		Forecasts:   openMeteo,
		WaterLevels: pegel,
		CSV:         storage.NewCSVSink(cfg.DataDir),
		Points:      sink.Writer,
		BatchSize:   cfg.Influx.BatchSize,
		Notifier:    notifier,
		Forecast:    ForecastSettings(cfg),
		WaterPeriod: models.Period(cfg.PegelOnline.Period),
	}

	if sink.Influx != nil {
		benchWriter := storage.NewInfluxWriter(sink.Influx, cfg.Influx.Org, cfg.BenchmarkBucket(), false)
		deps.Benchmark = services.NewBenchmarkService(
			storage.NewInfluxForecastQuerier(sink.Influx, cfg.Influx.Org, cfg.Influx.Bucket),
			services.OpenMeteoObservations{Client: openMeteo, Latitude: cfg.Latitude, Longitude: cfg.Longitude},
			benchWriter,
			cfg.Influx.BatchSize,
		)
	}

	registry, err := jobs.DefaultRegistry(deps)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	executor := jobs.NewExecutor(notifier)
	if sink.DB != nil {
		executor.WithLocker(jobs.NewPostgreSQLLockManager(sink.DB))
	}

	return &Runtime{
		Scheduler: jobs.NewScheduler(registry, executor),
		sink:      sink,
	}, nil
}
