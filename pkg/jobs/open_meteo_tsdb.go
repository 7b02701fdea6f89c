package jobs

import (
	"context"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/notify"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
)

// OpenMeteoTSDBJob writes the forecast of every model to the time-series sink, stamped with the tick time.
type OpenMeteoTSDBJob struct {
	BaseJob
	fetcher   services.ForecastFetcher
	writer    storage.PointWriter
	notifier  notify.Notifier
	request   services.ForecastRequest
	modelIDs  []string
	batchSize int
	now       func() time.Time
}

func NewOpenMeteoTSDBJob(fetcher services.ForecastFetcher, writer storage.PointWriter, notifier notify.Notifier, settings ForecastSettings, batchSize int) (Job, error) {
	req, modelIDs, err := settings.request()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}

	return &OpenMeteoTSDBJob{
		fetcher:   fetcher,
		writer:    writer,
		notifier:  notifier,
		request:   req,
		modelIDs:  modelIDs,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

func (j *OpenMeteoTSDBJob) Start(ctx context.Context, tickTime time.Time) (bool, error) {
	log := logger.WithContext(ctx, "open-meteo-tsdb")

	start := time.Now()

	tables, failed := fetchForecasts(ctx, j.fetcher, j.notifier, j.request, j.modelIDs, j.now)
	total := 0
	for _, table := range tables {
		points := storage.ForecastPoints(table, tickTime, j.request.Latitude, j.request.Longitude)
		written, err := storage.WriteBatched(ctx, j.writer, points, j.batchSize)
		total += written
		if err != nil {
			return false, err
		}
	}

	log.Info().
		Str("action", "tsdb_write").
		Int("points", total).
		Msg("Forecast points written")
	log.LogJobComplete(JobOpenMeteoTSDB, time.Since(start), len(tables), failed)
	return true, nil
}

// CleanUpAfterError has nothing to roll back: a rerun overwrites points with the same series and time.
func (j *OpenMeteoTSDBJob) CleanUpAfterError(context.Context) error {
	return nil
}
