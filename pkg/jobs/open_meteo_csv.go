package jobs

import (
	"context"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/notify"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
)

// OpenMeteoCSVJob stores the forecast of every model as <model>.csv in a directory named after the tick.
type OpenMeteoCSVJob struct {
	BaseJob
	fetcher  services.ForecastFetcher
	sink     *storage.CSVSink
	notifier notify.Notifier
	request  services.ForecastRequest
	modelIDs []string
	now      func() time.Time

	runDir string
}

// NewOpenMeteoCSVJob creates a job instance; the model and field lists are read here.
func NewOpenMeteoCSVJob(fetcher services.ForecastFetcher, sink *storage.CSVSink, notifier notify.Notifier, settings ForecastSettings) (Job, error) {
	req, modelIDs, err := settings.request()
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}

	return &OpenMeteoCSVJob{
		fetcher:  fetcher,
		sink:     sink,
		notifier: notifier,
		request:  req,
		modelIDs: modelIDs,
		now:      time.Now,
	}, nil
}

func (j *OpenMeteoCSVJob) Start(ctx context.Context, tickTime time.Time) (bool, error) {
	log := logger.WithContext(ctx, "open-meteo-csv")
	start := time.Now()

	dir, err := j.sink.CreateRunDirectory(tickTime)
	if err != nil {
		return false, err
	}
	j.runDir = dir

	tables, failed := fetchForecasts(ctx, j.fetcher, j.notifier, j.request, j.modelIDs, j.now)
	for _, table := range tables {
		path, err := j.sink.WriteTable(dir, table)
		if err != nil {
			return false, err
		}
		log.Debug().
			Str("action", "write_csv").
			Str("model", table.Model).
			Str("path", path).
			Int("rows", table.Len()).
			Msg("Forecast written")
	}

	log.LogJobComplete(JobOpenMeteoCSV, time.Since(start), len(tables), failed)
	return true, nil
}

// CleanUpAfterError removes the partially written run directory.
func (j *OpenMeteoCSVJob) CleanUpAfterError(ctx context.Context) error {
	if j.runDir == "" {
		return nil
	}
	if err := j.sink.RemoveRunDirectory(j.runDir); err != nil {
		return err
	}
	logger.WithContext(ctx, "open-meteo-csv").Info().
		Str("action", "remove_run_directory").
		Str("directory", j.runDir).
		Msg("Removed run directory")
	j.runDir = ""
	return nil
}
