package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/notify"
	"github.com/fogcast/cron-runner/pkg/services"
)

// ForecastSettings describes what the forecast jobs request on every run.
// The model and field lists are loaded when a job instance is created.
type ForecastSettings struct {
	Latitude         float64
	Longitude        float64
	ForecastDays     int
	LoadModelIDs     func() ([]string, error)
	LoadHourlyFields func() ([]string, error)
}

func (s ForecastSettings) request() (services.ForecastRequest, []string, error) {
	if s.LoadModelIDs == nil || s.LoadHourlyFields == nil {
		return services.ForecastRequest{}, nil, fmt.Errorf("forecast settings incomplete")
	}

	modelIDs, err := s.LoadModelIDs()
	if err != nil {
		return services.ForecastRequest{}, nil, fmt.Errorf("failed to load model ids: %w", err)
	}
	fields, err := s.LoadHourlyFields()
	if err != nil {
		return services.ForecastRequest{}, nil, fmt.Errorf("failed to load hourly fields: %w", err)
	}

	return services.ForecastRequest{
		Latitude:     s.Latitude,
		Longitude:    s.Longitude,
		Hourly:       fields,
		ForecastDays: s.ForecastDays,
	}, modelIDs, nil
}

// fetchForecasts requests all models and sends one warning per model that failed.
func fetchForecasts(ctx context.Context, fetcher services.ForecastFetcher, notifier notify.Notifier,
	req services.ForecastRequest, modelIDs []string, now func() time.Time) ([]*models.ForecastTable, int) {
	log := logger.WithContext(ctx, "forecasts")

	tables, failures := fetcher.FetchModels(ctx, req, modelIDs)
	for _, f := range failures {
		notifier.Notify(ctx, notify.FormatModelWarning(f.Model, f.Err, now()))
	}

	log.Info().
		Str("action", "fetch_forecasts").
		Int("models", len(modelIDs)).
		Int("fetched", len(tables)).
		Int("failed", len(failures)).
		Msg("Forecasts requested")
	return tables, len(failures)
}
