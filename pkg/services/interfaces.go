package services

import (
	"context"
	"time"

	"github.com/fogcast/cron-runner/pkg/models"
)

// ForecastFetcher retrieves hourly forecasts per model
type ForecastFetcher interface {
	Forecast(ctx context.Context, req ForecastRequest) (*models.ForecastTable, error)
	FetchModels(ctx context.Context, base ForecastRequest, modelIDs []string) ([]*models.ForecastTable, []ModelFailure)
}

// WaterLevelFetcher retrieves gauge readings
type WaterLevelFetcher interface {
	WaterLevels(ctx context.Context, station models.Station, period models.Period) ([]models.WaterLevel, error)
}

// ForecastQuerier reads previously stored forecasts issued between start and end.
type ForecastQuerier interface {
	Forecasts(ctx context.Context, start, end time.Time, fields []string) ([]models.ForecastSample, error)
}

// ObservationSource provides measured values for the hours between start and end.
type ObservationSource interface {
	Observations(ctx context.Context, start, end time.Time, fields []string) ([]models.Observation, error)
}
