package jobs

import (
	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/notify"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
)

const (
	JobOpenMeteoCSV  = "open_meteo_csv"
	JobOpenMeteoTSDB = "open_meteo_tsdb"
	JobBenchmarking  = "benchmarking"
	JobPegelOnline   = "pegel_online"
)

// Dependencies are the shared clients and sinks handed to job factories.
type Dependencies struct {
	Forecasts   services.ForecastFetcher
	WaterLevels services.WaterLevelFetcher
	Benchmark   BenchmarkRunner // nil disables benchmarking
	CSV         *storage.CSVSink
	Points      storage.PointWriter
	BatchSize   int
	Notifier    notify.Notifier
	Forecast    ForecastSettings
	WaterPeriod models.Period
}

// DefaultRegistry is the production job table.
func DefaultRegistry(deps Dependencies) (*Registry, error) {
	return NewRegistry(
		Bucket{Interval: 5},
		Bucket{Interval: 60, Jobs: []Descriptor{
			{Name: JobOpenMeteoCSV, New: func() (Job, error) {
				return NewOpenMeteoCSVJob(deps.Forecasts, deps.CSV, deps.Notifier, deps.Forecast)
			}},
			{Name: JobOpenMeteoTSDB, New: func() (Job, error) {
				return NewOpenMeteoTSDBJob(deps.Forecasts, deps.Points, deps.Notifier, deps.Forecast, deps.BatchSize)
			}},
			{Name: JobBenchmarking, New: func() (Job, error) {
				return NewBenchmarkingJob(deps.Benchmark), nil
			}},
		}},
		Bucket{Interval: 1440, Jobs: []Descriptor{
			{Name: JobPegelOnline, New: func() (Job, error) {
				return NewPegelOnlineJob(deps.WaterLevels, deps.Points, deps.WaterPeriod, deps.BatchSize), nil
			}},
		}},
	)
}
