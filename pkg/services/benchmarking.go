package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/storage"
)

// absoluteErrorFeatures are bounded percentages; every other feature is scored by squared error.
var absoluteErrorFeatures = map[string]bool{
	"cloud_cover":          true,
	"relative_humidity_2m": true,
}

// BenchmarkService scores stored forecasts against observations and writes the scores back.
type BenchmarkService struct {
	forecasts    ForecastQuerier
	observations ObservationSource
	writer       storage.PointWriter
	batchSize    int
	features     []string
	horizons     []models.Horizon
	logger       *logger.Logger
}

func NewBenchmarkService(forecasts ForecastQuerier, observations ObservationSource, writer storage.PointWriter, batchSize int) *BenchmarkService {
	return &BenchmarkService{
		forecasts:    forecasts,
		observations: observations,
		writer:       writer,
		batchSize:    batchSize,
		features:     models.BenchmarkFeatures,
		horizons:     models.Horizons,
		logger:       logger.New("benchmark-service"),
	}
}

// BenchmarkReport summarizes one run over all horizons.
type BenchmarkReport struct {
	End       time.Time
	Written   int
	Summaries []models.ErrorSummary
}

// RunBenchmark scores every horizon ending at the start of the current UTC hour.
// The first failing horizon aborts the run.
func (s *BenchmarkService) RunBenchmark(ctx context.Context, now time.Time) (BenchmarkReport, error) {
	log := logger.WithContext(ctx, "benchmark-service")
	end := now.UTC().Truncate(time.Hour)
	report := BenchmarkReport{End: end}

	for _, h := range s.horizons {
		scores, err := s.scoreHorizon(ctx, h, end)
		if err != nil {
			return report, fmt.Errorf("horizon %s: %w", h.Name, err)
		}

		written, err := storage.WriteBatched(ctx, s.writer, storage.ErrorScorePoints(scores), s.batchSize)
		report.Written += written
		if err != nil {
			return report, fmt.Errorf("horizon %s: %w", h.Name, err)
		}

		summaries := Summarize(scores)
		report.Summaries = append(report.Summaries, summaries...)

		log.Info().
			Str("action", "benchmark_horizon").
			Str("horizon", h.Name).
			Int("scores", len(scores)).
			Int("written", written).
			Msg("Horizon scored")
	}
	return report, nil
}

func (s *BenchmarkService) scoreHorizon(ctx context.Context, h models.Horizon, end time.Time) ([]models.ErrorScore, error) {
	start := end.Add(-h.Window)

	samples, err := s.forecasts.Forecasts(ctx, start, end, s.features)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}

	observations, err := s.observations.Observations(ctx, start, end, s.features)
	if err != nil {
		return nil, err
	}

	return CalculateErrors(samples, observations, h.Name), nil
}

// CalculateErrors joins samples to observations on the forecast target hour (forecast_date).
// error_score series written by earlier deployments joined on the write time (_time) instead,
// so their errors compare a forecast with the weather at fetch time and are not comparable.
// Samples without a matching observed value are dropped.
func CalculateErrors(samples []models.ForecastSample, observations []models.Observation, horizon string) []models.ErrorScore {
	byHour := make(map[string]map[string]float64, len(observations))
	for _, o := range observations {
		byHour[o.Time.UTC().Format(models.DateLayout)] = o.Values
	}

	scores := make([]models.ErrorScore, 0, len(samples))
	for _, sample := range samples {
		values, ok := byHour[sample.ForecastDate]
		if !ok {
			continue
		}
		actual, ok := values[sample.Field]
		if !ok || math.IsNaN(actual) || math.IsNaN(sample.Value) {
			continue
		}

		scores = append(scores, models.ErrorScore{
			ForecastSample: sample,
			Actual:         actual,
			Error:          ErrorScore(sample.Field, sample.Value, actual),
			Horizon:        horizon,
		})
	}
	return scores
}

// ErrorScore is the absolute error for percentage features and the squared error otherwise.
func ErrorScore(feature string, forecast, actual float64) float64 {
	diff := forecast - actual
	if absoluteErrorFeatures[feature] {
		return math.Abs(diff)
	}
	return diff * diff
}

// Summarize computes MAE and RMSE per model, feature and horizon, sorted by those keys.
func Summarize(scores []models.ErrorScore) []models.ErrorSummary {
	type key struct{ model, feature, horizon string }
	type acc struct {
		n      int
		absSum float64
		sqSum  float64
	}

	groups := make(map[key]*acc)
	for _, s := range scores {
		k := key{s.Model, s.Field, s.Horizon}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		diff := s.Value - s.Actual
		a.n++
		a.absSum += math.Abs(diff)
		a.sqSum += diff * diff
	}

	out := make([]models.ErrorSummary, 0, len(groups))
	for k, a := range groups {
		out = append(out, models.ErrorSummary{
			Model:   k.model,
			Feature: k.feature,
			Horizon: k.horizon,
			Count:   a.n,
			MAE:     a.absSum / float64(a.n),
			RMSE:    math.Sqrt(a.sqSum / float64(a.n)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		if out[i].Feature != out[j].Feature {
			return out[i].Feature < out[j].Feature
		}
		return out[i].Horizon < out[j].Horizon
	})
	return out
}
