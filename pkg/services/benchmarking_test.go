package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/storage"
)

type stubForecasts struct {
	samples []models.ForecastSample
	err     error
	windows [][2]time.Time
}

func (s *stubForecasts) Forecasts(_ context.Context, start, end time.Time, _ []string) ([]models.ForecastSample, error) {
	s.windows = append(s.windows, [2]time.Time{start, end})
	return s.samples, s.err
}

type stubObservations struct {
	obs []models.Observation
	err error
}

func (s *stubObservations) Observations(context.Context, time.Time, time.Time, []string) ([]models.Observation, error) {
	return s.obs, s.err
}

type collectingWriter struct {
	mu      sync.Mutex
	batches [][]storage.Point
}

func (w *collectingWriter) WritePoints(_ context.Context, points []storage.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, points)
	return nil
}

func (w *collectingWriter) Close() error { return nil }

var hourA = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func sample(model, field string, value float64) models.ForecastSample {
	return models.ForecastSample{
		Time:         hourA.Add(-6 * time.Hour),
		ForecastDate: hourA.Format(models.DateLayout),
		Model:        model,
		Field:        field,
		Value:        value,
	}
}

func TestErrorScore(t *testing.T) {
	tests := []struct {
		feature  string
		forecast float64
		actual   float64
		want     float64
	}{
		{"cloud_cover", 40, 70, 30},
		{"relative_humidity_2m", 80, 75, 5},
		{"temperature_2m", 12, 10, 4},
		{"precipitation", 0, 1.5, 2.25},
		{"surface_pressure", 1013, 1013, 0},
	}

	for _, tt := range tests {
		t.Run(tt.feature, func(t *testing.T) {
			assert.InDelta(t, tt.want, ErrorScore(tt.feature, tt.forecast, tt.actual), 1e-9)
		})
	}
}

func TestCalculateErrors(t *testing.T) {
	samples := []models.ForecastSample{
		sample("icon_d2", "temperature_2m", 12),
		sample("icon_d2", "cloud_cover", 40),
		sample("icon_d2", "precipitation", 1), // no observed value
		{Time: hourA, ForecastDate: hourA.Add(48 * time.Hour).Format(models.DateLayout), Model: "icon_d2", Field: "temperature_2m", Value: 9},
	}
	obs := []models.Observation{{Time: hourA, Values: map[string]float64{"temperature_2m": 10, "cloud_cover": 70}}}

	scores := CalculateErrors(samples, obs, "short")

	require.Len(t, scores, 2, "only samples whose target hour was observed are scored")
	assert.Equal(t, 10.0, scores[0].Actual)
	assert.Equal(t, 4.0, scores[0].Error)
	assert.Equal(t, 30.0, scores[1].Error)
	assert.Equal(t, "short", scores[1].Horizon)
}

func TestSummarize(t *testing.T) {
	scores := []models.ErrorScore{
		{ForecastSample: sample("icon_d2", "temperature_2m", 12), Actual: 10, Horizon: "short"},
		{ForecastSample: sample("icon_d2", "temperature_2m", 6), Actual: 10, Horizon: "short"},
		{ForecastSample: sample("gfs", "temperature_2m", 10), Actual: 10, Horizon: "short"},
	}

	summaries := Summarize(scores)

	require.Len(t, summaries, 2)
	assert.Equal(t, "gfs", summaries[0].Model)
	assert.Equal(t, 0.0, summaries[0].MAE)

	icon := summaries[1]
	assert.Equal(t, 2, icon.Count)
	assert.InDelta(t, 3.0, icon.MAE, 1e-9)
	assert.InDelta(t, math.Sqrt(10), icon.RMSE, 1e-9)
}

func TestBenchmarkService_RunBenchmark(t *testing.T) {
	forecasts := &stubForecasts{samples: []models.ForecastSample{
		sample("icon_d2", "temperature_2m", 12),
		sample("icon_d2", "cloud_cover", 40),
	}}
	observations := &stubObservations{obs: []models.Observation{
		{Time: hourA, Values: map[string]float64{"temperature_2m": 10, "cloud_cover": 70}},
	}}
	writer := &collectingWriter{}
	svc := NewBenchmarkService(forecasts, observations, writer, 5000)

	report, err := svc.RunBenchmark(context.Background(), hourA.Add(42*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, hourA, report.End, "the window ends at the start of the current hour")
	assert.Equal(t, 8, report.Written, "two scores for each of the four horizons")
	require.Len(t, forecasts.windows, 4)
	assert.Equal(t, hourA.Add(-24*time.Hour), forecasts.windows[0][0])
	assert.Equal(t, hourA.Add(-15*24*time.Hour), forecasts.windows[3][0])

	p := writer.batches[0][0]
	assert.Equal(t, storage.MeasurementErrorScore, p.Measurement)
	assert.Equal(t, "very short", p.Tags["forecast_horizon"])
	assert.Equal(t, "icon_d2", p.Tags["_model"])
	assert.Equal(t, "temperature_2m", p.Tags["feature"])
	assert.Equal(t, 12.0, p.Fields["_value"])
	assert.Equal(t, 10.0, p.Fields["actual_value"])
	assert.Equal(t, 4.0, p.Fields["error"])
	assert.Len(t, report.Summaries, 8)
}

func TestBenchmarkService_Errors(t *testing.T) {
	t.Run("query error", func(t *testing.T) {
		svc := NewBenchmarkService(&stubForecasts{err: errors.New("flux failed")}, &stubObservations{}, &collectingWriter{}, 0)
		_, err := svc.RunBenchmark(context.Background(), hourA)
		assert.ErrorContains(t, err, "flux failed")
	})

	t.Run("observation error", func(t *testing.T) {
		svc := NewBenchmarkService(
			&stubForecasts{samples: []models.ForecastSample{sample("m", "temperature_2m", 1)}},
			&stubObservations{err: errors.New("open-meteo down")},
			&collectingWriter{}, 0)
		_, err := svc.RunBenchmark(context.Background(), hourA)
		assert.ErrorContains(t, err, "open-meteo down")
	})

	t.Run("no forecasts stored", func(t *testing.T) {
		writer := &collectingWriter{}
		svc := NewBenchmarkService(&stubForecasts{}, &stubObservations{err: errors.New("not called")}, writer, 0)
		report, err := svc.RunBenchmark(context.Background(), hourA)
		require.NoError(t, err)
		assert.Zero(t, report.Written)
		assert.Empty(t, writer.batches)
	})
}
