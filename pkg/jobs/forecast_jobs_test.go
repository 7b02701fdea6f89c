package jobs

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/services"
	"github.com/fogcast/cron-runner/pkg/storage"
)

type fakeFetcher struct {
	tables   []*models.ForecastTable
	failures []services.ModelFailure
	gotReq   services.ForecastRequest
	gotIDs   []string
}

func (f *fakeFetcher) Forecast(context.Context, services.ForecastRequest) (*models.ForecastTable, error) {
	return nil, errors.New("not used")
}

func (f *fakeFetcher) FetchModels(_ context.Context, base services.ForecastRequest, ids []string) ([]*models.ForecastTable, []services.ModelFailure) {
	f.gotReq = base
	f.gotIDs = ids
	return f.tables, f.failures
}

func sampleTable(model string) *models.ForecastTable {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &models.ForecastTable{
		Model:  model,
		Fields: []string{"temperature_2m", "cloud_cover"},
		Rows: []models.ForecastRow{
			{Date: start, Values: []float64{12.5, 40}},
			{Date: start.Add(time.Hour), Values: []float64{math.NaN(), 55}},
			{Date: start.Add(2 * time.Hour), Values: []float64{math.NaN(), math.NaN()}},
		},
	}
}

func testSettings() ForecastSettings {
	return ForecastSettings{
		Latitude:         47.6952,
		Longitude:        9.1307,
		ForecastDays:     16,
		LoadModelIDs:     func() ([]string, error) { return []string{"icon_d2", "gfs_seamless", "broken"}, nil },
		LoadHourlyFields: func() ([]string, error) { return []string{"temperature_2m", "cloud_cover"}, nil },
	}
}

func TestOpenMeteoCSVJob(t *testing.T) {
	root := t.TempDir()
	sink := storage.NewCSVSink(root)
	notifier := &recordingNotifier{}
	fetcher := &fakeFetcher{
		tables:   []*models.ForecastTable{sampleTable("icon_d2"), sampleTable("gfs_seamless")},
		failures: []services.ModelFailure{{Model: "broken", Err: services.ErrNoData}},
	}
	tick := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

	job, err := NewOpenMeteoCSVJob(fetcher, sink, notifier, testSettings())
	require.NoError(t, err)

	ok, err := job.Start(context.Background(), tick)
	require.NoError(t, err)
	assert.True(t, ok)

	runDir := filepath.Join(root, "2024-05-01T13-00-00Z")
	for _, model := range []string{"icon_d2", "gfs_seamless"} {
		table, err := storage.ReadTable(filepath.Join(runDir, model+".csv"))
		require.NoError(t, err)
		assert.Equal(t, 3, table.Len())
	}

	assert.Equal(t, []string{"icon_d2", "gfs_seamless", "broken"}, fetcher.gotIDs)
	assert.Equal(t, 16, fetcher.gotReq.ForecastDays)
	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "Cronjob Warning")
	assert.Contains(t, notifier.messages[0], "broken")

	require.NoError(t, job.CleanUpAfterError(context.Background()))
	_, err = os.Stat(runDir)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, job.CleanUpAfterError(context.Background()), "cleanup must be idempotent")
}

func TestOpenMeteoCSVJob_CleanupBeforeStart(t *testing.T) {
	job, err := NewOpenMeteoCSVJob(&fakeFetcher{}, storage.NewCSVSink(t.TempDir()), nil, testSettings())
	require.NoError(t, err)
	assert.NoError(t, job.CleanUpAfterError(context.Background()))
}

func TestOpenMeteoCSVJob_SettingsError(t *testing.T) {
	settings := testSettings()
	settings.LoadModelIDs = func() ([]string, error) { return nil, errors.New("model_ids.csv missing") }

	_, err := NewOpenMeteoCSVJob(&fakeFetcher{}, storage.NewCSVSink(t.TempDir()), nil, settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_ids.csv missing")
}

func TestOpenMeteoTSDBJob(t *testing.T) {
	writer := &memoryWriter{}
	fetcher := &fakeFetcher{tables: []*models.ForecastTable{sampleTable("icon_d2")}}
	tick := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

	job, err := NewOpenMeteoTSDBJob(fetcher, writer, nil, testSettings(), 1)
	require.NoError(t, err)

	ok, err := job.Start(context.Background(), tick)
	require.NoError(t, err)
	assert.True(t, ok)

	points := writer.points()
	require.Len(t, points, 2, "the all-missing row is skipped")
	assert.Len(t, writer.batches, 2, "batch size 1 writes one point per batch")

	for _, p := range points {
		assert.Equal(t, storage.MeasurementForecast, p.Measurement)
		assert.True(t, p.Time.Equal(tick))
		assert.Equal(t, "icon_d2", p.Tags["model"])
		assert.Equal(t, "47.6952", p.Tags["latitude"])
	}
	assert.Equal(t, "2024-05-01T01:00:00Z", points[1].Tags["forecast_date"])
	assert.NotContains(t, points[1].Fields, "temperature_2m")
}

func TestOpenMeteoTSDBJob_WriteError(t *testing.T) {
	writer := &memoryWriter{err: errors.New("influx down")}
	job, err := NewOpenMeteoTSDBJob(&fakeFetcher{tables: []*models.ForecastTable{sampleTable("icon_d2")}}, writer, nil, testSettings(), 0)
	require.NoError(t, err)

	ok, err := job.Start(context.Background(), time.Now())
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "influx down"))
}
