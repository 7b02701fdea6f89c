package services

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/cron-runner/pkg/models"
	"github.com/fogcast/cron-runner/pkg/storage"
)

func TestTransferService_TransferAll(t *testing.T) {
	root := t.TempDir()
	csvSink := storage.NewCSVSink(root)
	run := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

	dir, err := csvSink.CreateRunDirectory(run)
	require.NoError(t, err)
	_, err = csvSink.WriteTable(dir, &models.ForecastTable{
		Model:  "icon_d2",
		Fields: []string{"temperature_2m"},
		Rows: []models.ForecastRow{
			{Date: run, Values: []float64{12}},
			{Date: run.Add(time.Hour), Values: []float64{math.NaN()}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	// legacy local-time directory names are skipped
	require.NoError(t, os.Mkdir(filepath.Join(root, "2023-01-01T10-00-00"), 0o755))

	writer := &collectingWriter{}
	report, err := NewTransferService(csvSink, writer, 47.6952, 9.1307, 0).TransferAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Directories)
	assert.Equal(t, []string{"2023-01-01T10-00-00"}, report.Skipped)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Points, "rows without values are not written")

	p := writer.batches[0][0]
	assert.True(t, p.Time.Equal(run))
	assert.Equal(t, "icon_d2", p.Tags["model"])
	assert.Equal(t, "2024-05-01T13:00:00Z", p.Tags["forecast_date"])
}

func TestTransferService_MissingDataDir(t *testing.T) {
	svc := NewTransferService(storage.NewCSVSink(filepath.Join(t.TempDir(), "missing")), &collectingWriter{}, 0, 0, 0)
	_, err := svc.TransferAll(context.Background())
	assert.Error(t, err)
}
