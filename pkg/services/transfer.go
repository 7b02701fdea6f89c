package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/storage"
)

// TransferReport counts what a CSV replay did
type TransferReport struct {
	Directories int
	Skipped     []string
	Files       int
	Points      int
}

// TransferService replays stored CSV runs into the time-series sink.
type TransferService struct {
	csv       *storage.CSVSink
	writer    storage.PointWriter
	latitude  float64
	longitude float64
	batchSize int
	logger    *logger.Logger
}

func NewTransferService(csv *storage.CSVSink, writer storage.PointWriter, latitude, longitude float64, batchSize int) *TransferService {
	return &TransferService{
		csv:       csv,
		writer:    writer,
		latitude:  latitude,
		longitude: longitude,
		batchSize: batchSize,
		logger:    logger.New("csv-transfer"),
	}
}

// TransferAll writes every run directory whose name parses as a run time.
// Points are stamped with that run time, so replaying a run twice writes the same series again.
func (s *TransferService) TransferAll(ctx context.Context) (TransferReport, error) {
	var report TransferReport

	dirs, err := s.csv.RunDirectories()
	if err != nil {
		return report, err
	}

	for _, name := range dirs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		runTime, err := storage.ParseRunDirectory(name)
		if err != nil {
			s.logger.Info().
				Str("action", "skip_directory").
				Str("directory", name).
				Msg("Skipping directory with unknown date format")
			report.Skipped = append(report.Skipped, name)
			continue
		}

		files, points, err := s.transferRun(ctx, filepath.Join(s.csv.Root(), name), runTime)
		report.Files += files
		report.Points += points
		if err != nil {
			return report, fmt.Errorf("run %s: %w", name, err)
		}
		report.Directories++

		s.logger.Info().
			Str("action", "transfer_run").
			Str("directory", name).
			Int("files", files).
			Int("points", points).
			Msg("Run transferred")
	}
	return report, nil
}

func (s *TransferService) transferRun(ctx context.Context, dir string, runTime time.Time) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files, points := 0, 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}

		table, err := storage.ReadTable(filepath.Join(dir, e.Name()))
		if err != nil {
			return files, points, err
		}

		written, err := storage.WriteBatched(ctx, s.writer,
			storage.ForecastPoints(table, runTime, s.latitude, s.longitude), s.batchSize)
		points += written
		if err != nil {
			return files, points, err
		}
		files++
	}
	return files, points, nil
}
