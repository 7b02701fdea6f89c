package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/fogcast/cron-runner/pkg/models"
)

const (
	MeasurementForecast   = "forecast"
	MeasurementWaterLevel = "water_level"
	MeasurementErrorScore = "error_score"

	// DefaultBatchSize matches the write batch size used for benchmark results.
	DefaultBatchSize = 5000
)

// Point is a tagged, timestamped record for a time-series database.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        time.Time
}

// PointWriter persists points. Implementations must be safe to call with an empty slice.
type PointWriter interface {
	WritePoints(ctx context.Context, points []Point) error
	Close() error
}

// WriteBatched writes points in chunks of batchSize and returns the number of points written.
func WriteBatched(ctx context.Context, w PointWriter, points []Point, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	written := 0
	for start := 0; start < len(points); start += batchSize {
		end := start + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := w.WritePoints(ctx, points[start:end]); err != nil {
			return written, fmt.Errorf("failed to write batch %d-%d: %w", start, end, err)
		}
		written += end - start
	}
	return written, nil
}

// ForecastPoints converts a forecast table into "forecast" points stamped with the run time.
// Missing values are dropped; rows without any value are skipped entirely.
func ForecastPoints(table *models.ForecastTable, runTime time.Time, latitude, longitude float64) []Point {
	lat := strconv.FormatFloat(latitude, 'f', -1, 64)
	lon := strconv.FormatFloat(longitude, 'f', -1, 64)
	ts := runTime.UTC().Truncate(time.Second)

	points := make([]Point, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.AllMissing() {
			continue
		}

		fields := make(map[string]interface{}, len(table.Fields))
		for i, name := range table.Fields {
			v := row.Values[i]
			if math.IsNaN(v) {
				continue
			}
			fields[name] = v
		}

		points = append(points, Point{
			Measurement: MeasurementForecast,
			Tags: map[string]string{
				"model":         table.Model,
				"latitude":      lat,
				"longitude":     lon,
				"forecast_date": row.Date.UTC().Format(models.DateLayout),
			},
			Fields: fields,
			Time:   ts,
		})
	}
	return points
}

// WaterLevelPoints converts gauge readings into "water_level" points in centimetres.
func WaterLevelPoints(station models.Station, levels []models.WaterLevel) []Point {
	stationID := strconv.Itoa(station.ID)

	points := make([]Point, 0, len(levels))
	for _, l := range levels {
		points = append(points, Point{
			Measurement: MeasurementWaterLevel,
			Tags: map[string]string{
				"unit":         "cm",
				"station_id":   stationID,
				"station_name": station.Name,
			},
			Fields: map[string]interface{}{"value": l.Value},
			Time:   l.Timestamp.UTC(),
		})
	}
	return points
}

// ErrorScorePoints converts benchmark results into "error_score" points stamped with the forecast run time.
func ErrorScorePoints(scores []models.ErrorScore) []Point {
	points := make([]Point, 0, len(scores))
	for _, s := range scores {
		points = append(points, Point{
			Measurement: MeasurementErrorScore,
			Tags: map[string]string{
				"feature":          s.Field,
				"forecast_date":    s.ForecastDate,
				"_model":           s.Model,
				"forecast_horizon": s.Horizon,
			},
			Fields: map[string]interface{}{
				"_value":       s.Value,
				"actual_value": s.Actual,
				"error":        s.Error,
			},
			Time: s.Time.UTC(),
		})
	}
	return points
}
