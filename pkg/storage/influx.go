package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models"
)

// InfluxConfig holds connection settings for InfluxDB v2
type InfluxConfig struct {
	URL            string
	Token          string
	Org            string
	BatchSize      int
	TimeoutSeconds int
}

// NewInfluxClient creates a client with second write precision.
func NewInfluxClient(cfg InfluxConfig) influxdb2.Client {
	opts := influxdb2.DefaultOptions().
		SetPrecision(time.Second).
		SetUseGZip(true)
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(uint(cfg.BatchSize))
	}
	if cfg.TimeoutSeconds > 0 {
		opts.SetHTTPRequestTimeout(uint(cfg.TimeoutSeconds))
	}
	return influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
}

// InfluxWriter writes points synchronously into one bucket.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	logger   *logger.Logger
	owned    bool
}

// NewInfluxWriter wraps a client. When owned is true, Close also closes the client.
func NewInfluxWriter(client influxdb2.Client, org, bucket string, owned bool) *InfluxWriter {
	return &InfluxWriter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		bucket:   bucket,
		logger:   logger.New("influx-writer"),
		owned:    owned,
	}
}

func (w *InfluxWriter) WritePoints(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	converted := make([]*write.Point, 0, len(points))
	for _, p := range points {
		converted = append(converted, write.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
	}

	err := w.writeAPI.WritePoint(ctx, converted...)
	w.logger.LogDatabaseOperation("write_points", w.bucket, len(points), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("influx write to bucket %s failed: %w", w.bucket, err)
	}
	return nil
}

func (w *InfluxWriter) Close() error {
	if w.owned {
		w.client.Close()
	}
	return nil
}

// InfluxForecastQuerier reads stored forecasts back for benchmarking.
type InfluxForecastQuerier struct {
	queryAPI api.QueryAPI
	bucket   string
	logger   *logger.Logger
}

func NewInfluxForecastQuerier(client influxdb2.Client, org, bucket string) *InfluxForecastQuerier {
	return &InfluxForecastQuerier{
		queryAPI: client.QueryAPI(org),
		bucket:   bucket,
		logger:   logger.New("influx-querier"),
	}
}

// ForecastQuery builds the Flux query selecting the given fields of the forecast measurement.
func ForecastQuery(bucket string, start, end time.Time, fields []string) string {
	filters := make([]string, 0, len(fields))
	for _, f := range fields {
		filters = append(filters, fmt.Sprintf(`r["_field"] == %q`, f))
	}

	return fmt.Sprintf(`from(bucket: %q)
	|> range(start: %s, stop: %s)
	|> filter(fn: (r) => r["_measurement"] == %q)
	|> filter(fn: (r) => %s)
	|> keep(columns: ["_time", "forecast_date", "model", "_value", "_field"])`,
		bucket,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		MeasurementForecast,
		strings.Join(filters, " or "),
	)
}

// Forecasts returns every stored forecast sample for fields written between start and end.
func (q *InfluxForecastQuerier) Forecasts(ctx context.Context, start, end time.Time, fields []string) ([]models.ForecastSample, error) {
	began := time.Now()
	result, err := q.queryAPI.Query(ctx, ForecastQuery(q.bucket, start, end, fields))
	if err != nil {
		q.logger.LogDatabaseOperation("query_forecasts", q.bucket, 0, time.Since(began), err)
		return nil, fmt.Errorf("forecast query failed: %w", err)
	}
	defer func() { _ = result.Close() }()

	var samples []models.ForecastSample
	for result.Next() {
		rec := result.Record()
		value, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		model, _ := rec.ValueByKey("model").(string)
		forecastDate, _ := rec.ValueByKey("forecast_date").(string)

		samples = append(samples, models.ForecastSample{
			Time:         rec.Time().UTC(),
			ForecastDate: forecastDate,
			Model:        model,
			Field:        rec.Field(),
			Value:        value,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("forecast query result: %w", err)
	}

	q.logger.LogDatabaseOperation("query_forecasts", q.bucket, len(samples), time.Since(began), nil)
	return samples, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
