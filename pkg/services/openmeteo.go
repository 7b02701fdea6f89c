package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/metrics"
	"github.com/fogcast/cron-runner/pkg/models"
)

// ErrNoData is returned when the model has no coverage for the requested location.
var ErrNoData = errors.New("no data is available for this location")

const (
	noDataReason = "No data is available for this location"
	dateOnly     = "2006-01-02"
)

type OpenMeteoConfig struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerMin int
	Backoff        BackoffConfig
}

// OpenMeteoClient requests hourly forecasts and observations from the Open-Meteo forecast API.
type OpenMeteoClient struct {
	baseURL string
	http    *resilientClient
	limiter *rate.Limiter
	logger  *logger.Logger
}

func NewOpenMeteoClient(cfg OpenMeteoConfig, client *http.Client) *OpenMeteoClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMin) / 60.0)
	}

	return &OpenMeteoClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    newResilientClient("open-meteo", client, cfg.Backoff, openMeteoReason),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.New("open-meteo"),
	}
}

// ForecastRequest describes one hourly request. Model empty means the API's best match.
// When Start and End are set they take precedence over ForecastDays.
type ForecastRequest struct {
	Model        string
	Latitude     float64
	Longitude    float64
	Hourly       []string
	ForecastDays int
	Start        time.Time
	End          time.Time
}

// ModelFailure records a model that could not be fetched in a batch.
type ModelFailure struct {
	Model string
	Err   error
}

type openMeteoResponse struct {
	Latitude  float64                    `json:"latitude"`
	Longitude float64                    `json:"longitude"`
	Hourly    map[string]json.RawMessage `json:"hourly"`
}

type openMeteoError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

func openMeteoReason(body []byte) string {
	var e openMeteoError
	if err := json.Unmarshal(body, &e); err != nil {
		return strings.TrimSpace(string(body))
	}
	return e.Reason
}

// ForecastURL builds the request URL. Timestamps are requested as unix seconds in GMT.
func (c *OpenMeteoClient) ForecastURL(req ForecastRequest) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	q.Set("hourly", strings.Join(req.Hourly, ","))
	q.Set("timezone", "GMT")
	q.Set("timeformat", "unixtime")
	if req.Model != "" {
		q.Set("models", req.Model)
	}
	if !req.Start.IsZero() && !req.End.IsZero() {
		q.Set("start_date", req.Start.UTC().Format(dateOnly))
		q.Set("end_date", req.End.UTC().Format(dateOnly))
	} else if req.ForecastDays > 0 {
		q.Set("forecast_days", strconv.Itoa(req.ForecastDays))
	}
	return c.baseURL + "?" + q.Encode()
}

// Forecast fetches the hourly series of one model.
func (c *OpenMeteoClient) Forecast(ctx context.Context, req ForecastRequest) (*models.ForecastTable, error) {
	if len(req.Hourly) == 0 {
		return nil, fmt.Errorf("no hourly fields requested")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.http.getKeyed(ctx, req.Model, c.ForecastURL(req))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.Contains(apiErr.Reason, noDataReason) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, req.Model)
		}
		return nil, err
	}

	table, err := DecodeForecast(body, req.Model, req.Hourly)
	if err != nil {
		return nil, fmt.Errorf("failed to decode forecast for %q: %w", req.Model, err)
	}
	return table, nil
}

// FetchModels requests every model in turn. A failing model is reported and skipped;
// the remaining models are still requested. Only context cancellation stops the batch.
func (c *OpenMeteoClient) FetchModels(ctx context.Context, base ForecastRequest, modelIDs []string) ([]*models.ForecastTable, []ModelFailure) {
	tables := make([]*models.ForecastTable, 0, len(modelIDs))
	var failures []ModelFailure

	for _, model := range modelIDs {
		if ctx.Err() != nil {
			failures = append(failures, ModelFailure{Model: model, Err: ctx.Err()})
			continue
		}

		req := base
		req.Model = model
		table, err := c.Forecast(ctx, req)
		if err != nil {
			metrics.ModelFetchFailures.WithLabelValues(model).Inc()
			c.logger.WithModel(model).Warn().
				Err(err).
				Str("action", "fetch_model").
				Msg("Unable to request data for model")
			failures = append(failures, ModelFailure{Model: model, Err: err})
			continue
		}
		tables = append(tables, table)
	}
	return tables, failures
}

// ProbeModel reports whether a model serves data for the location. ErrNoData is a definite no;
// any other error means the probe itself failed.
func (c *OpenMeteoClient) ProbeModel(ctx context.Context, model string, latitude, longitude float64) (bool, error) {
	_, err := c.Forecast(ctx, ForecastRequest{
		Model:        model,
		Latitude:     latitude,
		Longitude:    longitude,
		Hourly:       []string{"temperature_2m"},
		ForecastDays: 1,
	})
	if errors.Is(err, ErrNoData) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// OpenMeteoObservations serves measured values for one location from the best-match model's past hours.
type OpenMeteoObservations struct {
	Client    *OpenMeteoClient
	Latitude  float64
	Longitude float64
}

// Observations returns one observation per hour in [start, end].
func (o OpenMeteoObservations) Observations(ctx context.Context, start, end time.Time, fields []string) ([]models.Observation, error) {
	table, err := o.Client.Forecast(ctx, ForecastRequest{
		Latitude:  o.Latitude,
		Longitude: o.Longitude,
		Hourly:    fields,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch observations: %w", err)
	}

	obs := make([]models.Observation, 0, table.Len())
	for _, row := range table.Rows {
		if row.Date.Before(start) || row.Date.After(end) {
			continue
		}
		values := make(map[string]float64, len(table.Fields))
		for i, f := range table.Fields {
			if !math.IsNaN(row.Values[i]) {
				values[f] = row.Values[i]
			}
		}
		obs = append(obs, models.Observation{Time: row.Date, Values: values})
	}
	return obs, nil
}

// DecodeForecast turns an hourly response into a table with one column per requested field.
// Fields the model does not provide, and null entries, become NaN.
func DecodeForecast(body []byte, model string, fields []string) (*models.ForecastTable, error) {
	var resp openMeteoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	rawTime, ok := resp.Hourly["time"]
	if !ok {
		return nil, fmt.Errorf("response has no hourly time axis")
	}
	var stamps []int64
	if err := json.Unmarshal(rawTime, &stamps); err != nil {
		return nil, fmt.Errorf("invalid hourly time axis: %w", err)
	}

	table := &models.ForecastTable{
		Model:  model,
		Fields: append([]string(nil), fields...),
		Rows:   make([]models.ForecastRow, len(stamps)),
	}
	for i, ts := range stamps {
		values := make([]float64, len(fields))
		for j := range values {
			values[j] = math.NaN()
		}
		table.Rows[i] = models.ForecastRow{Date: time.Unix(ts, 0).UTC(), Values: values}
	}

	for j, field := range fields {
		raw, ok := resp.Hourly[field]
		if !ok {
			continue
		}
		var column []*float64
		if err := json.Unmarshal(raw, &column); err != nil {
			return nil, fmt.Errorf("invalid values for %s: %w", field, err)
		}
		for i := 0; i < len(column) && i < len(stamps); i++ {
			if column[i] != nil {
				table.Rows[i].Values[j] = *column[i]
			}
		}
	}

	sort.SliceStable(table.Rows, func(a, b int) bool {
		return table.Rows[a].Date.Before(table.Rows[b].Date)
	})
	return table, nil
}
