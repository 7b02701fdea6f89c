package services

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hourlyBody = `{
	"latitude": 47.7,
	"longitude": 9.13,
	"hourly": {
		"time": [1714521600, 1714525200, 1714528800],
		"temperature_2m": [12.5, null, 11.0],
		"cloud_cover": [40, 55, null]
	}
}`

func testBackoff() BackoffConfig {
	return BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func newTestOpenMeteo(t *testing.T, handler http.HandlerFunc) *OpenMeteoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenMeteoClient(OpenMeteoConfig{BaseURL: srv.URL, Backoff: testBackoff()}, srv.Client())
}

func TestDecodeForecast(t *testing.T) {
	table, err := DecodeForecast([]byte(hourlyBody), "icon_d2", []string{"temperature_2m", "cloud_cover", "precipitation"})
	require.NoError(t, err)

	assert.Equal(t, "icon_d2", table.Model)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), table.Rows[0].Date)

	v, ok := table.Value(0, "temperature_2m")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = table.Value(1, "temperature_2m")
	assert.False(t, ok, "null becomes missing")

	for i := range table.Rows {
		assert.True(t, math.IsNaN(table.Rows[i].Values[2]), "fields the model lacks are missing")
	}
	assert.True(t, math.IsNaN(table.Rows[2].Values[1]))
}

func TestDecodeForecast_NoTimeAxis(t *testing.T) {
	_, err := DecodeForecast([]byte(`{"hourly":{}}`), "m", []string{"temperature_2m"})
	assert.Error(t, err)
}

func TestOpenMeteoClient_Forecast(t *testing.T) {
	var query map[string]string
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(hourlyBody))
	})

	table, err := client.Forecast(context.Background(), ForecastRequest{
		Model:        "icon_d2",
		Latitude:     47.6952,
		Longitude:    9.1307,
		Hourly:       []string{"temperature_2m", "cloud_cover"},
		ForecastDays: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())

	assert.Equal(t, "icon_d2", query["models"])
	assert.Equal(t, "GMT", query["timezone"])
	assert.Equal(t, "16", query["forecast_days"])
	assert.Equal(t, "temperature_2m,cloud_cover", query["hourly"])
	assert.Equal(t, "47.6952", query["latitude"])
}

func TestOpenMeteoClient_DateRange(t *testing.T) {
	client := NewOpenMeteoClient(OpenMeteoConfig{BaseURL: "https://api.example.test/v1/forecast"}, nil)
	u := client.ForecastURL(ForecastRequest{
		Hourly:       []string{"temperature_2m"},
		ForecastDays: 16,
		Start:        time.Date(2024, 4, 30, 13, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, u, "start_date=2024-04-30")
	assert.Contains(t, u, "end_date=2024-05-01")
	assert.NotContains(t, u, "forecast_days")
	assert.NotContains(t, u, "models=")
}

func TestOpenMeteoClient_NoData(t *testing.T) {
	var calls atomic.Int32
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"No data is available for this location"}`))
	})

	_, err := client.Forecast(context.Background(), ForecastRequest{Model: "arome_france", Hourly: []string{"temperature_2m"}})
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, int32(1), calls.Load(), "client errors are not retried")

	ok, err := client.ProbeModel(context.Background(), "arome_france", 47.7, 9.1)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenMeteoClient_BadRequestReason(t *testing.T) {
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Cannot initialize WeatherVariable from invalid String value foo"}`))
	})

	_, err := client.Forecast(context.Background(), ForecastRequest{Model: "icon_d2", Hourly: []string{"foo"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Reason, "invalid String value")
	assert.False(t, errors.Is(err, ErrNoData))
}

func TestOpenMeteoClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(hourlyBody))
	})

	table, err := client.Forecast(context.Background(), ForecastRequest{Model: "icon_d2", Hourly: []string{"temperature_2m"}})
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenMeteoClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Forecast(context.Background(), ForecastRequest{Model: "icon_d2", Hourly: []string{"temperature_2m"}})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestOpenMeteoClient_FetchModels(t *testing.T) {
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("models") == "broken" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":true,"reason":"No data is available for this location"}`))
			return
		}
		_, _ = w.Write([]byte(hourlyBody))
	})

	tables, failures := client.FetchModels(context.Background(),
		ForecastRequest{Hourly: []string{"temperature_2m"}}, []string{"icon_d2", "broken", "gfs_seamless"})

	require.Len(t, tables, 2)
	assert.Equal(t, "icon_d2", tables[0].Model)
	assert.Equal(t, "gfs_seamless", tables[1].Model)
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].Model)
	assert.ErrorIs(t, failures[0].Err, ErrNoData)
}

func TestOpenMeteoClient_FetchModels_FailingModelKeepsOthersReachable(t *testing.T) {
	var badCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("models") == "bad" {
			badCalls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(hourlyBody))
	}))
	t.Cleanup(srv.Close)

	backoff := BackoffConfig{MaxRetries: 5, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	client := NewOpenMeteoClient(OpenMeteoConfig{BaseURL: srv.URL, Backoff: backoff}, srv.Client())
	base := ForecastRequest{Hourly: []string{"temperature_2m"}}
	ids := []string{"bad", "icon_d2", "gfs_global", "ecmwf_ifs025"}

	tables, failures := client.FetchModels(context.Background(), base, ids)
	require.Len(t, tables, 3)
	require.Len(t, failures, 1)
	assert.Equal(t, "bad", failures[0].Model)
	assert.ErrorIs(t, failures[0].Err, errServerError)
	assert.Equal(t, int32(6), badCalls.Load())

	// the failing model has tripped its own breaker, the rest of the next batch is unaffected
	tables, failures = client.FetchModels(context.Background(), base, ids)
	require.Len(t, tables, 3)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrCircuitOpen)
	assert.Equal(t, int32(6), badCalls.Load(), "an open breaker sends no request")
}

func TestOpenMeteoObservations(t *testing.T) {
	client := newTestOpenMeteo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("models"))
		_, _ = w.Write([]byte(hourlyBody))
	})
	source := OpenMeteoObservations{Client: client, Latitude: 47.7, Longitude: 9.1}

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	obs, err := source.Observations(context.Background(), start, start.Add(time.Hour), []string{"temperature_2m", "cloud_cover"})
	require.NoError(t, err)

	require.Len(t, obs, 2, "hours outside the window are dropped")
	assert.Equal(t, 12.5, obs[0].Values["temperature_2m"])
	_, ok := obs[1].Values["temperature_2m"]
	assert.False(t, ok, "missing values are not observations")
}
