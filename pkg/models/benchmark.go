package models

import "time"

// BenchmarkFeatures are the forecast fields compared against observations.
var BenchmarkFeatures = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"precipitation",
	"cloud_cover",
	"surface_pressure",
	"dew_point_2m",
}

// Horizon is a look-back window ending at the benchmark time.
type Horizon struct {
	Name   string
	Window time.Duration
}

var Horizons = []Horizon{
	{Name: "very short", Window: 24 * time.Hour},
	{Name: "short", Window: 3 * 24 * time.Hour},
	{Name: "medium", Window: 7 * 24 * time.Hour},
	{Name: "long", Window: 15 * 24 * time.Hour},
}

// ForecastSample is one stored forecast value as read back from the time-series database.
type ForecastSample struct {
	Time         time.Time
	ForecastDate string
	Model        string
	Field        string
	Value        float64
}

// Observation is the measured value of every benchmark feature for one hour.
type Observation struct {
	Time   time.Time
	Values map[string]float64
}

// ErrorScore is a forecast sample joined with the observed value and its error.
type ErrorScore struct {
	ForecastSample
	Actual  float64
	Error   float64
	Horizon string
}

// ErrorSummary aggregates error scores per model, feature and horizon.
type ErrorSummary struct {
	Model   string  `json:"model"`
	Feature string  `json:"feature"`
	Horizon string  `json:"horizon"`
	Count   int     `json:"count"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
}
