package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fogcast/cron-runner/pkg/models"
)

type PegelOnlineConfig struct {
	BaseURL string
	Timeout time.Duration
	Backoff BackoffConfig
}

// PegelOnlineClient reads gauge measurements from the Pegel Online REST API.
type PegelOnlineClient struct {
	baseURL string
	http    *resilientClient
}

func NewPegelOnlineClient(cfg PegelOnlineConfig, client *http.Client) *PegelOnlineClient {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &PegelOnlineClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    newResilientClient("pegel-online", client, cfg.Backoff, nil),
	}
}

type pegelMeasurement struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// MeasurementsURL is the water level ("W") endpoint of a station.
func (c *PegelOnlineClient) MeasurementsURL(station models.Station, period models.Period) string {
	return fmt.Sprintf("%s/stations/%s/W/measurements.json?start=%s",
		c.baseURL, url.PathEscape(station.UUID), url.QueryEscape(string(period)))
}

// WaterLevels returns the station's readings for the period, oldest first. Values are truncated to whole centimetres.
func (c *PegelOnlineClient) WaterLevels(ctx context.Context, station models.Station, period models.Period) ([]models.WaterLevel, error) {
	body, err := c.http.get(ctx, c.MeasurementsURL(station, period))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch water levels for %s: %w", station.Name, err)
	}

	var raw []pegelMeasurement
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode water levels for %s: %w", station.Name, err)
	}

	levels := make([]models.WaterLevel, 0, len(raw))
	for _, m := range raw {
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q for %s: %w", m.Timestamp, station.Name, err)
		}
		levels = append(levels, models.WaterLevel{Timestamp: ts.UTC(), Value: int(m.Value)})
	}
	return levels, nil
}
