package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fogcast/cron-runner/pkg/models"
)

func TestPegelOnlineClient_WaterLevels(t *testing.T) {
	var path, start string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		start = r.URL.Query().Get("start")
		_, _ = w.Write([]byte(`[
			{"timestamp":"2024-05-01T00:00:00+02:00","value":321.0},
			{"timestamp":"2024-05-01T00:15:00+02:00","value":321.9}
		]`))
	}))
	defer srv.Close()

	client := NewPegelOnlineClient(PegelOnlineConfig{BaseURL: srv.URL + "/", Backoff: testBackoff()}, srv.Client())
	levels, err := client.WaterLevels(context.Background(), models.KonstanzRhein, models.PeriodLast24Hours)
	require.NoError(t, err)

	assert.Equal(t, "/stations/"+models.KonstanzRhein.UUID+"/W/measurements.json", path)
	assert.Equal(t, "P1D", start)
	require.Len(t, levels, 2)
	assert.Equal(t, time.Date(2024, 4, 30, 22, 0, 0, 0, time.UTC), levels[0].Timestamp)
	assert.Equal(t, 321, levels[1].Value, "values are truncated to whole centimetres")
}

func TestPegelOnlineClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"status":404}`},
		{name: "bad json", status: http.StatusOK, body: `{`},
		{name: "bad timestamp", status: http.StatusOK, body: `[{"timestamp":"yesterday","value":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewPegelOnlineClient(PegelOnlineConfig{BaseURL: srv.URL, Backoff: testBackoff()}, srv.Client())
			_, err := client.WaterLevels(context.Background(), models.KonstanzBodensee, models.PeriodLast24Hours)
			assert.Error(t, err)
		})
	}
}
