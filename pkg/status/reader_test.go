package status

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name       string
		log        string
		wantStatus string
		wantRunID  string
		wantErrors int
	}{
		{
			name:       "empty",
			log:        "",
			wantStatus: Unknown,
		},
		{
			name: "clean tick",
			log: lines(
				`{"level":"info","run_id":"r1","@timestamp":"2024-05-01T13:00:00Z","message":"scheduler started"}`,
				`{"level":"info","message":"Finished"}`,
			),
			wantStatus: Success,
			wantRunID:  "r1",
		},
		{
			name: "errors before the last marker are ignored",
			log: lines(
				`{"level":"info","run_id":"r1","message":"scheduler started"}`,
				`{"level":"error","message":"Abort due to error in job"}`,
				`{"level":"info","run_id":"r2","message":"scheduler started"}`,
				`{"level":"warn","message":"Controlled abort"}`,
			),
			wantStatus: Success,
			wantRunID:  "r2",
		},
		{
			name: "error in last tick",
			log: lines(
				`{"level":"info","run_id":"r2","message":"scheduler started"}`,
				`{"level":"error","message":"Abort due to error in job"}`,
				`{"level":"error","message":"Abort due to error in job"}`,
			),
			wantStatus: Error,
			wantRunID:  "r2",
			wantErrors: 2,
		},
		{
			name: "no marker inspects everything",
			log: lines(
				`{"level":"info","message":"config loaded"}`,
				`{"level":"fatal","message":"Failed to set up scheduler"}`,
			),
			wantStatus: Error,
			wantErrors: 1,
		},
		{
			name: "plain text lines",
			log: lines(
				`{"level":"info","message":"scheduler started"}`,
				`panic: runtime ERROR`,
			),
			wantStatus: Error,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Inspect(strings.NewReader(tt.log), DefaultMarker)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantRunID, resp.RunID)
			assert.Equal(t, tt.wantErrors, resp.Errors)
		})
	}
}

func TestInspect_StartedAt(t *testing.T) {
	resp, err := Inspect(strings.NewReader(`{"level":"info","@timestamp":"2024-05-01T13:00:00Z","message":"scheduler started"}`), DefaultMarker)
	require.NoError(t, err)
	require.NotNil(t, resp.StartedAt)
	assert.Equal(t, 13, resp.StartedAt.Hour())
}

func TestReader_Status(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cron.log")

	assert.Equal(t, Unknown, NewReader(path).Status().Status, "missing file")

	require.NoError(t, os.WriteFile(path, nil, 0o644))
	resp := NewReader(path).Status()
	assert.Equal(t, Unknown, resp.Status)
	assert.Equal(t, "log file is empty", resp.Message)

	require.NoError(t, os.WriteFile(path, []byte(`{"level":"info","message":"scheduler started"}`+"\n"), 0o644))
	assert.Equal(t, Success, NewReader(path).Status().Status)
}
