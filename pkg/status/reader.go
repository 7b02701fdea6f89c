// Package status derives the health of the last scheduler tick from the run log.
package status

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fogcast/cron-runner/pkg/models/api"
)

const (
	Success = "success"
	Error   = "error"
	Unknown = "unknown"
)

// DefaultMarker is the message that opens a tick block.
const DefaultMarker = "scheduler started"

const maxLineSize = 1 << 20

var errorLevels = map[string]bool{
	"error": true,
	"fatal": true,
	"panic": true,
}

type logLine struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	RunID     string `json:"run_id"`
	Timestamp string `json:"@timestamp"`
}

// Reader inspects a log file written by the scheduler.
type Reader struct {
	path   string
	marker string
}

func NewReader(path string) *Reader {
	return &Reader{path: path, marker: DefaultMarker}
}

// Status reads the file and reports on the block after the last start marker.
// Without a marker the whole file is inspected.
func (r *Reader) Status() api.StatusResponse {
	f, err := os.Open(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return api.StatusResponse{Status: Unknown, Message: "log file not found"}
	}
	if err != nil {
		return api.StatusResponse{Status: Unknown, Message: fmt.Sprintf("failed to read log file: %v", err)}
	}
	defer func() { _ = f.Close() }()

	resp, err := Inspect(f, r.marker)
	if err != nil {
		return api.StatusResponse{Status: Unknown, Message: fmt.Sprintf("failed to read log file: %v", err)}
	}
	return resp
}

// Inspect scans JSON log lines. Lines that are not JSON count as errors when they contain "ERROR".
func Inspect(in io.Reader, marker string) (api.StatusResponse, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		lines    int
		errCount int
		runID    string
		started  *time.Time
	)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(strings.TrimSpace(string(raw))) == 0 {
			continue
		}
		lines++

		var line logLine
		if err := json.Unmarshal(raw, &line); err != nil {
			if strings.Contains(string(raw), "ERROR") {
				errCount++
			}
			continue
		}

		if line.Message == marker {
			errCount = 0
			runID = line.RunID
			started = nil
			if ts, err := time.Parse(time.RFC3339, line.Timestamp); err == nil {
				started = &ts
			}
			continue
		}
		if errorLevels[strings.ToLower(line.Level)] {
			errCount++
		}
	}
	if err := scanner.Err(); err != nil {
		return api.StatusResponse{}, err
	}

	if lines == 0 {
		return api.StatusResponse{Status: Unknown, Message: "log file is empty"}, nil
	}

	resp := api.StatusResponse{Status: Success, RunID: runID, StartedAt: started, Errors: errCount}
	if errCount > 0 {
		resp.Status = Error
	}
	return resp, nil
}
