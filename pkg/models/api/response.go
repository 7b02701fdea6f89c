package api

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse reports the outcome of the latest scheduler tick found in the run log.
type StatusResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Errors    int        `json:"errors,omitempty"`
}
