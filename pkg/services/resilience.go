package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/fogcast/cron-runner/pkg/logger"
)

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errNoHTTPClient = errors.New("http client not configured")

	// ErrCircuitOpen is returned while the upstream is considered down.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// maxBodySize caps upstream responses; a 16 day forecast for one model is well below this.
const maxBodySize = 32 << 20

// APIError is a non-retryable error response from an upstream API.
type APIError struct {
	StatusCode int
	Reason     string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("API error (status %d)", e.StatusCode)
}

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff retries five times starting at 200ms.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		MaxRetries:      5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// reasonDecoder extracts an error reason from a non-2xx body.
type reasonDecoder func(body []byte) string

// resilientClient performs GET requests with retries, exponential backoff and circuit breakers.
// Breakers are kept per key so that one failing resource (a forecast model) cannot open the
// circuit for the others served by the same upstream.
type resilientClient struct {
	name    string
	client  *http.Client
	backoff BackoffConfig
	reason  reasonDecoder
	logger  *logger.Logger

	mu       sync.Mutex
	circuits map[string]*gobreaker.CircuitBreaker
}

func newResilientClient(name string, client *http.Client, backoff BackoffConfig, reason reasonDecoder) *resilientClient {
	return &resilientClient{
		name:     name,
		client:   client,
		backoff:  backoff,
		reason:   reason,
		logger:   logger.New(name + "-client"),
		circuits: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// circuit returns the breaker for key, creating it on first use.
func (c *resilientClient) circuit(key string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.circuits[key]; ok {
		return cb
	}

	name := c.name
	if key != "" {
		name += "/" + key
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// a rejected request (bad model, no data for location) says nothing about upstream health
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || errors.As(err, &apiErr)
		},
	})
	c.circuits[key] = cb
	return cb
}

// get fetches url through the client-wide breaker.
func (c *resilientClient) get(ctx context.Context, url string) ([]byte, error) {
	return c.getKeyed(ctx, "", url)
}

// getKeyed fetches url through the breaker of key and returns the body of a 2xx response.
func (c *resilientClient) getKeyed(ctx context.Context, key, url string) ([]byte, error) {
	if c.client == nil {
		return nil, errNoHTTPClient
	}
	circuit := c.circuit(key)

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		start := time.Now()
		status := 0
		result, err := circuit.Execute(func() (interface{}, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, err
			}

			resp, err := c.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer func() { _ = resp.Body.Close() }()
			status = resp.StatusCode

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if err != nil {
				return nil, fmt.Errorf("failed to read response body: %w", err)
			}

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				apiErr := &APIError{StatusCode: resp.StatusCode}
				if c.reason != nil {
					apiErr.Reason = c.reason(body)
				}
				return nil, apiErr
			}
			return body, nil
		})
		c.logger.LogAPICall(http.MethodGet, url, status, time.Since(start), err)

		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, circuit.Name(), err)
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if attempt >= c.backoff.MaxRetries {
			return nil, fmt.Errorf("%s: giving up after %d attempts: %w", c.name, attempt+1, err)
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.backoff.MaxInterval && c.backoff.MaxInterval > 0 {
			delay = c.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}
