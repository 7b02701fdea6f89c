package health

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models/api"
)

// Handler handles health check requests
type Handler struct {
	logger *logger.Logger
}

// NewHandler creates a new health handler
func NewHandler(log *logger.Logger) *Handler {
	return &Handler{
		logger: log,
	}
}

// HealthCheck handles the /health-check endpoint; load balancers expect the plain body "success".
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", c.Path()).
		Str("remote_addr", c.IP()).
		Msg("Health check completed")
	return c.SendString("success")
}

// Health handles the JSON /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	})
}
