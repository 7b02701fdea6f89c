package status

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/models/api"
)

// Source reports the status of the latest tick
type Source interface {
	Status() api.StatusResponse
}

// Handler handles cron status requests
type Handler struct {
	source Source
	logger *logger.Logger
}

// NewHandler creates a new status handler
func NewHandler(source Source, log *logger.Logger) *Handler {
	return &Handler{
		source: source,
		logger: log,
	}
}

// CronjobStatus handles the /cronjob-status endpoint
func (h *Handler) CronjobStatus(c *fiber.Ctx) error {
	start := time.Now()
	resp := h.source.Status()

	h.logger.Debug().
		Str("action", "cronjob_status").
		Str("endpoint", c.Path()).
		Str("status", resp.Status).
		Dur("duration", time.Since(start)).
		Msg("Cronjob status served")

	return c.JSON(resp)
}
