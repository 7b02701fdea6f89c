package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fogcast/cron-runner/pkg/handlers/health"
	"github.com/fogcast/cron-runner/pkg/handlers/status"
	"github.com/fogcast/cron-runner/pkg/logger"
	"github.com/fogcast/cron-runner/pkg/middleware"
)

// Options selects what the server exposes
type Options struct {
	Port    string
	Status  status.Source // nil disables /cronjob-status
	Metrics bool
}

// Server represents the status server
type Server struct {
	app      *fiber.App
	port     string
	logger   *logger.Logger
	handlers struct {
		health *health.Handler
		status *status.Handler
	}
}

// New creates a new server instance
func New(opts Options, log *logger.Logger) (*Server, error) {
	if opts.Port == "" {
		return nil, errors.New("server port is required")
	}

	app := fiber.New(fiber.Config{
		AppName:               "fogcast-cron-status",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	server := &Server{
		app:    app,
		port:   opts.Port,
		logger: log,
	}

	server.handlers.health = health.NewHandler(log)
	if opts.Status != nil {
		server.handlers.status = status.NewHandler(opts.Status, log)
	}

	server.setupRoutes(opts.Metrics)
	return server, nil
}

// App exposes the fiber app, mainly for app.Test in tests
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes(withMetrics bool) {
	s.app.Use(recover.New())
	s.app.Use(middleware.CORS())

	s.app.Get("/health-check", s.handlers.health.HealthCheck)
	s.app.Get("/health", s.handlers.health.Health)

	if s.handlers.status != nil {
		s.app.Get("/cronjob-status", s.handlers.status.CronjobStatus)
	}
	if withMetrics {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}
}

// Start listens until the server is shut down
func (s *Server) Start() error {
	s.logger.Info().
		Str("action", "server_start").
		Str("port", s.port).
		Msg("Starting status server")

	if err := s.app.Listen(":" + s.port); err != nil {
		return fmt.Errorf("server failed to start on port %s: %w", s.port, err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().
		Str("action", "server_stop").
		Msg("Stopping status server")
	return s.app.ShutdownWithContext(ctx)
}
