package http

import (
	"context"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker is anything that can report whether a backing service is up.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to HealthChecker.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler reports on the given named dependencies. Only configured
// backends should be passed; a nil checker is reported as "not configured".
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	checks := make(map[string]string, len(names))
	allHealthy := true
	for _, name := range names {
		checker := h.checks[name]
		if checker == nil {
			checks[name] = "not configured"
			continue
		}
		if err := checker.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
