package http

import (
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/metrics"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// MetricsHandler reports capability latencies and database pool health.
type MetricsHandler struct {
	latency *metrics.LatencyRegistry
	pools   *metrics.PoolMonitor
}

func NewMetricsHandler(latency *metrics.LatencyRegistry, pools *metrics.PoolMonitor) *MetricsHandler {
	return &MetricsHandler{latency: latency, pools: pools}
}

func (h *MetricsHandler) Register(router fiber.Router) {
	router.Get("/metrics", h.Metrics)
}

func (h *MetricsHandler) Metrics(c *fiber.Ctx) error {
	latency := make(map[string]map[string]any)
	for name, stats := range h.latency.AllStats() {
		latency[name] = stats.ToMap()
	}
	return response.OK(c, fiber.Map{
		"latency": latency,
		"pools":   h.pools.Reports(),
	})
}
