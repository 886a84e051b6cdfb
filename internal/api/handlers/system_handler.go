package handlers

import (
	"context"
	"time"

	"medical-record-versioning/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type SystemHandler struct {
	db      Pinger
	metrics *metrics.MetricsCollector
}

func NewSystemHandler(db Pinger, collector *metrics.MetricsCollector) *SystemHandler {
	return &SystemHandler{db: db, metrics: collector}
}

func (h *SystemHandler) Health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "time": time.Now().UTC()}
	if h.db == nil {
		return c.JSON(status)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	status["database"] = "ok"
	return c.JSON(status)
}

func (h *SystemHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"counters":  h.metrics.GetCounters(),
		"latencies": h.metrics.GetLatencies(),
		"sizes":     h.metrics.GetSizes(),
	})
}

func RegisterSystemRoutes(router fiber.Router, sh *SystemHandler) {
	router.Get("/health", sh.Health)
	router.Get("/metrics", sh.Metrics)
}
