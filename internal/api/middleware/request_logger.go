package middleware

import (
	"time"

	"medical-record-versioning/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request and records its latency.
func RequestLogger(logger *zap.Logger, collector *metrics.MetricsCollector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			// The error handler has not written the response yet.
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = StatusFor(err)
			}
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
		}
		if actor, aErr := ActorFrom(c); aErr == nil {
			fields = append(fields, zap.String("actor_id", actor.ID.String()), zap.String("role", string(actor.Role)))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("Request failed", append(fields, zap.Error(err))...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}

		if collector != nil {
			collector.ObserveLatency("http_request", elapsed)
		}
		return err
	}
}
