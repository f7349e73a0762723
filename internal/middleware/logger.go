package middleware

import (
	"time"

	"github.com/arc-invoice/backend/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	m := metrics.Get()
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		m.HTTPRequests.WithLabelValues(c.Route().Path, metrics.StatusClass(status)).Inc()

		reqID, _ := c.Locals(CtxRequestID).(string)
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if w := GetWallet(c); w != "" {
			fields = append(fields, zap.String("wallet", w))
		}
		log.Info("request", fields...)

		return err
	}
}
