package middleware

import (
	"time"

	"github.com/bookwell/bookwell/internal/pkg/ctxkey"
	"github.com/bookwell/bookwell/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Logger writes one access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		path := c.Request.URL.Path

		c.Next()

		// Skip high-frequency probe paths.
		if path == "/health" {
			return
		}

		latency := time.Since(startTime)

		statusCode := c.Writer.Status()
		provider, _ := c.Request.Context().Value(ctxkey.Provider).(string)
		integrationID, hasIntegrationID := c.Request.Context().Value(ctxkey.IntegrationID).(int64)

		fields := []zap.Field{
			zap.String("component", "http.access"),
			zap.Int("status_code", statusCode),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		}
		if provider != "" {
			fields = append(fields, zap.String("provider", provider))
		}
		if hasIntegrationID && integrationID > 0 {
			fields = append(fields, zap.Int64("integration_id", integrationID))
		}

		requestLogger := logger.FromContext(c.Request.Context())
		switch {
		case statusCode >= 500:
			requestLogger.Error("http request", fields...)
		case statusCode >= 400:
			requestLogger.Warn("http request", fields...)
		default:
			requestLogger.Info("http request", fields...)
		}
	}
}
