package middleware

import (
	"context"
	"strings"

	"github.com/bookwell/bookwell/internal/pkg/ctxkey"
	"github.com/bookwell/bookwell/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// RequestLogger assigns each request an ID, echoes it in the response header,
// and seeds the request context with a logger carrying the shared fields.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request == nil {
			c.Next()
			return
		}

		id := requestID(c)
		c.Header(requestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), ctxkey.RequestID, id)
		ctx = logger.IntoContext(ctx, logger.With(
			zap.String("component", "http"),
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		))

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestID honors an inbound X-Request-ID so IDs propagate across services.
func requestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}
