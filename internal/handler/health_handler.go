package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/bookwell/bookwell/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports process liveness and Redis reachability.
type HealthHandler struct {
	rdb *redis.Client
}

func NewHealthHandler(rdb *redis.Client) *HealthHandler {
	return &HealthHandler{rdb: rdb}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.rdb.Ping(ctx).Err(); err != nil {
		response.Error(c, http.StatusServiceUnavailable, "redis unavailable: "+err.Error())
		return
	}

	response.Success(c, gin.H{"status": "ok"})
}
