// Package server wires middleware, routes and the HTTP server.
package server

import (
	"net/http"
	"time"

	"github.com/bookwell/bookwell/internal/config"
	"github.com/bookwell/bookwell/internal/handler"
	middleware2 "github.com/bookwell/bookwell/internal/server/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
)

// ProviderSet is the server layer's provider set.
var ProviderSet = wire.NewSet(
	NewRouter,
	NewHTTPServer,
)

// NewRouter configures middleware and routes.
func NewRouter(cfg *config.Config, handlers *handler.Handlers) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware2.RequestLogger())
	r.Use(middleware2.Logger())

	registerRoutes(r, handlers)

	return r
}

// registerRoutes registers all HTTP routes.
func registerRoutes(r *gin.Engine, h *handler.Handlers) {
	r.GET("/health", h.Health.Health)

	v1 := r.Group("/api/v1")

	integrations := v1.Group("/integrations")
	{
		integrations.POST("/:provider/:id/refresh", h.Integration.RefreshCredential)
		integrations.GET("/:provider/:id/credential", h.Integration.GetCredentialStatus)
	}
}

// NewHTTPServer builds the http.Server around the configured router.
func NewHTTPServer(cfg *config.Config, r *gin.Engine) *http.Server {
	readHeaderTimeout := time.Duration(cfg.Server.ReadHeaderTimeoutSeconds) * time.Second
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}
	idleTimeout := time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}

	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}
