package handler

import (
	"github.com/google/wire"
)

// Handlers aggregates all HTTP handlers for route registration.
type Handlers struct {
	Health      *HealthHandler
	Integration *IntegrationHandler
}

// ProvideHandlers creates the Handlers struct
func ProvideHandlers(
	healthHandler *HealthHandler,
	integrationHandler *IntegrationHandler,
) *Handlers {
	return &Handlers{
		Health:      healthHandler,
		Integration: integrationHandler,
	}
}

// ProviderSet is the Wire provider set for all handlers
var ProviderSet = wire.NewSet(
	NewHealthHandler,
	NewIntegrationHandler,
	ProvideHandlers,
)
