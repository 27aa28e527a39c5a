package service

import (
	"github.com/bookwell/bookwell/internal/pkg/reslock"

	"github.com/google/wire"
)

// ProvideLockManager builds the process-wide resource lock table.
func ProvideLockManager() (*reslock.Manager, error) {
	return reslock.NewManager()
}

// ProviderSet is the Wire provider set for services.
var ProviderSet = wire.NewSet(
	ProvideLockManager,
	NewTokenRefreshCoordinator,
	NewTokenRefreshScheduler,
)
