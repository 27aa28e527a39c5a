//go:build wireinject
// +build wireinject

package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/bookwell/bookwell/internal/config"
	"github.com/bookwell/bookwell/internal/handler"
	"github.com/bookwell/bookwell/internal/pkg/reslock"
	"github.com/bookwell/bookwell/internal/repository"
	"github.com/bookwell/bookwell/internal/server"
	"github.com/bookwell/bookwell/internal/service"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

type Application struct {
	Config    *config.Config
	Server    *http.Server
	Scheduler *service.TokenRefreshScheduler
	Cleanup   func()
}

func initializeApplication() (*Application, error) {
	wire.Build(
		// Infrastructure layer ProviderSets
		config.ProviderSet,

		// Business layer ProviderSets
		repository.ProviderSet,
		service.ProviderSet,
		handler.ProviderSet,

		// Server layer ProviderSet
		server.ProviderSet,

		// Cleanup function provider
		provideCleanup,

		// Application struct
		wire.Struct(new(Application), "Config", "Server", "Scheduler", "Cleanup"),
	)
	return nil, nil
}

func provideCleanup(
	rdb *redis.Client,
	locks *reslock.Manager,
	scheduler *service.TokenRefreshScheduler,
) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Cleanup steps in reverse dependency order
		cleanupSteps := []struct {
			name string
			fn   func() error
		}{
			{"TokenRefreshScheduler", func() error {
				if scheduler != nil {
					scheduler.Stop()
				}
				return nil
			}},
			{"LockManager", func() error {
				if locks != nil {
					locks.Stop()
				}
				return nil
			}},
			{"Redis", func() error {
				return rdb.Close()
			}},
		}

		for _, step := range cleanupSteps {
			if err := step.fn(); err != nil {
				log.Printf("[Cleanup] %s failed: %v", step.name, err)
				// Continue with remaining cleanup steps even if one fails
			} else {
				log.Printf("[Cleanup] %s succeeded", step.name)
			}
		}

		select {
		case <-ctx.Done():
			log.Printf("[Cleanup] Warning: cleanup timed out after 10 seconds")
		default:
			log.Printf("[Cleanup] All cleanup steps completed")
		}
	}
}
