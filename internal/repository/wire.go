// Package repository provides data access backed by Redis and external
// provider APIs.
package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/bookwell/bookwell/internal/config"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is the repository layer's provider set.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	NewCredentialStore,
	NewCalendarOAuthClient,
)

// NewRedisClient creates a Redis client and verifies connectivity before
// handing it out.
func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         cfg.Redis.Address(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  time.Duration(cfg.Redis.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}
	if cfg.Redis.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Address(), err)
	}
	return rdb, nil
}
