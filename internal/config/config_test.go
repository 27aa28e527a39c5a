package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.LockManager.TTL != 90*time.Second {
		t.Fatalf("lock_manager.ttl = %v, want 90s", cfg.LockManager.TTL)
	}
	if !cfg.TokenRefresh.Enabled {
		t.Fatalf("token_refresh.enabled = false, want true")
	}
	if cfg.TokenRefresh.CheckInterval != time.Minute {
		t.Fatalf("token_refresh.check_interval = %v, want 1m", cfg.TokenRefresh.CheckInterval)
	}
	if cfg.TokenRefresh.RefreshBeforeExpiry != 5*time.Minute {
		t.Fatalf("token_refresh.refresh_before_expiry = %v, want 5m", cfg.TokenRefresh.RefreshBeforeExpiry)
	}
	if cfg.TokenRefresh.BatchLimit != 100 || cfg.TokenRefresh.Workers != 8 {
		t.Fatalf("token_refresh batch/workers = %d/%d, want 100/8", cfg.TokenRefresh.BatchLimit, cfg.TokenRefresh.Workers)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("log defaults = %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("LOCK_MANAGER_TTL", "45s")
	t.Setenv("TOKEN_REFRESH_CHECK_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LockManager.TTL != 45*time.Second {
		t.Fatalf("lock_manager.ttl = %v, want 45s", cfg.LockManager.TTL)
	}
	if cfg.TokenRefresh.CheckInterval != 30*time.Second {
		t.Fatalf("token_refresh.check_interval = %v, want 30s", cfg.TokenRefresh.CheckInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: 8080},
			Log:    LogConfig{Level: "info", Format: "json", StacktraceLevel: "error"},
			LockManager: LockManagerConfig{
				TTL: 90 * time.Second,
			},
			TokenRefresh: TokenRefreshConfig{
				Enabled:             true,
				CheckInterval:       time.Minute,
				RefreshBeforeExpiry: 5 * time.Minute,
				BatchLimit:          100,
				Workers:             8,
			},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg = base()
	cfg.LockManager.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero lock ttl accepted")
	}

	cfg = base()
	cfg.Log.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("bad log level accepted")
	}

	cfg = base()
	cfg.TokenRefresh.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("zero workers accepted with refresh enabled")
	}

	cfg = base()
	cfg.Providers = map[string]ProviderConfig{
		"google_calendar": {ClientID: "id"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("provider without token_url accepted")
	}
}
