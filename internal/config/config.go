// Package config provides configuration loading, defaults, and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/google/wire"
)

// ProviderSet is the Wire provider set for configuration.
var ProviderSet = wire.NewSet(Load)

type Config struct {
	Server       ServerConfig              `mapstructure:"server"`
	Log          LogConfig                 `mapstructure:"log"`
	Redis        RedisConfig               `mapstructure:"redis"`
	LockManager  LockManagerConfig         `mapstructure:"lock_manager"`
	TokenRefresh TokenRefreshConfig        `mapstructure:"token_refresh"`
	Providers    map[string]ProviderConfig `mapstructure:"providers"`
	Timezone     string                    `mapstructure:"timezone"` // e.g. "Europe/Berlin", "UTC"
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode is the gin mode: debug / release / test.
	Mode                     string `mapstructure:"mode"`
	ReadHeaderTimeoutSeconds int    `mapstructure:"read_header_timeout"`
	IdleTimeoutSeconds       int    `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level           string            `mapstructure:"level"`
	Format          string            `mapstructure:"format"`
	ServiceName     string            `mapstructure:"service_name"`
	Environment     string            `mapstructure:"env"`
	Caller          bool              `mapstructure:"caller"`
	StacktraceLevel string            `mapstructure:"stacktrace_level"`
	Output          LogOutputConfig   `mapstructure:"output"`
	Rotation        LogRotationConfig `mapstructure:"rotation"`
	Sampling        LogSamplingConfig `mapstructure:"sampling"`
}

type LogOutputConfig struct {
	ToStdout bool   `mapstructure:"to_stdout"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

type LogRotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
	LocalTime  bool `mapstructure:"local_time"`
}

type LogSamplingConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Initial    int  `mapstructure:"initial"`
	Thereafter int  `mapstructure:"thereafter"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// DialTimeoutSeconds bounds connection establishment so a slow redis
	// cannot block startup indefinitely.
	DialTimeoutSeconds  int  `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int  `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int  `mapstructure:"write_timeout_seconds"`
	PoolSize            int  `mapstructure:"pool_size"`
	MinIdleConns        int  `mapstructure:"min_idle_conns"`
	EnableTLS           bool `mapstructure:"enable_tls"`
}

func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LockManagerConfig configures the in-process resource lock table.
type LockManagerConfig struct {
	// TTL is the lock lease duration. It is a safety net for holders that
	// are alive but wedged; liveness-based recovery handles dead holders.
	TTL time.Duration `mapstructure:"ttl"`
}

// TokenRefreshConfig configures proactive OAuth token refresh.
type TokenRefreshConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// CheckInterval is how often the scheduler scans for credentials that
	// are about to expire.
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// RefreshBeforeExpiry starts refreshing this long before a credential
	// actually expires.
	RefreshBeforeExpiry time.Duration `mapstructure:"refresh_before_expiry"`
	// BatchLimit caps how many integrations one sweep picks up.
	BatchLimit int `mapstructure:"batch_limit"`
	// Workers caps concurrent refreshes per sweep.
	Workers int `mapstructure:"workers"`
}

// ProviderConfig holds the OAuth token endpoint settings for one external
// provider, keyed by provider kind (google_calendar, zoom, ...).
type ProviderConfig struct {
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	ProxyURL     string `mapstructure:"proxy_url"`
}

// Load reads and validates the full configuration.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Config paths in priority order.
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		viper.AddConfigPath(dataDir)
	}
	viper.AddConfigPath("/app/data")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bookwell")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config error: %w", err)
		}
		// Missing config file is fine, defaults + env apply.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}

	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Log.ServiceName = strings.TrimSpace(cfg.Log.ServiceName)
	cfg.Log.Environment = strings.TrimSpace(cfg.Log.Environment)
	cfg.Log.StacktraceLevel = strings.ToLower(strings.TrimSpace(cfg.Log.StacktraceLevel))
	cfg.Log.Output.FilePath = strings.TrimSpace(cfg.Log.Output.FilePath)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)

	normalized := make(map[string]ProviderConfig, len(cfg.Providers))
	for kind, pc := range cfg.Providers {
		pc.TokenURL = strings.TrimSpace(pc.TokenURL)
		pc.ClientID = strings.TrimSpace(pc.ClientID)
		pc.ClientSecret = strings.TrimSpace(pc.ClientSecret)
		pc.ProxyURL = strings.TrimSpace(pc.ProxyURL)
		normalized[strings.ToLower(strings.TrimSpace(kind))] = pc
	}
	cfg.Providers = normalized

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_header_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.service_name", "bookwell")
	viper.SetDefault("log.env", "production")
	viper.SetDefault("log.caller", true)
	viper.SetDefault("log.stacktrace_level", "error")
	viper.SetDefault("log.output.to_stdout", true)
	viper.SetDefault("log.output.to_file", false)
	viper.SetDefault("log.output.file_path", "")
	viper.SetDefault("log.rotation.max_size_mb", 100)
	viper.SetDefault("log.rotation.max_backups", 10)
	viper.SetDefault("log.rotation.max_age_days", 7)
	viper.SetDefault("log.rotation.compress", true)
	viper.SetDefault("log.rotation.local_time", true)
	viper.SetDefault("log.sampling.enabled", false)
	viper.SetDefault("log.sampling.initial", 100)
	viper.SetDefault("log.sampling.thereafter", 100)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dial_timeout_seconds", 5)
	viper.SetDefault("redis.read_timeout_seconds", 3)
	viper.SetDefault("redis.write_timeout_seconds", 3)
	viper.SetDefault("redis.pool_size", 50)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.enable_tls", false)

	// Lock manager: 90s lease, long enough for one slow provider round
	// trip, short enough that a wedged holder does not park the key.
	viper.SetDefault("lock_manager.ttl", "90s")

	// Token refresh scheduler
	viper.SetDefault("token_refresh.enabled", true)
	viper.SetDefault("token_refresh.check_interval", "1m")
	viper.SetDefault("token_refresh.refresh_before_expiry", "5m")
	viper.SetDefault("token_refresh.batch_limit", 100)
	viper.SetDefault("token_refresh.workers", 8)

	viper.SetDefault("timezone", "UTC")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		return fmt.Errorf("log.level is required")
	default:
		return fmt.Errorf("log.level must be one of: debug/info/warn/error")
	}
	switch c.Log.Format {
	case "json", "console":
	case "":
		return fmt.Errorf("log.format is required")
	default:
		return fmt.Errorf("log.format must be one of: json/console")
	}
	switch c.Log.StacktraceLevel {
	case "none", "error", "fatal":
	case "":
		return fmt.Errorf("log.stacktrace_level is required")
	default:
		return fmt.Errorf("log.stacktrace_level must be one of: none/error/fatal")
	}
	if c.LockManager.TTL <= 0 {
		return fmt.Errorf("lock_manager.ttl must be positive")
	}
	if c.TokenRefresh.Enabled {
		if c.TokenRefresh.CheckInterval <= 0 {
			return fmt.Errorf("token_refresh.check_interval must be positive")
		}
		if c.TokenRefresh.RefreshBeforeExpiry < 0 {
			return fmt.Errorf("token_refresh.refresh_before_expiry must not be negative")
		}
		if c.TokenRefresh.BatchLimit <= 0 {
			return fmt.Errorf("token_refresh.batch_limit must be positive")
		}
		if c.TokenRefresh.Workers <= 0 {
			return fmt.Errorf("token_refresh.workers must be positive")
		}
	}
	for kind, pc := range c.Providers {
		if pc.TokenURL == "" {
			return fmt.Errorf("providers.%s.token_url is required", kind)
		}
		if pc.ClientID == "" {
			return fmt.Errorf("providers.%s.client_id is required", kind)
		}
	}
	return nil
}
