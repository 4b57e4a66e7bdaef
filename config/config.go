// Package config decodes the gateway's process configuration from the
// environment. Values are read once at startup; nothing here is mutable at
// runtime.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full gateway configuration.
type Config struct {
	// ListenAddr is the HTTP bind address. ENV: LISTEN_ADDR
	ListenAddr string `env:"LISTEN_ADDR,default=:8080"`

	// EncryptionKey is the shared secret protecting stored connection
	// credentials. Any length is accepted; it is hashed down to the
	// cipher key size. ENV: ENCRYPTION_KEY
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// LogLevel is the minimum level emitted: debug, info, warn, error.
	// ENV: LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// RedisAddr selects the Redis KV backend when set; empty selects the
	// in-memory backend. ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`

	// PostgresDSN is the relational store holding caller and connection
	// records. ENV: POSTGRES_DSN
	PostgresDSN string `env:"POSTGRES_DSN"`

	// SessionTTL is the session lifetime. ENV: SESSION_TTL
	SessionTTL time.Duration `env:"SESSION_TTL,default=24h"`

	// RateLimitMax and RateLimitWindowSeconds define the fixed-window
	// quota. ENV: RATE_LIMIT_MAX, RATE_LIMIT_WINDOW_SECONDS
	RateLimitMax           int `env:"RATE_LIMIT_MAX,default=100"`
	RateLimitWindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS,default=60"`

	// QueryTimeout bounds one remote graph query. ENV: QUERY_TIMEOUT
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT,default=30s"`

	// TokenBudget is the default response budget in estimated tokens.
	// ENV: TOKEN_BUDGET
	TokenBudget int `env:"TOKEN_BUDGET,default=4000"`

	// SchemaCacheTTL is how long an extracted schema stays cached.
	// ENV: SCHEMA_CACHE_TTL
	SchemaCacheTTL time.Duration `env:"SCHEMA_CACHE_TTL,default=5m"`

	// MetricsAddr exposes Prometheus metrics when set, e.g. ":9090".
	// ENV: METRICS_ADDR
	MetricsAddr string `env:"METRICS_ADDR"`
}

// Load decodes the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured level name to its slog value. Unknown
// names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
