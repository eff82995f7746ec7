// Package config handles loading application configuration from environment variables.
// A .env file in the working directory is read first when present.
// All settings have sensible defaults for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DefaultChannelCapacity int `env:"DEFAULT_CHANNEL_CAPACITY" envDefault:"32"`
	MaxChannelCapacity     int `env:"MAX_CHANNEL_CAPACITY" envDefault:"65536"`
	RateLimitPerMinute     int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	TrustedProxies     []string `env:"TRUSTED_PROXIES" envSeparator:","`

	WSReadBuffer     int           `env:"WS_READ_BUFFER" envDefault:"1024"`
	WSWriteBuffer    int           `env:"WS_WRITE_BUFFER" envDefault:"1024"`
	WSWriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL" envDefault:"30s"`
	WSMaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	SSEHeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"30s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultChannelCapacity <= 0 {
		return fmt.Errorf("DEFAULT_CHANNEL_CAPACITY must be positive, got %d", c.DefaultChannelCapacity)
	}
	if c.MaxChannelCapacity > 0 && c.MaxChannelCapacity < c.DefaultChannelCapacity {
		return fmt.Errorf("MAX_CHANNEL_CAPACITY (%d) is below DEFAULT_CHANNEL_CAPACITY (%d)",
			c.MaxChannelCapacity, c.DefaultChannelCapacity)
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// PongWait is how long a WebSocket may stay silent before it is considered
// dead. Zero disables the check.
func (c *Config) PongWait() time.Duration {
	if c.WSPingInterval <= 0 {
		return 0
	}
	return 2 * c.WSPingInterval
}
