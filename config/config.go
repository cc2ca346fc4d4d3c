package config

import (
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/wirebus/wirebus/internal/broker"
)

// Config holds the full server configuration, populated from environment
// variables (with an optional .env file for development).
type Config struct {
	// Server
	Host    string `env:"HOST" envDefault:"0.0.0.0"`
	Port    string `env:"PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"release"`

	// Broker
	MaxQueueSize       int    `env:"MAX_QUEUE_SIZE" envDefault:"1000"`
	RingBufferSize     int    `env:"RING_BUFFER_SIZE" envDefault:"100"`
	BackpressurePolicy string `env:"BACKPRESSURE_POLICY" envDefault:"DROP_OLDEST"`

	// Session timing
	PingPeriod time.Duration `env:"PING_PERIOD" envDefault:"30s"`
	PongWait   time.Duration `env:"PONG_WAIT" envDefault:"60s"`
	WriteWait  time.Duration `env:"WRITE_WAIT" envDefault:"10s"`

	// Inbound rate limiting (frames/sec per session, 0 disables)
	InboundRate  float64 `env:"INBOUND_RATE_LIMIT" envDefault:"0"`
	InboundBurst int     `env:"INBOUND_RATE_BURST" envDefault:"20"`

	// HTTP server
	ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"0"`

	// Shutdown
	DrainTimeout    time.Duration `env:"SHUTDOWN_DRAIN_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Logging / diagnostics
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	DevMode   bool   `env:"DEV_MODE" envDefault:"false"`
}

// Load reads configuration with priority: environment variables over .env
// file over defaults. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enums.
func (c *Config) Validate() error {
	if c.MaxQueueSize < 1 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be > 0, got %d", c.MaxQueueSize)
	}
	if c.RingBufferSize < 0 {
		return fmt.Errorf("RING_BUFFER_SIZE must be >= 0, got %d", c.RingBufferSize)
	}
	if _, err := broker.ParsePolicy(c.BackpressurePolicy); err != nil {
		return err
	}
	if c.PingPeriod <= 0 || c.PongWait <= 0 {
		return fmt.Errorf("PING_PERIOD and PONG_WAIT must be positive")
	}
	if c.PingPeriod >= c.PongWait {
		return fmt.Errorf("PING_PERIOD (%s) must be shorter than PONG_WAIT (%s)", c.PingPeriod, c.PongWait)
	}
	if c.InboundRate < 0 {
		return fmt.Errorf("INBOUND_RATE_LIMIT must be >= 0, got %v", c.InboundRate)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got %q)", c.LogFormat)
	}
	return nil
}

// Policy returns the parsed backpressure policy. Call after Validate.
func (c *Config) Policy() broker.Policy {
	p, _ := broker.ParsePolicy(c.BackpressurePolicy)
	return p
}

// Addr returns the bind address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
