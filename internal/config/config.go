// Package config loads 12-factor runtime configuration: how many
// simulated DSP cores to boot, the logging posture, and where the optional
// debug metrics/mailbox-bridge listeners bind. Per-platform descriptors
// (memory pool sizes, DAI table, SRC rate bank) are a separate concern,
// handled by internal/platform, since those vary by board image rather
// than by deployment environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all environment-driven runtime configuration.
type Config struct {
	Runtime RuntimeConfig
	Logging LogConfig
	Metrics MetricsConfig
	Mailbox MailboxConfig
}

// RuntimeConfig controls the simulated multi-core scheduler.
type RuntimeConfig struct {
	Cores         int `envconfig:"CORES" default:"2"`
	DefaultPeriod int `envconfig:"DEFAULT_PERIOD_US" default:"1000"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig controls the optional prometheus debug listener.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"METRICS_ADDR" default:"127.0.0.1:9100"`
}

// MailboxConfig controls the optional websocket loopback bridge that
// stands in for the real shared-memory mailbox windows
// when driving this core from an out-of-process host simulator.
type MailboxConfig struct {
	Enabled bool   `envconfig:"MAILBOX_BRIDGE_ENABLED" default:"false"`
	Addr    string `envconfig:"MAILBOX_BRIDGE_ADDR" default:"127.0.0.1:9200"`
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("DSPCORE", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads from the environment, falling back to Default() on
// any error rather than failing boot over a malformed env var.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{Cores: 2, DefaultPeriod: 1000},
		Logging: LogConfig{Level: "info", Development: false},
		Metrics: MetricsConfig{Enabled: true, Addr: "127.0.0.1:9100"},
		Mailbox: MailboxConfig{Enabled: false, Addr: "127.0.0.1:9200"},
	}
}
