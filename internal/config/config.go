// Package config provides configuration types for pacegate.
//
// Configuration is file-based (pacegate.yaml) with environment variable
// overrides under the PACEGATE_ prefix. The central concept is the throttle
// policy: a named admission budget (requests per trailing window) that
// windows are built from. Durations are expressed as Go duration strings
// ("1s", "250ms") so they survive YAML and environment round-trips.
package config

import (
	"time"
)

// Default values applied by SetDefaults.
const (
	DefaultLogLevel      = "info"
	DefaultMetricsAddr   = "127.0.0.1:9141"
	DefaultWindow        = "1s"
	DefaultRetryInterval = "10ms"
)

// Config is the top-level configuration for pacegate.
type Config struct {
	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Metrics configures the optional Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Policies defines the named throttle policies. At least one is
	// required; names must be unique.
	Policies []PolicyConfig `yaml:"policies" mapstructure:"policies" validate:"required,min=1,dive"`
}

// MetricsConfig configures the Prometheus /metrics endpoint exposed by
// long-running commands.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: false (opt-in).
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the address to serve /metrics on.
	// Defaults to "127.0.0.1:9141" if empty.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// PolicyConfig defines one named throttle policy. One shared window is built
// per policy; every ordered stream gated under the policy draws on that
// window's budget.
type PolicyConfig struct {
	// Name identifies the policy in logs, metrics, and registry lookups.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	// RequestsPerWindow is the admission budget within the trailing window.
	RequestsPerWindow int `yaml:"requests_per_window" mapstructure:"requests_per_window" validate:"required,min=1"`

	// Window is the trailing window length (e.g. "1s", "500ms").
	// Defaults to "1s" if empty.
	Window string `yaml:"window" mapstructure:"window" validate:"omitempty,duration"`

	// RetryInterval is how long waiters sleep between admission polls
	// (e.g. "10ms"). Defaults to "10ms" if empty.
	RetryInterval string `yaml:"retry_interval" mapstructure:"retry_interval" validate:"omitempty,duration"`
}

// SetDefaults applies default values to unset optional fields.
// Existing values are preserved.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	for i := range c.Policies {
		if c.Policies[i].Window == "" {
			c.Policies[i].Window = DefaultWindow
		}
		if c.Policies[i].RetryInterval == "" {
			c.Policies[i].RetryInterval = DefaultRetryInterval
		}
	}
}

// WindowDuration parses the Window field. Call after Validate.
func (p PolicyConfig) WindowDuration() (time.Duration, error) {
	return time.ParseDuration(p.Window)
}

// RetryIntervalDuration parses the RetryInterval field. Call after Validate.
func (p PolicyConfig) RetryIntervalDuration() (time.Duration, error) {
	return time.ParseDuration(p.RetryInterval)
}

// Default returns the configuration written by "pacegate init": a single
// conservative policy with metrics disabled.
func Default() *Config {
	cfg := &Config{
		Policies: []PolicyConfig{
			{
				Name:              "default",
				RequestsPerWindow: 10,
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}
