package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// Viper state is global, so loader tests run serially and reset it.

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pacegate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := writeConfigFile(t, `
log_level: warn
metrics:
  enabled: true
  addr: "127.0.0.1:9200"
policies:
  - name: github
    requests_per_window: 30
    window: 1m
  - name: search
    requests_per_window: 5
`)

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9200" {
		t.Errorf("Metrics = %+v, want enabled on 127.0.0.1:9200", cfg.Metrics)
	}
	if len(cfg.Policies) != 2 {
		t.Fatalf("Policies = %d, want 2", len(cfg.Policies))
	}
	if cfg.Policies[0].Window != "1m" {
		t.Errorf("Policies[0].Window = %q, want %q", cfg.Policies[0].Window, "1m")
	}
	// Unset durations take defaults.
	if cfg.Policies[1].Window != DefaultWindow {
		t.Errorf("Policies[1].Window = %q, want default %q", cfg.Policies[1].Window, DefaultWindow)
	}
	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", ConfigFileUsed(), path)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := writeConfigFile(t, `
policies:
  - name: api
    requests_per_window: 10
`)
	t.Setenv("PACEGATE_LOG_LEVEL", "debug")

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want env override %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := writeConfigFile(t, `
policies:
  - name: api
    requests_per_window: 10
    window: nonsense
`)

	InitViper(path)
	_, err := LoadConfig()
	if err == nil {
		t.Fatal("LoadConfig() = nil error, want validation failure")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("error = %q, want validation failure", err)
	}
}
