package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Resolver.LookbackDays)
	assert.Equal(t, 3, cfg.Resolver.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Resolver.RetryBackoff)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Contains(t, cfg.PTAX.BaseURL, "olinda.bcb.gov.br")
	assert.False(t, cfg.TracingEnabled)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlConfig := `
ptax:
  timeout: 5s
  requests_per_second: 2
resolver:
  lookback_days: 7
  max_attempts: 2
  retry_backoff: 250ms
log_level: debug
gemini:
  model: gemini-2.5-pro
`
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0644))

	t.Setenv("RESOLVER_MAX_ATTEMPTS", "4")
	t.Setenv("PORT", "9090")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PTAX.Timeout)
	assert.Equal(t, 2.0, cfg.PTAX.RequestsPerSecond)
	assert.Equal(t, 7, cfg.Resolver.LookbackDays)
	assert.Equal(t, 250*time.Millisecond, cfg.Resolver.RetryBackoff)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)

	// environment wins over the file
	assert.Equal(t, 4, cfg.Resolver.MaxAttempts)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, "secret", cfg.Gemini.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Malformed env value", func(t *testing.T) {
		t.Setenv("RESOLVER_LOOKBACK_DAYS", "ten")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RESOLVER_LOOKBACK_DAYS")
	})

	t.Run("Out of range", func(t *testing.T) {
		t.Setenv("RESOLVER_LOOKBACK_DAYS", "45")
		t.Setenv("RESOLVER_MAX_ATTEMPTS", "0")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookback_days")
		assert.Contains(t, err.Error(), "max_attempts")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(*Config) {}, false},
		{"Lookback lower bound", func(c *Config) { c.Resolver.LookbackDays = 1 }, false},
		{"Lookback upper bound", func(c *Config) { c.Resolver.LookbackDays = 31 }, false},
		{"Lookback zero", func(c *Config) { c.Resolver.LookbackDays = 0 }, true},
		{"Attempts above cap", func(c *Config) { c.Resolver.MaxAttempts = 5 }, true},
		{"Negative backoff", func(c *Config) { c.Resolver.RetryBackoff = -time.Second }, true},
		{"Zero timeout", func(c *Config) { c.PTAX.Timeout = 0 }, true},
		{"Zero burst", func(c *Config) { c.PTAX.Burst = 0 }, true},
		{"Unknown log level", func(c *Config) { c.LogLevel = "verbose" }, true},
		{"Upper case log level", func(c *Config) { c.LogLevel = "WARN" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
