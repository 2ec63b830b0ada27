// Package config loads runtime settings from defaults, an optional YAML file
// and the environment, in that order
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/damon-houk/ptax-enricher/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime setting
type Config struct {
	PTAX struct {
		BaseURL           string        `yaml:"base_url"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
	} `yaml:"ptax"`

	Resolver struct {
		LookbackDays int           `yaml:"lookback_days"`
		MaxAttempts  int           `yaml:"max_attempts"`
		RetryBackoff time.Duration `yaml:"retry_backoff"`
	} `yaml:"resolver"`

	Server struct {
		Port              string  `yaml:"port"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"server"`

	DatabasePath   string `yaml:"database_path"`
	LogLevel       string `yaml:"log_level"`
	TracingEnabled bool   `yaml:"tracing_enabled"`

	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
}

// Default returns the settings used when nothing else is configured
func Default() *Config {
	cfg := &Config{}
	cfg.PTAX.BaseURL = "https://olinda.bcb.gov.br/olinda/service/PTAX/versao/v1/odata"
	cfg.PTAX.Timeout = 30 * time.Second
	cfg.PTAX.RequestsPerSecond = 5
	cfg.PTAX.Burst = 5
	cfg.Resolver.LookbackDays = 10
	cfg.Resolver.MaxAttempts = 3
	cfg.Resolver.RetryBackoff = time.Second
	cfg.Server.Port = "8080"
	cfg.Server.RequestsPerSecond = 20
	cfg.Server.Burst = 40
	cfg.DatabasePath = "./data"
	cfg.LogLevel = "info"
	cfg.Gemini.Model = "gemini-2.5-flash"
	return cfg
}

// Load reads .env (if present), then the YAML file at path (if non-empty),
// then environment overrides, and validates the result
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	setString(&c.PTAX.BaseURL, "PTAX_BASE_URL")
	errs = append(errs,
		setDuration(&c.PTAX.Timeout, "PTAX_TIMEOUT"),
		setFloat(&c.PTAX.RequestsPerSecond, "PTAX_RPS"),
		setInt(&c.PTAX.Burst, "PTAX_BURST"),
		setInt(&c.Resolver.LookbackDays, "RESOLVER_LOOKBACK_DAYS"),
		setInt(&c.Resolver.MaxAttempts, "RESOLVER_MAX_ATTEMPTS"),
		setDuration(&c.Resolver.RetryBackoff, "RESOLVER_RETRY_BACKOFF"),
		setFloat(&c.Server.RequestsPerSecond, "HTTP_RPS"),
		setInt(&c.Server.Burst, "HTTP_BURST"),
		setBool(&c.TracingEnabled, "TRACING_ENABLED"),
	)
	setString(&c.Server.Port, "PORT")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")

	return errors.Join(errs...)
}

// Validate checks ranges of the numeric settings and the log level
func (c *Config) Validate() error {
	var errs []error

	if c.PTAX.BaseURL == "" {
		errs = append(errs, errors.New("ptax.base_url is required"))
	}
	if c.PTAX.Timeout <= 0 {
		errs = append(errs, errors.New("ptax.timeout must be positive"))
	}
	if c.PTAX.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("ptax.requests_per_second must be positive"))
	}
	if c.PTAX.Burst < 1 {
		errs = append(errs, errors.New("ptax.burst must be at least 1"))
	}
	if c.Resolver.LookbackDays < 1 || c.Resolver.LookbackDays > 31 {
		errs = append(errs, fmt.Errorf("resolver.lookback_days must be between 1 and 31, got %d", c.Resolver.LookbackDays))
	}
	if c.Resolver.MaxAttempts < 1 || c.Resolver.MaxAttempts > 4 {
		errs = append(errs, fmt.Errorf("resolver.max_attempts must be between 1 and 4, got %d", c.Resolver.MaxAttempts))
	}
	if c.Resolver.RetryBackoff < 0 {
		errs = append(errs, errors.New("resolver.retry_backoff must not be negative"))
	}
	if c.Server.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("server.requests_per_second must not be negative"))
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %q is not a number", key, v)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a duration", key, v)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}
