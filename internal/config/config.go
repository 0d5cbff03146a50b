// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Cache         CacheConfig         `yaml:"cache"`
	Wizard        WizardConfig        `yaml:"wizard"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// UpstreamConfig describes the remote collection API.
type UpstreamConfig struct {
	BaseURL          string               `yaml:"base_url"`
	Timeout          time.Duration        `yaml:"timeout"`
	TotalCountHeader string               `yaml:"total_count_header"`
	Retry            RetryConfig          `yaml:"retry"`
	CircuitBreaker   CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RetryConfig describes retry settings for upstream calls. Only idempotent
// requests are ever retried regardless of these values.
type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
}

// CircuitBreakerConfig describes circuit breaker settings for the upstream.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// DefinitionsConfig describes where to find resource definition YAML files.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
}

// CacheConfig describes the list response cache.
type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

// WizardConfig describes wizard session settings.
type WizardConfig struct {
	Store               WizardStoreConfig `yaml:"store"`
	SessionTTL          time.Duration     `yaml:"session_ttl"`
	ExpiryCheckInterval time.Duration     `yaml:"expiry_check_interval"`
}

// WizardStoreConfig describes wizard session persistence settings.
type WizardStoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// IdempotencyConfig describes idempotency store settings for create commands.
type IdempotencyConfig struct {
	Enabled bool                   `yaml:"enabled"`
	Store   IdempotencyStoreConfig `yaml:"store"`
}

// IdempotencyStoreConfig describes idempotency persistence settings.
type IdempotencyStoreConfig struct {
	Driver     string        `yaml:"driver"`
	AddrEnv    string        `yaml:"addr_env"`
	DB         int           `yaml:"db"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// EnrichmentConfig describes derived metrics generation.
type EnrichmentConfig struct {
	Enabled bool  `yaml:"enabled"`
	Seed    int64 `yaml:"seed"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled           bool    `yaml:"enabled"`
	Exporter          string  `yaml:"exporter"`
	Endpoint          string  `yaml:"endpoint"`
	SamplingRate      float64 `yaml:"sampling_rate"`
	ForceSampleErrors bool    `yaml:"force_sample_errors"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id",
					"X-Idempotency-Key"},
				MaxAge: 86400,
			},
		},
		Upstream: UpstreamConfig{
			Timeout:          10 * time.Second,
			TotalCountHeader: "X-Total-Count",
			Retry: RetryConfig{
				MaxAttempts:       3,
				BackoffInitial:    100 * time.Millisecond,
				BackoffMultiplier: 2.0,
				BackoffMax:        2 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:   5,
				SuccessThreshold:   2,
				Timeout:            30 * time.Second,
				ErrorRateThreshold: 0.5,
				ErrorRateWindow:    60 * time.Second,
			},
		},
		Definitions: DefinitionsConfig{
			Directories: []string{"/definitions"},
		},
		Cache: CacheConfig{
			TTL:        30 * time.Second,
			MaxEntries: 1000,
		},
		Wizard: WizardConfig{
			Store: WizardStoreConfig{
				Driver:          "memory",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			SessionTTL:          30 * time.Minute,
			ExpiryCheckInterval: 60 * time.Second,
		},
		Idempotency: IdempotencyConfig{
			Enabled: true,
			Store: IdempotencyStoreConfig{
				Driver:     "memory",
				DefaultTTL: 24 * time.Hour,
			},
		},
		Enrichment: EnrichmentConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url is required")
	}
	if c.Upstream.Retry.MaxAttempts < 1 {
		errs = append(errs, "upstream.retry.max_attempts must be at least 1")
	}
	switch c.Wizard.Store.Driver {
	case "memory", "postgres":
	default:
		errs = append(errs, "wizard.store.driver must be memory or postgres")
	}
	switch c.Idempotency.Store.Driver {
	case "memory", "redis":
	default:
		errs = append(errs, "idempotency.store.driver must be memory or redis")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads MERCURA_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MERCURA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MERCURA_UPSTREAM_BASE_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("MERCURA_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("MERCURA_WIZARD_STORE_DRIVER"); v != "" {
		cfg.Wizard.Store.Driver = v
	}
	if v := os.Getenv("MERCURA_IDEMPOTENCY_STORE_DRIVER"); v != "" {
		cfg.Idempotency.Store.Driver = v
	}
	if v := os.Getenv("MERCURA_ENRICHMENT_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Enrichment.Seed = seed
		}
	}
}
