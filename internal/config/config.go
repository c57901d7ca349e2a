// Package config loads the runtime configuration of the preview service.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// PREVIEW_CONFIG_FILE, then environment variables. The result is validated
// once; any invalid section stops startup.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	handlerhttp "centscape-preview/internal/handler/http"
	"centscape-preview/internal/handler/http/middleware"
	"centscape-preview/internal/infra/fetcher"
	"centscape-preview/internal/resilience/circuitbreaker"
	pkgconfig "centscape-preview/pkg/config"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding the optional YAML file path.
const FileEnv = "PREVIEW_CONFIG_FILE"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Fetch     fetcher.Config  `yaml:"fetch"`
	Preview   PreviewConfig   `yaml:"preview"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig configures the OpenTelemetry tracer provider.
type TracingConfig struct {
	SampleRatio float64 `yaml:"sample_ratio"`
}

// PreviewConfig configures the preview use case.
type PreviewConfig struct {
	AllowRawHTML         bool `yaml:"allow_raw_html"`
	RetryMaxAttempts     int  `yaml:"retry_max_attempts"`
	MaxConcurrentFetches int  `yaml:"max_concurrent_fetches"`
}

// BreakerConfig tunes the per-host circuit breakers.
type BreakerConfig struct {
	MaxHosts         int           `yaml:"max_hosts"`
	Cooldown         time.Duration `yaml:"cooldown"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// Apply overlays the tunables onto a breaker configuration.
func (c BreakerConfig) Apply(cfg circuitbreaker.Config) circuitbreaker.Config {
	cfg.Timeout = c.Cooldown
	cfg.FailureThreshold = c.FailureThreshold
	cfg.MinRequests = c.MinRequests
	return cfg
}

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	Requests        int           `yaml:"requests"`
	Window          time.Duration `yaml:"window"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
	CleanupSchedule string        `yaml:"cleanup_schedule"`
}

// ProxyPrefixes parses TrustedProxies.
func (c RateLimitConfig) ProxyPrefixes() ([]netip.Prefix, error) {
	return middleware.ParseTrustedProxies(strings.Join(c.TrustedProxies, ","))
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Origins parses AllowedOrigins. An empty list allows any origin.
func (c CORSConfig) Origins() ([]string, error) {
	return middleware.ParseOrigins(strings.Join(c.AllowedOrigins, ","))
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            4000,
			RequestTimeout:  30 * time.Second,
			MaxBodyBytes:    1 << 20, // 1MiB
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
		},
		Fetch: fetcher.DefaultConfig(),
		Preview: PreviewConfig{
			AllowRawHTML:         false,
			RetryMaxAttempts:     2,
			MaxConcurrentFetches: 64,
		},
		Breaker: BreakerConfig{
			MaxHosts:         circuitbreaker.DefaultRegistrySize,
			Cooldown:         30 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
		RateLimit: RateLimitConfig{
			Requests:        10,
			Window:          time.Minute,
			CleanupSchedule: handlerhttp.DefaultCleanupSchedule,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{middleware.AnyOrigin},
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    logger.Error("invalid configuration", slog.Any("error", err))
//	    os.Exit(1)
//	}
func Load() (Config, error) {
	cfg := Default()

	if path, ok := pkgconfig.LookupString(FileEnv); ok {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	recordLoad()
	return cfg, nil
}

// loadFile overlays the YAML document at path. Keys absent from the file keep
// their current values.
func (c *Config) loadFile(path string) error {
	// #nosec G304 -- path comes from the operator's environment, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment variables.
func (c *Config) applyEnv() error {
	fetchCfg, err := fetcher.ApplyEnv(c.Fetch)
	if err != nil {
		return err
	}
	c.Fetch = fetchCfg

	pkgconfig.StringVar("LOG_LEVEL", &c.Log.Level)
	pkgconfig.StringVar("LOG_FORMAT", &c.Log.Format)
	pkgconfig.StringVar("RATE_LIMIT_CLEANUP_SCHEDULE", &c.RateLimit.CleanupSchedule)
	pkgconfig.StringListVar("RATE_LIMIT_TRUSTED_PROXIES", &c.RateLimit.TrustedProxies)
	pkgconfig.StringListVar("CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)

	return errors.Join(
		pkgconfig.IntVar("PORT", &c.Server.Port),
		pkgconfig.DurationVar("REQUEST_TIMEOUT", &c.Server.RequestTimeout),
		pkgconfig.BoolVar("PREVIEW_ALLOW_RAW_HTML", &c.Preview.AllowRawHTML),
		pkgconfig.IntVar("PREVIEW_RETRY_MAX_ATTEMPTS", &c.Preview.RetryMaxAttempts),
		pkgconfig.IntVar("PREVIEW_MAX_CONCURRENT_FETCHES", &c.Preview.MaxConcurrentFetches),
		pkgconfig.IntVar("RATE_LIMIT_REQUESTS", &c.RateLimit.Requests),
		pkgconfig.DurationVar("RATE_LIMIT_WINDOW", &c.RateLimit.Window),
		pkgconfig.BoolVar("RATE_LIMIT_TRUST_PROXY", &c.RateLimit.TrustProxy),
	)
}

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(section string, err error) {
		if err != nil {
			recordValidationError(section)
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	check("server", c.Server.validate())
	check("log", c.Log.validate())
	check("tracing", c.Tracing.validate())
	check("fetch", c.Fetch.Validate())
	check("preview", c.Preview.validate())
	check("breaker", c.Breaker.validate())
	check("rate_limit", c.RateLimit.validate())
	check("cors", c.CORS.validate())

	return errors.Join(errs...)
}

func (c ServerConfig) validate() error {
	if err := pkgconfig.ValidateIntRange(c.Port, 1, 65535); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	if err := pkgconfig.ValidateDurationRange(c.RequestTimeout, time.Second, 5*time.Minute); err != nil {
		return fmt.Errorf("request_timeout: %w", err)
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("max_body_bytes must be at least 1024, got %d", c.MaxBodyBytes)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown_timeout: %w", err)
	}
	return nil
}

func (c LogConfig) validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text, got %q", c.Format)
	}
	return nil
}

func (c TracingConfig) validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1, got %v", c.SampleRatio)
	}
	return nil
}

func (c PreviewConfig) validate() error {
	if err := pkgconfig.ValidateIntRange(c.RetryMaxAttempts, 1, 5); err != nil {
		return fmt.Errorf("retry_max_attempts: %w", err)
	}
	if err := pkgconfig.ValidateIntRange(c.MaxConcurrentFetches, 1, 10000); err != nil {
		return fmt.Errorf("max_concurrent_fetches: %w", err)
	}
	return nil
}

func (c BreakerConfig) validate() error {
	if c.MaxHosts < 1 {
		return fmt.Errorf("max_hosts must be positive, got %d", c.MaxHosts)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Cooldown); err != nil {
		return fmt.Errorf("cooldown: %w", err)
	}
	if c.FailureThreshold <= 0 || c.FailureThreshold > 1 {
		return fmt.Errorf("failure_threshold must be in (0, 1], got %v", c.FailureThreshold)
	}
	return nil
}

func (c RateLimitConfig) validate() error {
	if err := pkgconfig.ValidateIntRange(c.Requests, 1, 100000); err != nil {
		return fmt.Errorf("requests: %w", err)
	}
	if err := pkgconfig.ValidateDurationRange(c.Window, time.Second, 24*time.Hour); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if _, err := c.ProxyPrefixes(); err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}
	if c.TrustProxy && len(c.TrustedProxies) == 0 {
		return errors.New("trusted_proxies must not be empty when trust_proxy is enabled")
	}
	if err := handlerhttp.ValidateCleanupSchedule(c.CleanupSchedule); err != nil {
		return fmt.Errorf("cleanup_schedule: %w", err)
	}
	return nil
}

func (c CORSConfig) validate() error {
	_, err := c.Origins()
	return err
}
