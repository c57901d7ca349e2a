package fetcher

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default request headers sent on every hop.
const (
	DefaultUserAgent = "CentscapeBot/1.0 (+https://centscape.com)"
	DefaultAccept    = "text/html,application/xhtml+xml"
)

// Config holds the configuration for page fetching.
// It is passed into NewBoundedFetcher and never mutated afterwards.
//
// Security settings:
//   - DenyPrivateIPs: Prevents SSRF attacks by blocking private destinations
//   - ResolveHostnames: Validates every resolved address, not only the host string
//   - MaxBodySize: Prevents memory exhaustion from oversized responses
//   - MaxRedirects: Prevents unbounded redirect chains
//   - Timeout: Prevents resource starvation from slow servers
type Config struct {
	// Timeout bounds the network activity of a single hop
	// (connect + headers + body). It resets on every redirect.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// It is enforced while streaming the body, not only from Content-Length.
	// Default: 524288 (512KiB)
	MaxBodySize int64 `yaml:"max_body_size"`

	// MaxRedirects is the number of redirects that may be followed.
	// At most MaxRedirects+1 requests are issued per fetch.
	// Default: 3
	MaxRedirects int `yaml:"max_redirects"`

	// DenyPrivateIPs controls whether private, loopback and link-local
	// destinations are rejected. Should always be true in production.
	// Default: true
	DenyPrivateIPs bool `yaml:"deny_private_ips"`

	// ResolveHostnames makes the guard resolve symbolic hostnames and check
	// every returned address. Without it a public name pointing at a private
	// address is only caught at dial time.
	// Default: true
	ResolveHostnames bool `yaml:"resolve_hostnames"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"user_agent"`

	// Accept is sent on every request.
	Accept string `yaml:"accept"`
}

// DefaultConfig returns the default configuration for page fetching.
//
// Example:
//
//	config := DefaultConfig()
//	config.Timeout = 3 * time.Second
//	f := NewBoundedFetcher(config, nil)
func DefaultConfig() Config {
	return Config{
		Timeout:          5 * time.Second,
		MaxBodySize:      512 * 1024, // 512KiB
		MaxRedirects:     3,
		DenyPrivateIPs:   true,
		ResolveHostnames: true,
		UserAgent:        DefaultUserAgent,
		Accept:           DefaultAccept,
	}
}

// Validate checks if the configuration values are valid and safe.
//
// Validation rules:
//   - Timeout: 100ms-60s
//   - MaxBodySize: 1KB-50MB
//   - MaxRedirects: 0-10
//   - UserAgent: non-empty
func (c *Config) Validate() error {
	if c.Timeout < 100*time.Millisecond || c.Timeout > 60*time.Second {
		return fmt.Errorf("timeout must be between 100ms and 60s, got %v", c.Timeout)
	}

	minBodySize := int64(1024)             // 1KB
	maxBodySize := int64(50 * 1024 * 1024) // 50MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize)
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent must not be empty")
	}

	return nil
}

// ApplyEnv overrides fields of cfg from environment variables and validates
// the result.
//
// Environment variables:
//   - PREVIEW_FETCH_TIMEOUT: duration string, e.g., "5s"
//   - PREVIEW_FETCH_MAX_BODY_SIZE: integer in bytes
//   - PREVIEW_FETCH_MAX_REDIRECTS: integer
//   - PREVIEW_FETCH_DENY_PRIVATE_IPS: "true" or "false"
//   - PREVIEW_FETCH_RESOLVE_HOSTNAMES: "true" or "false"
//   - PREVIEW_FETCH_USER_AGENT: string
//
// Unlike the general env helpers, a malformed value is an error here: a typo
// in a security limit should stop startup, not silently fall back.
func ApplyEnv(cfg Config) (Config, error) {
	if val := os.Getenv("PREVIEW_FETCH_TIMEOUT"); val != "" {
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid PREVIEW_FETCH_TIMEOUT: %v (expected format: '5s', '1m')", err)
		}
		cfg.Timeout = parsed
	}

	if val := os.Getenv("PREVIEW_FETCH_MAX_BODY_SIZE"); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid PREVIEW_FETCH_MAX_BODY_SIZE: %v", err)
		}
		cfg.MaxBodySize = parsed
	}

	if val := os.Getenv("PREVIEW_FETCH_MAX_REDIRECTS"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return cfg, fmt.Errorf("invalid PREVIEW_FETCH_MAX_REDIRECTS: %v", err)
		}
		cfg.MaxRedirects = parsed
	}

	if val := os.Getenv("PREVIEW_FETCH_DENY_PRIVATE_IPS"); val != "" {
		cfg.DenyPrivateIPs = val == "true"
	}

	if val := os.Getenv("PREVIEW_FETCH_RESOLVE_HOSTNAMES"); val != "" {
		cfg.ResolveHostnames = val == "true"
	}

	if val := os.Getenv("PREVIEW_FETCH_USER_AGENT"); val != "" {
		cfg.UserAgent = val
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables on top of
// DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	return ApplyEnv(DefaultConfig())
}
