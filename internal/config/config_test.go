package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"centscape-preview/internal/resilience/circuitbreaker"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		FileEnv, "PORT", "REQUEST_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
		"PREVIEW_ALLOW_RAW_HTML", "PREVIEW_RETRY_MAX_ATTEMPTS", "PREVIEW_MAX_CONCURRENT_FETCHES",
		"PREVIEW_FETCH_TIMEOUT", "PREVIEW_FETCH_MAX_BODY_SIZE", "PREVIEW_FETCH_MAX_REDIRECTS",
		"PREVIEW_FETCH_DENY_PRIVATE_IPS", "PREVIEW_FETCH_RESOLVE_HOSTNAMES", "PREVIEW_FETCH_USER_AGENT",
		"RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "RATE_LIMIT_TRUST_PROXY",
		"RATE_LIMIT_TRUSTED_PROXIES", "RATE_LIMIT_CLEANUP_SCHEDULE", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, ":4000", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.False(t, cfg.Preview.AllowRawHTML)
	assert.Equal(t, 2, cfg.Preview.RetryMaxAttempts)
	assert.Equal(t, 64, cfg.Preview.MaxConcurrentFetches)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, int64(524288), cfg.Fetch.MaxBodySize)
	assert.Equal(t, 3, cfg.Fetch.MaxRedirects)
	assert.True(t, cfg.Fetch.DenyPrivateIPs)
	assert.True(t, cfg.Fetch.ResolveHostnames)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "@every 5m", cfg.RateLimit.CleanupSchedule)
	assert.Equal(t, "info", cfg.Log.Level)

	origins, err := cfg.CORS.Origins()
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, origins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("REQUEST_TIMEOUT", "10s")
	t.Setenv("PREVIEW_ALLOW_RAW_HTML", "true")
	t.Setenv("PREVIEW_FETCH_TIMEOUT", "2s")
	t.Setenv("PREVIEW_FETCH_MAX_REDIRECTS", "1")
	t.Setenv("RATE_LIMIT_REQUESTS", "100")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")
	t.Setenv("RATE_LIMIT_TRUST_PROXY", "true")
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.centscape.com,https://admin.centscape.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Preview.AllowRawHTML)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 1, cfg.Fetch.MaxRedirects)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.RateLimit.TrustProxy)
	assert.Equal(t, "debug", cfg.Log.Level)

	prefixes, err := cfg.RateLimit.ProxyPrefixes()
	require.NoError(t, err)
	require.Len(t, prefixes, 2)
	assert.Equal(t, "10.0.0.0/8", prefixes[0].String())
	assert.Equal(t, "192.168.1.1/32", prefixes[1].String())

	origins, err := cfg.CORS.Origins()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.centscape.com", "https://admin.centscape.com"}, origins)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeFile(t, `
server:
  port: 9000
  request_timeout: 15s
fetch:
  timeout: 3s
  max_redirects: 2
preview:
  allow_raw_html: true
rate_limit:
  requests: 20
  window: 30s
cors:
  allowed_origins:
    - https://app.centscape.com
`))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 3*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2, cfg.Fetch.MaxRedirects)
	assert.Equal(t, int64(524288), cfg.Fetch.MaxBodySize, "keys absent from the file keep defaults")
	assert.True(t, cfg.Preview.AllowRawHTML)
	assert.Equal(t, 20, cfg.RateLimit.Requests)
	assert.Equal(t, []string{"https://app.centscape.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, writeFile(t, "server:\n  port: 9000\n"))
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoad_FileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.yaml"))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(FileEnv, writeFile(t, "server: [unclosed"))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestLoad_MalformedEnv(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PORT", "http"},
		{"REQUEST_TIMEOUT", "30"},
		{"PREVIEW_ALLOW_RAW_HTML", "sometimes"},
		{"RATE_LIMIT_WINDOW", "a minute"},
		{"PREVIEW_FETCH_TIMEOUT", "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		section string
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server"},
		{"request timeout too short", func(c *Config) { c.Server.RequestTimeout = time.Millisecond }, "server"},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, "log"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log"},
		{"sample ratio", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, "tracing"},
		{"fetch timeout", func(c *Config) { c.Fetch.Timeout = time.Hour }, "fetch"},
		{"retry attempts", func(c *Config) { c.Preview.RetryMaxAttempts = 0 }, "preview"},
		{"concurrency", func(c *Config) { c.Preview.MaxConcurrentFetches = 0 }, "preview"},
		{"breaker threshold", func(c *Config) { c.Breaker.FailureThreshold = 0 }, "breaker"},
		{"rate limit requests", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit"},
		{"bad proxy", func(c *Config) { c.RateLimit.TrustedProxies = []string{"not-an-ip"} }, "rate_limit"},
		{"trust proxy without list", func(c *Config) { c.RateLimit.TrustProxy = true }, "rate_limit"},
		{"bad schedule", func(c *Config) { c.RateLimit.CleanupSchedule = "every now and then" }, "rate_limit"},
		{"origin with path", func(c *Config) { c.CORS.AllowedOrigins = []string{"https://a.example.com/app"} }, "cors"},
		{"wildcard mixed", func(c *Config) { c.CORS.AllowedOrigins = []string{"*", "https://a.example.com"} }, "cors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			before := testutil.ToFloat64(validationErrorsTotal.WithLabelValues(tt.section))
			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.section+":")
			assert.Equal(t, before+1, testutil.ToFloat64(validationErrorsTotal.WithLabelValues(tt.section)))
		})
	}
}

func TestValidate_ReportsAllSections(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.RateLimit.Requests = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server:")
	assert.Contains(t, err.Error(), "rate_limit:")
}

func TestBreakerConfig_Apply(t *testing.T) {
	b := Default().Breaker
	b.Cooldown = 10 * time.Second
	b.FailureThreshold = 0.5
	b.MinRequests = 3

	got := b.Apply(circuitbreaker.HostFetchConfig("shop.example.com"))

	assert.Equal(t, "fetch:shop.example.com", got.Name)
	assert.Equal(t, 10*time.Second, got.Timeout)
	assert.InDelta(t, 0.5, got.FailureThreshold, 1e-9)
	assert.Equal(t, uint32(3), got.MinRequests)
}
