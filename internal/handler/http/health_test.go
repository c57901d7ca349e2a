package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBreakers struct{ tracked, open int }

func (f fakeBreakers) Len() int       { return f.tracked }
func (f fakeBreakers) OpenCount() int { return f.open }

type fakeLimiter struct{ clients int }

func (f fakeLimiter) TrackedClients() int { return f.clients }

func draining(v bool) *atomic.Bool {
	b := &atomic.Bool{}
	b.Store(v)
	return b
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return response
}

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		handler        *HealthHandler
		expectedStatus int
		expectedState  string
		expectChecks   []string
	}{
		{
			name:           "minimal handler",
			handler:        &HealthHandler{Version: "test-version"},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
			expectChecks:   []string{"server"},
		},
		{
			name: "all components healthy",
			handler: &HealthHandler{
				Version:     "test-version",
				Draining:    draining(false),
				Breakers:    fakeBreakers{tracked: 4},
				RateLimiter: fakeLimiter{clients: 12},
			},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
			expectChecks:   []string{"server", "upstream_breakers", "rate_limiter"},
		},
		{
			name: "open breaker is degraded but still serving",
			handler: &HealthHandler{
				Version:  "test-version",
				Breakers: fakeBreakers{tracked: 4, open: 1},
			},
			expectedStatus: http.StatusOK,
			expectedState:  "degraded",
			expectChecks:   []string{"server", "upstream_breakers"},
		},
		{
			name: "draining is unhealthy",
			handler: &HealthHandler{
				Version:  "test-version",
				Draining: draining(true),
				Breakers: fakeBreakers{tracked: 4, open: 1},
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "unhealthy",
			expectChecks:   []string{"server", "upstream_breakers"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)

			response := decodeHealth(t, rec)
			assert.Equal(t, tt.expectedState, response.Status)
			assert.Equal(t, "test-version", response.Version)
			assert.NotEmpty(t, response.Timestamp)
			assert.Len(t, response.Checks, len(tt.expectChecks))
			for _, name := range tt.expectChecks {
				assert.Contains(t, response.Checks, name)
			}
		})
	}
}

func TestHealthHandler_ComponentDetails(t *testing.T) {
	handler := &HealthHandler{
		Version:     "v1",
		Breakers:    fakeBreakers{tracked: 9, open: 2},
		RateLimiter: fakeLimiter{clients: 31},
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	response := decodeHealth(t, rec)

	breakers := response.Checks["upstream_breakers"]
	assert.Equal(t, "degraded", breakers.Status)
	assert.NotEmpty(t, breakers.Message)
	// JSON numbers decode as float64
	assert.Equal(t, float64(9), breakers.Details["tracked_hosts"])
	assert.Equal(t, float64(2), breakers.Details["open"])

	limiter := response.Checks["rate_limiter"]
	assert.Equal(t, "healthy", limiter.Status)
	assert.Equal(t, float64(31), limiter.Details["tracked_clients"])
}

func TestHealthHandler_CacheControl(t *testing.T) {
	handler := &HealthHandler{Version: "test-version"}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReadyHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		draining       *atomic.Bool
		expectedStatus int
		expectedBody   string
	}{
		{name: "no drain flag", expectedStatus: http.StatusOK, expectedBody: "ready"},
		{name: "serving", draining: draining(false), expectedStatus: http.StatusOK, expectedBody: "ready"},
		{name: "draining", draining: draining(true), expectedStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &ReadyHandler{Draining: tt.draining}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedBody != "" {
				assert.Equal(t, tt.expectedBody, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), "shutting down")
			}
		})
	}
}

func TestReadyHandler_FlipsWhenDrainStarts(t *testing.T) {
	flag := draining(false)
	handler := &ReadyHandler{Draining: flag}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	flag.Store(true)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler_ServeHTTP(t *testing.T) {
	handler := &LiveHandler{}

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}
