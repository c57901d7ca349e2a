// Package http provides the HTTP boundary of the preview service: health
// endpoints, metrics collection and the middleware chain shared by every
// route. The preview endpoint itself lives in the preview subpackage.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthResponse represents the JSON response for health check endpoints.
type HealthResponse struct {
	Status    string                 `json:"status"`    // "healthy", "degraded" or "unhealthy"
	Timestamp string                 `json:"timestamp"` // ISO 8601 format
	Checks    map[string]CheckStatus `json:"checks"`    // Status of each check item
	Version   string                 `json:"version"`   // Application version
}

// CheckStatus represents the status of a single health check.
type CheckStatus struct {
	Status  string         `json:"status"`            // "healthy", "degraded" or "unhealthy"
	Message string         `json:"message,omitempty"` // Optional status message
	Details map[string]any `json:"details,omitempty"` // Optional additional details
}

// BreakerStats reports the per-host circuit breakers.
type BreakerStats interface {
	Len() int
	OpenCount() int
}

// RateLimiterStats reports the per-client rate limiter.
type RateLimiterStats interface {
	TrackedClients() int
}

// HealthHandler handles health check endpoint requests.
// The service has no backing store, so health is the state of the process:
// whether it is draining, and how its upstream breakers and rate limiter look.
type HealthHandler struct {
	Version string

	// Draining is set once graceful shutdown begins (optional).
	Draining *atomic.Bool

	// Breakers and RateLimiter are optional; nil components are omitted.
	Breakers    BreakerStats
	RateLimiter RateLimiterStats
}

// ServeHTTP returns the application health status.
// Returns 200 OK while serving (open breakers only mark the check degraded,
// since they isolate single upstream hosts), or 503 Service Unavailable
// once the server is draining.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]CheckStatus)
	status := "healthy"
	statusCode := http.StatusOK

	server := CheckStatus{Status: "healthy"}
	if h.Draining != nil && h.Draining.Load() {
		server = CheckStatus{Status: "unhealthy", Message: "shutting down"}
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}
	checks["server"] = server

	// 上流ホストごとのサーキットブレーカー
	if h.Breakers != nil {
		check := h.checkBreakers()
		checks["upstream_breakers"] = check
		if check.Status == "degraded" && status == "healthy" {
			status = "degraded"
		}
	}

	if h.RateLimiter != nil {
		checks["rate_limiter"] = CheckStatus{
			Status:  "healthy",
			Details: map[string]any{"tracked_clients": h.RateLimiter.TrackedClients()},
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("health: failed to encode response", slog.Any("error", err))
	}
}

// checkBreakers reports how many upstream hosts are currently short-circuited.
func (h *HealthHandler) checkBreakers() CheckStatus {
	tracked := h.Breakers.Len()
	open := h.Breakers.OpenCount()
	details := map[string]any{
		"tracked_hosts": tracked,
		"open":          open,
	}
	if open > 0 {
		return CheckStatus{
			Status:  "degraded",
			Message: "some upstream hosts are failing fast",
			Details: details,
		}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

// ReadyHandler handles Kubernetes readiness check requests.
// The service is ready as soon as it listens and stops being ready when
// graceful shutdown begins, so the load balancer drains it first.
type ReadyHandler struct {
	Draining *atomic.Bool
}

// ServeHTTP returns 200 OK if ready, or 503 Service Unavailable while draining.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Draining != nil && h.Draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		slog.Error("ready: failed to write response", slog.Any("error", err))
	}
}

// LiveHandler handles Kubernetes liveness check requests.
// It performs a lightweight check to verify the application is responsive.
type LiveHandler struct{}

// ServeHTTP performs a simple liveness check and always returns 200 OK
// if the application is running and able to respond.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		slog.Error("alive: failed to write response", slog.Any("error", err))
	}
}
