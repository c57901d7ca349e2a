package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Preview metrics track the fetch → extract pipeline behind POST /preview.
var (
	// PreviewRequestsTotal counts preview operations by outcome.
	// result is "success" or a fetch error kind (e.g. "guard_blocked", "timeout").
	PreviewRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_requests_total",
			Help: "Total number of preview operations by result",
		},
		[]string{"result", "source"}, // source: fetched, raw_html
	)

	// PreviewFetchDuration measures time to fetch an upstream page,
	// including redirects and retries.
	PreviewFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "preview_fetch_duration_seconds",
			Help:    "Time taken to fetch an upstream page",
			Buckets: []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
		[]string{"result"},
	)

	// PreviewFetchSize measures decoded page size in bytes.
	PreviewFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "preview_fetch_size_bytes",
			Help: "Fetched page size in bytes",
			Buckets: []float64{
				1024, 4096, 16384, 65536, 131072, 262144, 524288, // up to 512KB
			},
		},
	)

	// PreviewExtractionsTotal counts which cascade tier produced each preview.
	PreviewExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_extractions_total",
			Help: "Total number of extractions by winning strategy",
		},
		[]string{"strategy"},
	)

	// PreviewFieldsPresentTotal counts how often each optional field is filled.
	PreviewFieldsPresentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preview_fields_present_total",
			Help: "Total number of previews carrying each optional field",
		},
		[]string{"field"},
	)

	// PreviewFetchRetriesTotal counts retried upstream fetches.
	PreviewFetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_fetch_retries_total",
			Help: "Total number of retried upstream fetches",
		},
	)

	// UpstreamCircuitOpenTotal counts requests refused by an open per-host breaker.
	UpstreamCircuitOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "preview_upstream_circuit_open_total",
			Help: "Total number of fetches refused because the host breaker was open",
		},
	)
)

// Rate limiting metrics
var (
	// RateLimitRejectionsTotal counts requests rejected with 429.
	RateLimitRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ratelimit_rejections_total",
			Help: "Total number of requests rejected by the per-IP rate limiter",
		},
	)

	// RateLimitTrackedClients tracks how many client IPs hold a limiter.
	RateLimitTrackedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ratelimit_tracked_clients",
			Help: "Number of client IPs currently tracked by the rate limiter",
		},
	)
)
