package metrics

import (
	"time"
)

// Preview sources.
const (
	SourceFetched = "fetched"
	SourceRawHTML = "raw_html"
)

// RecordPreviewResult records the outcome of one preview operation.
// result should be "success" or the snake_case fetch error kind.
func RecordPreviewResult(result, source string) {
	PreviewRequestsTotal.WithLabelValues(result, source).Inc()
}

// RecordFetch records one upstream fetch.
//
// Example:
//
//	start := time.Now()
//	outcome, err := fetcher.Fetch(ctx, url)
//	if err == nil {
//	    RecordFetch("success", time.Since(start), len(outcome.HTML))
//	}
func RecordFetch(result string, duration time.Duration, size int) {
	PreviewFetchDuration.WithLabelValues(result).Observe(duration.Seconds())
	if size > 0 {
		PreviewFetchSize.Observe(float64(size))
	}
}

// RecordExtraction records the winning strategy and which optional fields
// the preview carries.
func RecordExtraction(strategy string, fields ...string) {
	PreviewExtractionsTotal.WithLabelValues(strategy).Inc()
	for _, f := range fields {
		PreviewFieldsPresentTotal.WithLabelValues(f).Inc()
	}
}

// RecordFetchRetry records one retried fetch attempt.
func RecordFetchRetry() {
	PreviewFetchRetriesTotal.Inc()
}

// RecordCircuitOpen records a fetch refused by an open breaker.
func RecordCircuitOpen() {
	UpstreamCircuitOpenTotal.Inc()
}

// RecordRateLimitRejection records a 429 response.
func RecordRateLimitRejection() {
	RateLimitRejectionsTotal.Inc()
}

// UpdateRateLimitTrackedClients updates the tracked client gauge.
func UpdateRateLimitTrackedClients(count int) {
	RateLimitTrackedClients.Set(float64(count))
}
