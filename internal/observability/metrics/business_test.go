package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPreviewResult(t *testing.T) {
	tests := []struct {
		name   string
		result string
		source string
	}{
		{name: "fetched success", result: "success", source: SourceFetched},
		{name: "raw html success", result: "success", source: SourceRawHTML},
		{name: "guard blocked", result: "guard_blocked", source: SourceFetched},
		{name: "timeout", result: "timeout", source: SourceFetched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := PreviewRequestsTotal.WithLabelValues(tt.result, tt.source)
			before := testutil.ToFloat64(counter)

			RecordPreviewResult(tt.result, tt.source)

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestRecordFetch(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		duration time.Duration
		size     int
	}{
		{name: "fast response", result: "success", duration: 100 * time.Millisecond, size: 2048},
		{name: "slow response", result: "success", duration: 4 * time.Second, size: 500000},
		{name: "failed fetch", result: "network", duration: 50 * time.Millisecond, size: 0},
		{name: "zero duration", result: "success", duration: 0, size: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFetch(tt.result, tt.duration, tt.size)
			})
		})
	}
}

func TestRecordExtraction(t *testing.T) {
	strategy := PreviewExtractionsTotal.WithLabelValues("opengraph")
	title := PreviewFieldsPresentTotal.WithLabelValues("title")
	price := PreviewFieldsPresentTotal.WithLabelValues("price")

	beforeStrategy := testutil.ToFloat64(strategy)
	beforeTitle := testutil.ToFloat64(title)
	beforePrice := testutil.ToFloat64(price)

	RecordExtraction("opengraph", "title", "price")
	RecordExtraction("opengraph", "title")

	assert.Equal(t, beforeStrategy+2, testutil.ToFloat64(strategy))
	assert.Equal(t, beforeTitle+2, testutil.ToFloat64(title))
	assert.Equal(t, beforePrice+1, testutil.ToFloat64(price))
}

func TestRecordCounters(t *testing.T) {
	retries := testutil.ToFloat64(PreviewFetchRetriesTotal)
	open := testutil.ToFloat64(UpstreamCircuitOpenTotal)
	rejections := testutil.ToFloat64(RateLimitRejectionsTotal)

	RecordFetchRetry()
	RecordCircuitOpen()
	RecordRateLimitRejection()
	RecordRateLimitRejection()

	assert.Equal(t, retries+1, testutil.ToFloat64(PreviewFetchRetriesTotal))
	assert.Equal(t, open+1, testutil.ToFloat64(UpstreamCircuitOpenTotal))
	assert.Equal(t, rejections+2, testutil.ToFloat64(RateLimitRejectionsTotal))
}

func TestUpdateRateLimitTrackedClients(t *testing.T) {
	UpdateRateLimitTrackedClients(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(RateLimitTrackedClients))

	UpdateRateLimitTrackedClients(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(RateLimitTrackedClients))
}
