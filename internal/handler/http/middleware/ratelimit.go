package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"centscape-preview/internal/handler/http/respond"
	"centscape-preview/internal/observability/metrics"

	"golang.org/x/time/rate"
)

var errTooManyRequests = errors.New("too many requests")

// maxRetryAfter caps the advertised Retry-After.
const maxRetryAfter = time.Hour

// RateLimiter is a per-client token bucket limiter for HTTP requests.
//
// Each client IP gets a bucket holding up to requests tokens that refills at
// requests per window. A request takes one token; an empty bucket means
// 429 Too Many Requests with a Retry-After header telling the client when
// the next token arrives.
//
// Buckets are created on first use. CleanupExpired drops buckets that have
// refilled completely, since those are indistinguishable from a new client.
type RateLimiter struct {
	limit       rate.Limit
	burst       int
	ipExtractor IPExtractor

	mu      sync.Mutex
	clients map[string]*rate.Limiter

	// now is replaceable in tests.
	now func() time.Time
}

// NewRateLimiter creates a RateLimiter allowing requests per window for each
// client, with a burst equal to requests.
//
// Example:
//
//	// 10 requests per minute per IP, RemoteAddr only
//	limiter := NewRateLimiter(10, time.Minute, &RemoteAddrExtractor{})
func NewRateLimiter(requests int, window time.Duration, ipExtractor IPExtractor) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if ipExtractor == nil {
		ipExtractor = &RemoteAddrExtractor{}
	}
	return &RateLimiter{
		limit:       rate.Every(window / time.Duration(requests)),
		burst:       requests,
		ipExtractor: ipExtractor,
		clients:     make(map[string]*rate.Limiter),
		now:         time.Now,
	}
}

// Middleware returns an HTTP middleware handler that enforces rate limiting.
//
// Behavior:
//   - Within the limit: the request proceeds to the next handler
//   - Over the limit: 429 with Retry-After (whole seconds, at least 1)
//   - IP extraction failure: falls back to RemoteAddr, then rejects with 500
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, err := rl.ipExtractor.ExtractIP(r)
		if err != nil {
			slog.Warn("rate limiter: IP extraction failed, using RemoteAddr fallback",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr),
			)
			ip, err = extractIPFromAddr(r.RemoteAddr)
			if err != nil {
				slog.Error("rate limiter: RemoteAddr extraction failed",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				respond.SafeError(w, http.StatusInternalServerError, err)
				return
			}
		}

		retryAfter, ok := rl.allow(ip)
		if !ok {
			metrics.RecordRateLimitRejection()
			slog.Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
				slog.Duration("retry_after", retryAfter),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
			respond.Error(w, http.StatusTooManyRequests, errTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow takes one token from ip's bucket. When the bucket is empty it returns
// false and how long until the next token.
func (rl *RateLimiter) allow(ip string) (time.Duration, bool) {
	now := rl.now()

	// The reservation happens under rl.mu so CleanupExpired never drops a
	// bucket between lookup and withdrawal.
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.clients[ip]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.clients[ip] = lim
	}

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return rate.InfDuration, false
	}
	if delay := res.DelayFrom(now); delay > 0 {
		// 予約は取り消してトークンを返す
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// CleanupExpired removes buckets that have refilled to capacity and returns
// how many were removed. Scheduled periodically to bound memory.
func (rl *RateLimiter) CleanupExpired() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, lim := range rl.clients {
		if lim.TokensAt(now) >= float64(rl.burst) {
			delete(rl.clients, ip)
			removed++
		}
	}

	metrics.UpdateRateLimitTrackedClients(len(rl.clients))
	slog.Debug("rate limiter: cleanup completed",
		slog.Int("removed", removed),
		slog.Int("active_ips", len(rl.clients)),
	)
	return removed
}

// TrackedClients returns the number of client buckets currently held.
func (rl *RateLimiter) TrackedClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// retryAfterSeconds rounds d up to whole seconds, minimum 1. Sub-millisecond
// float noise from the token math is dropped first.
func retryAfterSeconds(d time.Duration) int {
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	d = d.Round(time.Millisecond)
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
