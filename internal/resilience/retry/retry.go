// Package retry re-runs upstream page fetches that failed for reasons likely
// to clear on their own, waiting an exponentially growing, jittered delay
// between attempts.
package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Config controls how often and how patiently a fetch is retried.
type Config struct {
	// MaxAttempts counts the first try. Values below 1 mean a single try.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts, before jitter.
	MaxDelay time.Duration

	// Multiplier grows the wait after each retry. Values below 1 keep it flat.
	Multiplier float64

	// JitterFraction adds up to this fraction of the wait at random (0.0 to 1.0).
	JitterFraction float64
}

// PreviewFetchConfig returns configuration for upstream page fetches made
// while a client waits on the response. One quick retry at most.
func PreviewFetchConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// Delay returns the wait after the given failed attempt (1-based), without
// jitter.
func (c Config) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		if c.Multiplier > 1 {
			d = time.Duration(float64(d) * c.Multiplier)
		}
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, retryable rejects its error, the attempts
// run out, or ctx ends while waiting. fn receives the 1-based attempt number.
//
// Do returns the number of attempts made together with the error of the last
// one, unwrapped, so callers keep their own error classification. When ctx
// ends during a wait the error is ctx.Err().
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func(attempt int) error) (int, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if attempt >= maxAttempts || retryable == nil || !retryable(err) {
			return attempt, err
		}

		wait := withJitter(cfg.Delay(attempt), cfg.JitterFraction)
		slog.Debug("fetch attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		}
	}
}

// IsTransient reports whether a transport error is likely to clear on a
// second try: timeouts, refused or reset connections, unreachable networks,
// and connections cut off mid-response. Unknown hosts and canceled contexts
// are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return false
		}
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	return false
}

// withJitter adds up to fraction*d of random delay.
func withJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	if fraction > 1 {
		fraction = 1
	}
	// #nosec G404 -- backoff jitter does not need a cryptographic source.
	return d + time.Duration(rand.Float64()*fraction*float64(d))
}
