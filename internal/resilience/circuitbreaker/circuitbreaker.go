// Package circuitbreaker wraps sony/gobreaker for upstream page fetches.
// A breaker opens when the failure ratio over a rolling window crosses a
// threshold, and fails calls fast until its cool-down has elapsed.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the breaker in logs and metrics.
	Name string `yaml:"-"`

	// MaxRequests is the maximum number of requests allowed to pass through
	// when the circuit breaker is half-open.
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the failure ratio (0.0 to 1.0) that trips the breaker.
	FailureThreshold float64 `yaml:"failure_threshold"`

	// MinRequests is the minimum number of requests before the ratio is evaluated.
	MinRequests uint32 `yaml:"min_requests"`

	// IsFailure decides whether an error counts against the breaker.
	// nil counts every non-nil error.
	IsFailure func(err error) bool `yaml:"-"`
}

// HostFetchConfig returns the configuration for the breaker guarding one
// upstream host. The cool-down is short: a product page that failed a
// minute ago is worth another try.
func HostFetchConfig(host string) Config {
	return Config{
		Name:             "fetch:" + host,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with logging.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs fn if the breaker admits the call. An open breaker returns
// gobreaker.ErrOpenState (or ErrTooManyRequests when half-open) without
// calling fn.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the configured name, "fetch:<host>" for host breakers.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
