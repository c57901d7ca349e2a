package circuitbreaker_test

import (
	"errors"
	"testing"
	"time"

	"centscape-preview/internal/resilience/circuitbreaker"
	"centscape-preview/internal/usecase/fetch"
	previewUC "centscape-preview/internal/usecase/preview"

	"github.com/sony/gobreaker"
)

const host = "shop.example.com"

// hostBreaker returns the breaker the preview service builds for host, with
// the cool-down shortened so half-open tests stay fast.
func hostBreaker(cooldown time.Duration) *circuitbreaker.CircuitBreaker {
	cfg := previewUC.BreakerConfig(host)
	cfg.Timeout = cooldown
	return circuitbreaker.New(cfg)
}

func fail(cb *circuitbreaker.CircuitBreaker, kind fetch.Kind) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fetch.NewError(kind, "https://"+host+"/p", errors.New("cause"))
	})
	return err
}

func succeed(cb *circuitbreaker.CircuitBreaker) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return &fetch.Outcome{FinalURL: "https://" + host + "/p", HTML: "<title>ok</title>"}, nil
	})
	return err
}

func TestNew_HostBreaker(t *testing.T) {
	cb := hostBreaker(time.Minute)

	if cb.Name() != "fetch:"+host {
		t.Errorf("expected name='fetch:%s', got %q", host, cb.Name())
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestHostFetchConfig(t *testing.T) {
	cfg := circuitbreaker.HostFetchConfig(host)

	if cfg.Name != "fetch:"+host {
		t.Errorf("expected Name='fetch:%s', got %q", host, cfg.Name)
	}
	if cfg.MaxRequests != 1 {
		t.Errorf("expected MaxRequests=1, got %d", cfg.MaxRequests)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected Timeout=30s, got %v", cfg.Timeout)
	}
	if cfg.FailureThreshold != 0.8 {
		t.Errorf("expected FailureThreshold=0.8, got %f", cfg.FailureThreshold)
	}
	if cfg.IsFailure != nil {
		t.Error("expected HostFetchConfig to count every error; the preview service narrows it")
	}
}

func TestHostBreaker_UpstreamFaultsTrip(t *testing.T) {
	kinds := []fetch.Kind{fetch.KindTimeout, fetch.KindNetwork, fetch.KindUpstreamStatus}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			cb := hostBreaker(time.Minute)

			for i := 0; i < 5; i++ {
				if err := fail(cb, kind); fetch.KindOf(err) != kind {
					t.Fatalf("request %d: expected the fetch error to pass through, got %v", i, err)
				}
			}
			if !cb.IsOpen() {
				t.Fatalf("expected state=Open after 5 upstream faults, got %v", cb.State())
			}

			_, err := cb.Execute(func() (interface{}, error) {
				t.Error("fetch must not run while the breaker is open")
				return nil, nil
			})
			if !errors.Is(err, gobreaker.ErrOpenState) {
				t.Errorf("expected ErrOpenState, got %v", err)
			}
		})
	}
}

func TestHostBreaker_CallerFaultsNeverTrip(t *testing.T) {
	kinds := []fetch.Kind{
		fetch.KindInvalidURL,
		fetch.KindGuardBlocked,
		fetch.KindRedirectLimitExceeded,
		fetch.KindMissingRedirectTarget,
		fetch.KindUnsupportedContentType,
		fetch.KindResponseTooLarge,
	}

	cb := hostBreaker(time.Minute)
	for _, kind := range kinds {
		for i := 0; i < 5; i++ {
			if err := fail(cb, kind); fetch.KindOf(err) != kind {
				t.Fatalf("%s: expected the fetch error to pass through, got %v", kind, err)
			}
		}
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed after %d caller faults, got %v", 5*len(kinds), cb.State())
	}
}

func TestHostBreaker_BelowMinRequests(t *testing.T) {
	cb := hostBreaker(time.Minute)

	for i := 0; i < 4; i++ {
		_ = fail(cb, fetch.KindTimeout)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed with 4 of 5 minimum requests, got %v", cb.State())
	}
}

func TestHostBreaker_BelowFailureRatio(t *testing.T) {
	cb := hostBreaker(time.Minute)

	// 3 失敗 / 5 リクエスト = 60% < 80%
	_ = succeed(cb)
	_ = fail(cb, fetch.KindUpstreamStatus)
	_ = fail(cb, fetch.KindNetwork)
	_ = succeed(cb)
	_ = fail(cb, fetch.KindTimeout)

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected state=Closed at a 60%% failure ratio, got %v", cb.State())
	}
}

func TestHostBreaker_HalfOpenTrialOutcome(t *testing.T) {
	tests := []struct {
		name  string
		trial func(cb *circuitbreaker.CircuitBreaker) error
		want  gobreaker.State
	}{
		{"page fetched closes", succeed, gobreaker.StateClosed},
		{"blocked url closes", func(cb *circuitbreaker.CircuitBreaker) error {
			return fail(cb, fetch.KindGuardBlocked)
		}, gobreaker.StateClosed},
		{"upstream error reopens", func(cb *circuitbreaker.CircuitBreaker) error {
			return fail(cb, fetch.KindUpstreamStatus)
		}, gobreaker.StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := hostBreaker(50 * time.Millisecond)
			for i := 0; i < 5; i++ {
				_ = fail(cb, fetch.KindNetwork)
			}
			if !cb.IsOpen() {
				t.Fatalf("expected state=Open, got %v", cb.State())
			}

			time.Sleep(80 * time.Millisecond)
			if cb.State() != gobreaker.StateHalfOpen {
				t.Fatalf("expected state=HalfOpen after the cool-down, got %v", cb.State())
			}

			_ = tt.trial(cb)
			if cb.State() != tt.want {
				t.Errorf("expected state=%v, got %v", tt.want, cb.State())
			}
		})
	}
}
