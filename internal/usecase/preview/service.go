// Package preview implements the preview use case: validate the target URL,
// fetch the page through the guarded fetcher (or take caller-supplied HTML),
// and run the extraction cascade on the result.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"centscape-preview/internal/domain/entity"
	"centscape-preview/internal/observability/logging"
	"centscape-preview/internal/observability/metrics"
	"centscape-preview/internal/observability/tracing"
	"centscape-preview/internal/resilience/circuitbreaker"
	"centscape-preview/internal/resilience/retry"
	"centscape-preview/internal/usecase/fetch"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrRawHTMLDisabled is returned when the caller supplies raw_html and the
	// service does not accept it.
	ErrRawHTMLDisabled = errors.New("raw_html is disabled")

	// ErrUpstreamUnavailable is returned when the breaker for the target host
	// is open and the fetch was not attempted.
	ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")
)

// Extractor turns HTML into a preview and names the strategy that produced it.
type Extractor interface {
	ExtractWithStrategy(rawHTML, sourceURL string) (*entity.Preview, string)
}

// Input represents one preview request.
type Input struct {
	URL string
	// RawHTML, when non-empty, is extracted instead of fetching URL.
	RawHTML string
}

// Service provides the preview use case.
//
// Breakers, Retry and Limiter are optional: a nil Breakers disables circuit
// breaking, a Retry with MaxAttempts <= 1 disables retries, and a nil
// Limiter places no cap on concurrent upstream fetches.
type Service struct {
	Fetcher      fetch.PageFetcher
	Extractor    Extractor
	Breakers     *circuitbreaker.Registry
	Retry        retry.Config
	Limiter      *semaphore.Weighted
	AllowRawHTML bool
}

// BreakerConfig returns the per-host breaker configuration used by the
// service. Only upstream faults (timeouts, network errors, error statuses)
// count as failures; a blocked or non-HTML URL says nothing about the host.
func BreakerConfig(host string) circuitbreaker.Config {
	cfg := circuitbreaker.HostFetchConfig(host)
	cfg.IsFailure = IsUpstreamFault
	return cfg
}

// IsUpstreamFault reports whether err is a fetch failure caused by the
// upstream host rather than by the request.
func IsUpstreamFault(err error) bool {
	switch fetch.KindOf(err) {
	case fetch.KindTimeout, fetch.KindNetwork, fetch.KindUpstreamStatus:
		return true
	default:
		return false
	}
}

// isRetryableFetch limits retries to transient transport failures. Timeouts
// are not retried: the caller has already waited a full hop deadline. An
// unknown host or a TLS failure will not fix itself in 200ms either.
func isRetryableFetch(err error) bool {
	var fe *fetch.Error
	if !errors.As(err, &fe) || fe.Kind != fetch.KindNetwork {
		return false
	}
	return retry.IsTransient(fe.Err)
}

// Preview returns the preview for in.
//
// Errors:
//   - *fetch.Error with KindInvalidURL when in.URL is not an http(s) URL
//   - ErrRawHTMLDisabled when in.RawHTML is set and AllowRawHTML is false
//   - ErrUpstreamUnavailable when the host breaker is open
//   - any *fetch.Error returned by the fetcher
func (s *Service) Preview(ctx context.Context, in Input) (*entity.Preview, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "preview")
	defer span.End()

	source := metrics.SourceFetched
	if in.RawHTML != "" {
		source = metrics.SourceRawHTML
	}
	span.SetAttributes(attribute.String("preview.source", source))

	p, err := s.preview(ctx, in, source)
	metrics.RecordPreviewResult(resultLabel(err), source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, resultLabel(err))
		return nil, err
	}
	return p, nil
}

func (s *Service) preview(ctx context.Context, in Input, source string) (*entity.Preview, error) {
	u, err := entity.ValidateURL(in.URL)
	if err != nil {
		return nil, fetch.NewError(fetch.KindInvalidURL, in.URL, err)
	}

	if source == metrics.SourceRawHTML {
		if !s.AllowRawHTML {
			return nil, ErrRawHTMLDisabled
		}
		return s.extract(ctx, in.RawHTML, u.String()), nil
	}

	outcome, err := s.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	return s.extract(ctx, outcome.HTML, outcome.FinalURL), nil
}

// fetch runs the fetcher under the concurrency limit, the retry policy and
// the host breaker, in that order from the outside in.
func (s *Service) fetch(ctx context.Context, u *url.URL) (*fetch.Outcome, error) {
	host := u.Hostname()
	ctx, span := tracing.GetTracer().Start(ctx, "preview.fetch",
		trace.WithAttributes(attribute.String("url.host", host)))
	defer span.End()

	logger := logging.WithRequestID(ctx, slog.Default())

	if s.Limiter != nil {
		if err := s.Limiter.Acquire(ctx, 1); err != nil {
			return nil, fetch.NewError(fetch.KindTimeout, u.String(), fmt.Errorf("waiting for fetch slot: %w", err))
		}
		defer s.Limiter.Release(1)
	}

	start := time.Now()
	var outcome *fetch.Outcome
	attempt, err := retry.Do(ctx, s.Retry, isRetryableFetch, func(attempt int) error {
		if attempt > 1 {
			metrics.RecordFetchRetry()
		}
		o, err := s.fetchOnce(ctx, u)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	})
	span.SetAttributes(attribute.Int("fetch.attempts", attempt))

	if err != nil {
		// 呼び出し元の期限切れ・キャンセルは分類に関係なくタイムアウト扱い
		if ctx.Err() != nil {
			err = fetch.NewError(fetch.KindTimeout, u.String(), ctx.Err())
		}
		metrics.RecordFetch(resultLabel(err), time.Since(start), 0)
		span.RecordError(err)

		level := slog.LevelInfo
		if IsUpstreamFault(err) || errors.Is(err, ErrUpstreamUnavailable) {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "preview fetch failed",
			slog.String("host", host),
			slog.String("kind", resultLabel(err)),
			slog.Int("attempts", attempt),
			slog.Duration("duration", time.Since(start)))
		return nil, err
	}

	metrics.RecordFetch("success", time.Since(start), len(outcome.HTML))
	logger.Debug("preview fetch completed",
		slog.String("host", host),
		slog.Int("attempts", attempt),
		slog.Int("size", len(outcome.HTML)),
		slog.Duration("duration", time.Since(start)))
	return outcome, nil
}

// fetchOnce performs one fetch through the breaker of the initial host.
func (s *Service) fetchOnce(ctx context.Context, u *url.URL) (*fetch.Outcome, error) {
	if s.Breakers == nil {
		return s.Fetcher.Fetch(ctx, u.String())
	}

	cb := s.Breakers.Get(u.Hostname())
	res, err := cb.Execute(func() (interface{}, error) {
		return s.Fetcher.Fetch(ctx, u.String())
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordCircuitOpen()
		return nil, fmt.Errorf("%w: breaker %s is %s", ErrUpstreamUnavailable, cb.Name(), cb.State())
	}
	if err != nil {
		return nil, err
	}
	return res.(*fetch.Outcome), nil
}

func (s *Service) extract(ctx context.Context, html, sourceURL string) *entity.Preview {
	ctx, span := tracing.GetTracer().Start(ctx, "preview.extract")
	defer span.End()

	p, strategy := s.Extractor.ExtractWithStrategy(html, sourceURL)
	span.SetAttributes(
		attribute.String("extract.strategy", strategy),
		attribute.Int("extract.input_size", len(html)),
	)
	metrics.RecordExtraction(strategy, presentFields(p)...)

	// The cascade builds fields only through the entity.Optional* helpers, so
	// this fires on an extractor bug rather than on odd input.
	if err := p.Validate(); err != nil {
		span.RecordError(err)
		logging.WithRequestID(ctx, slog.Default()).Error("extracted preview is malformed",
			slog.String("strategy", strategy),
			slog.Any("error", err))
	}
	return p
}

// presentFields lists the optional fields p carries.
func presentFields(p *entity.Preview) []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Image != nil {
		fields = append(fields, "image")
	}
	if p.Price != nil {
		fields = append(fields, "price")
	}
	if p.Currency != nil {
		fields = append(fields, "currency")
	}
	if p.SiteName != nil {
		fields = append(fields, "site_name")
	}
	return fields
}

// resultLabel is the metrics and span label of a preview outcome.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRawHTMLDisabled):
		return "raw_html_disabled"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return fetch.KindOf(err).String()
	}
}
