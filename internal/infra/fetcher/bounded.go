// Package fetcher implements the SSRF-hardened page fetcher: a host guard that
// is re-applied on every redirect hop, and a bounded HTTP client that caps
// redirects, body size and per-hop time and only accepts HTML.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"centscape-preview/internal/domain/entity"
	"centscape-preview/internal/usecase/fetch"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html/charset"
)

// readChunkSize is the size of each incremental body read.
const readChunkSize = 32 * 1024

// errBodyTooLarge is returned by readCapped when the cap is crossed.
var errBodyTooLarge = errors.New("body exceeds size limit")

// BoundedFetcher implements fetch.PageFetcher.
//
// Features:
//   - Guard check before every hop, plus a dial-time address check
//   - Manual redirect loop capped at MaxRedirects
//   - Per-hop deadline covering DNS, connect, headers and body
//   - Content-Type allowlist (text/html) checked before the body is read
//   - Streamed body size cap; nothing partial is ever returned
//   - Charset detection and decoding to UTF-8
//
// The fetcher holds no per-call state, so a single instance is safe for
// concurrent use. It never retries.
type BoundedFetcher struct {
	client *http.Client
	guard  Guard
	config Config
}

// NewBoundedFetcher creates a BoundedFetcher.
//
// When guard is nil the fetcher builds a HostGuard from config, or a guard that
// allows everything when config.DenyPrivateIPs is false (local testing only).
//
// Example:
//
//	f := fetcher.NewBoundedFetcher(fetcher.DefaultConfig(), nil)
//	outcome, err := f.Fetch(ctx, "https://shop.example.com/item/42")
func NewBoundedFetcher(config Config, guard Guard) *BoundedFetcher {
	if guard == nil {
		if config.DenyPrivateIPs {
			guard = NewHostGuard(config.ResolveHostnames, nil)
		} else {
			guard = permissiveGuard{}
		}
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Accept == "" {
		config.Accept = DefaultAccept
	}

	return &BoundedFetcher{
		client: newHTTPClient(config, guard),
		guard:  guard,
		config: config,
	}
}

// hopResult is what one request/response exchange produced: either a final
// outcome or the raw Location of a redirect.
type hopResult struct {
	outcome    *fetch.Outcome
	redirect   bool
	location   string
	statusCode int
}

// Fetch implements fetch.PageFetcher.
//
// The redirect chain is an explicit state machine {current, hop}. Each
// iteration runs the guard, issues exactly one request and either returns,
// fails, or moves current to the resolved Location. The loop bound makes the
// hop cap structural: at most MaxRedirects+1 requests are issued.
//
// Errors (all *fetch.Error):
//   - KindInvalidURL: the URL or a redirect target is not a usable http(s) URL
//   - KindGuardBlocked: a hop targets a private destination
//   - KindRedirectLimitExceeded: a redirect arrived after MaxRedirects hops
//   - KindMissingRedirectTarget: a redirect without Location
//   - KindUnsupportedContentType: the final response is not text/html
//   - KindResponseTooLarge: the body crossed MaxBodySize
//   - KindTimeout: a hop exceeded Timeout
//   - KindNetwork: DNS, connect or read failure
//   - KindUpstreamStatus: the final response is not 2xx
func (f *BoundedFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Outcome, error) {
	current, err := entity.ValidateURL(rawURL)
	if err != nil {
		return nil, fetch.NewError(fetch.KindInvalidURL, rawURL, err)
	}

	span := trace.SpanFromContext(ctx)

	for hop := 0; hop <= f.config.MaxRedirects; hop++ {
		span.AddEvent("fetch.hop", trace.WithAttributes(
			attribute.Int("fetch.hop", hop),
			attribute.String("fetch.host", current.Hostname()),
		))

		res, err := f.doHop(ctx, current)
		if err != nil {
			return nil, err
		}

		slog.Debug("fetch hop completed",
			slog.Int("hop", hop),
			slog.String("host", current.Hostname()),
			slog.Int("status", res.statusCode))

		if !res.redirect {
			return res.outcome, nil
		}

		if hop == f.config.MaxRedirects {
			return nil, fetch.NewError(fetch.KindRedirectLimitExceeded, current.String(),
				fmt.Errorf("more than %d redirects", f.config.MaxRedirects))
		}
		if res.location == "" {
			return nil, fetch.NewError(fetch.KindMissingRedirectTarget, current.String(),
				fmt.Errorf("status %d without Location header", res.statusCode))
		}

		next, err := current.Parse(res.location)
		if err != nil {
			return nil, fetch.NewError(fetch.KindInvalidURL, current.String(),
				fmt.Errorf("unparseable redirect target: %w", err))
		}
		if err := entity.ValidateTarget(next); err != nil {
			return nil, fetch.NewError(fetch.KindInvalidURL, next.String(), err)
		}
		current = next
	}

	// ループ内で必ず return するため到達しない
	return nil, fetch.NewError(fetch.KindRedirectLimitExceeded, current.String(), nil)
}

// doHop runs the guard and one GET against u under a fresh per-hop deadline.
// The response body is always closed before doHop returns.
func (f *BoundedFetcher) doHop(ctx context.Context, u *url.URL) (hopResult, error) {
	hopCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	if err := f.guard.CheckHost(hopCtx, u.Hostname()); err != nil {
		return hopResult{}, withURL(err, u.String())
	}

	req, err := http.NewRequestWithContext(hopCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return hopResult{}, fetch.NewError(fetch.KindInvalidURL, u.String(), err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", f.config.Accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return hopResult{}, classifyTransportError(hopCtx, u.String(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if isRedirectStatus(resp.StatusCode) {
		return hopResult{
			redirect:   true,
			location:   strings.TrimSpace(resp.Header.Get("Location")),
			statusCode: resp.StatusCode,
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return hopResult{}, fetch.NewError(fetch.KindUpstreamStatus, u.String(),
			fmt.Errorf("status %d", resp.StatusCode))
	}

	// ボディを読む前に Content-Type を検証する
	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return hopResult{}, fetch.NewError(fetch.KindUnsupportedContentType, u.String(),
			fmt.Errorf("content type %q", contentType))
	}

	if resp.ContentLength > f.config.MaxBodySize {
		return hopResult{}, fetch.NewError(fetch.KindResponseTooLarge, u.String(),
			fmt.Errorf("declared length %d exceeds %d bytes", resp.ContentLength, f.config.MaxBodySize))
	}

	body, err := readCapped(resp.Body, f.config.MaxBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			return hopResult{}, fetch.NewError(fetch.KindResponseTooLarge, u.String(),
				fmt.Errorf("body exceeds %d bytes", f.config.MaxBodySize))
		}
		return hopResult{}, classifyTransportError(hopCtx, u.String(), err)
	}

	return hopResult{
		outcome: &fetch.Outcome{
			FinalURL:    u.String(),
			HTML:        decodeHTML(body, contentType),
			ContentType: contentType,
		},
		statusCode: resp.StatusCode,
	}, nil
}

// isRedirectStatus reports whether code is one of the followed redirect statuses.
func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// isHTMLContentType reports whether the Content-Type header contains text/html.
func isHTMLContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// readCapped consumes r incrementally. The first read that pushes the running
// total strictly past limit aborts with errBodyTooLarge and drops everything
// read so far.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	var total int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if total > limit {
				return nil, errBodyTooLarge
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return buf.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// decodeHTML converts body to UTF-8. The encoding comes from a BOM, the
// Content-Type charset or a <meta> declaration; undeclared bytes that are not
// valid UTF-8 are read as windows-1252, the way browsers do. Anything left
// invalid becomes U+FFFD.
func decodeHTML(body []byte, contentType string) string {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name != "utf-8" && enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(body); err == nil {
			body = decoded
		}
	}
	if utf8.Valid(body) {
		return string(body)
	}
	return strings.ToValidUTF8(string(body), "\uFFFD")
}

// classifyTransportError maps a client or body-read error to a *fetch.Error.
// A guard refusal raised by the dialer is passed through unchanged.
func classifyTransportError(hopCtx context.Context, rawURL string, err error) error {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return withURL(fe, rawURL)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(hopCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return fetch.NewError(fetch.KindTimeout, rawURL, err)
	}

	return fetch.NewError(fetch.KindNetwork, rawURL, err)
}

// isTimeout reports whether err is a net.Error that timed out.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// withURL fills in the URL of a *fetch.Error raised below the fetch loop.
func withURL(err error, rawURL string) error {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		if fe.URL == "" {
			return fetch.NewError(fe.Kind, rawURL, fe.Err)
		}
		return fe
	}
	return fetch.NewError(fetch.KindNetwork, rawURL, err)
}
