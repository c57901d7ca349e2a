// Package fetch defines the port through which the preview use case obtains page
// HTML, along with the structured error taxonomy shared by every fetcher
// implementation.
package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure. The HTTP boundary maps kinds to status codes
// by inspecting this field; it never matches on message text.
type Kind int

const (
	// KindUnknown is the zero value and is never produced by a fetcher.
	KindUnknown Kind = iota

	// KindInvalidURL: the URL is malformed, uses a scheme other than http/https,
	// lacks a host or carries credentials.
	KindInvalidURL

	// KindGuardBlocked: the destination host is private, loopback or
	// link-local. A policy refusal, not a transient fault.
	KindGuardBlocked

	// KindRedirectLimitExceeded: another redirect arrived after the hop cap
	// was already reached.
	KindRedirectLimitExceeded

	// KindMissingRedirectTarget: a redirect status without a Location header.
	KindMissingRedirectTarget

	// KindUnsupportedContentType: the final response is not text/html.
	KindUnsupportedContentType

	// KindResponseTooLarge: the body grew past the configured byte cap.
	KindResponseTooLarge

	// KindTimeout: a hop exceeded its deadline.
	KindTimeout

	// KindNetwork: DNS, connect or read failure.
	KindNetwork

	// KindUpstreamStatus: the final response had a non-2xx, non-redirect status.
	KindUpstreamStatus
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindInvalidURL:             "invalid_url",
	KindGuardBlocked:           "guard_blocked",
	KindRedirectLimitExceeded:  "redirect_limit_exceeded",
	KindMissingRedirectTarget:  "missing_redirect_target",
	KindUnsupportedContentType: "unsupported_content_type",
	KindResponseTooLarge:       "response_too_large",
	KindTimeout:                "timeout",
	KindNetwork:                "network_error",
	KindUpstreamStatus:         "upstream_status",
}

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsClientFault reports whether the failure is caused by what the caller asked
// for (mapped to 400) rather than by the upstream site (mapped to 502).
func (k Kind) IsClientFault() bool {
	switch k {
	case KindInvalidURL, KindGuardBlocked, KindRedirectLimitExceeded,
		KindMissingRedirectTarget, KindUnsupportedContentType, KindResponseTooLarge:
		return true
	default:
		return false
	}
}

// Sentinel errors, one per Kind. An *Error matches the sentinel of its kind
// through errors.Is.
var (
	// ErrInvalidURL indicates the URL format is invalid or uses an unsupported scheme.
	//
	// Example:
	//   - "not-a-url" → ErrInvalidURL
	//   - "file:///etc/passwd" → ErrInvalidURL
	ErrInvalidURL = errors.New("invalid url")

	// ErrGuardBlocked indicates the destination is a private network address.
	//
	// Blocked ranges:
	//   - 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16 (private)
	//   - 127.0.0.0/8, ::1 (loopback)
	//   - 169.254.0.0/16, fe80::/10 (link-local)
	//   - 0.0.0.0 (unspecified)
	//   - fc00::/7 (IPv6 unique local)
	//   - "localhost" and "*.local" hostnames
	ErrGuardBlocked = errors.New("blocked private host")

	// ErrRedirectLimitExceeded indicates the redirect chain exceeded the configured maximum.
	//
	// Example:
	//   - 4 redirects in a row when max is 3 → ErrRedirectLimitExceeded
	ErrRedirectLimitExceeded = errors.New("redirect limit exceeded")

	// ErrMissingRedirectTarget indicates a 3xx redirect without a Location header.
	ErrMissingRedirectTarget = errors.New("redirect without location")

	// ErrUnsupportedContentType indicates the final response is not HTML.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrResponseTooLarge indicates the response body exceeded the size limit.
	ErrResponseTooLarge = errors.New("response too large")

	// ErrTimeout indicates a hop exceeded the configured timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrNetwork indicates a DNS, connect or transfer failure.
	ErrNetwork = errors.New("network error")

	// ErrUpstreamStatus indicates the site answered with an error status.
	ErrUpstreamStatus = errors.New("upstream returned error status")
)

var kindSentinels = map[Kind]error{
	KindInvalidURL:             ErrInvalidURL,
	KindGuardBlocked:           ErrGuardBlocked,
	KindRedirectLimitExceeded:  ErrRedirectLimitExceeded,
	KindMissingRedirectTarget:  ErrMissingRedirectTarget,
	KindUnsupportedContentType: ErrUnsupportedContentType,
	KindResponseTooLarge:       ErrResponseTooLarge,
	KindTimeout:                ErrTimeout,
	KindNetwork:                ErrNetwork,
	KindUpstreamStatus:         ErrUpstreamStatus,
}

// Error is the single structured error type returned by fetchers.
type Error struct {
	Kind Kind
	// URL is the hop being fetched when the failure happened.
	URL string
	// Err is the underlying cause, if any.
	Err error
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, url string, cause error) *Error {
	return &Error{Kind: kind, URL: url, Err: cause}
}

// Error returns the user-safe sentinel message followed by the cause.
func (e *Error) Error() string {
	msg := e.Message()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Message returns the sentinel message only, without the cause. It is safe
// to return to API clients.
func (e *Error) Message() string {
	if s, ok := kindSentinels[e.Kind]; ok {
		return s.Error()
	}
	return "fetch failed"
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of e's kind.
func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
