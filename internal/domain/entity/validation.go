package entity

import (
	"fmt"
	"net/url"
	"strings"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

// ValidateURL validates the format of a URL that is about to be fetched.
// It checks that the URL is well-formed, uses HTTP/HTTPS scheme, has a host and
// carries no embedded credentials. It performs no DNS lookup; destination
// checks belong to the host guard, which runs on every hop.
// Returns the parsed URL, or a ValidationError if the URL is unusable.
func ValidateURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, &ValidationError{Field: "url", Message: "url is required"}
	}

	// DoS protection: enforce maximum URL length
	if len(rawURL) > maxURLLength {
		return nil, &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ValidationError{Field: "url", Message: "url is malformed"}
	}

	return parsedURL, ValidateTarget(parsedURL)
}

// ValidateTarget applies the scheme, host and credential rules to an already
// parsed URL, such as a resolved redirect Location.
func ValidateTarget(u *url.URL) error {
	// HTTPまたはHTTPSスキームのみ許可
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "url must use http or https scheme"}
	}

	// ホスト名の検証
	if u.Hostname() == "" {
		return &ValidationError{Field: "url", Message: "url must have a valid host"}
	}

	// 認証情報付きURLは拒否
	if u.User != nil {
		return &ValidationError{Field: "url", Message: "url must not contain credentials"}
	}

	return nil
}
