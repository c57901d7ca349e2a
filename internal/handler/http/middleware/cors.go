package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// AnyOrigin in AllowedOrigins allows every origin without credentials.
const AnyOrigin = "*"

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	// AllowedOrigins is a whitelist of permitted origins, or ["*"].
	// Example: ["http://localhost:8081", "https://app.centscape.com"]
	AllowedOrigins []string

	// AllowedMethods specifies which HTTP methods are allowed in CORS requests.
	AllowedMethods []string

	// AllowedHeaders specifies which request headers are allowed in CORS requests.
	AllowedHeaders []string

	// MaxAge specifies how long preflight results can be cached (in seconds).
	MaxAge int

	// Logger receives policy violations at Warn and preflights at Debug.
	// Nil disables logging.
	Logger *slog.Logger
}

// DefaultCORSConfig returns the policy for the mobile and web clients: any
// origin may call POST /preview.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{AnyOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         86400,
	}
}

// ParseOrigins parses a comma-separated origin list. "*" alone allows any
// origin. Every other entry must be an http(s) origin with no path, query,
// fragment or trailing slash.
func ParseOrigins(list string) ([]string, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == AnyOrigin {
		return []string{AnyOrigin}, nil
	}

	var origins []string
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if raw == AnyOrigin {
			return nil, fmt.Errorf("wildcard origin cannot be combined with explicit origins")
		}

		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid origin URL '%s': %w", raw, err)
		}
		switch {
		case u.Scheme != "http" && u.Scheme != "https":
			return nil, fmt.Errorf("origin must use http or https scheme: %s", raw)
		case u.Host == "":
			return nil, fmt.Errorf("origin must include a host: %s", raw)
		case strings.HasSuffix(raw, "/"):
			return nil, fmt.Errorf("origin must not have trailing slash: %s", raw)
		case u.Path != "" || u.RawQuery != "" || u.Fragment != "":
			return nil, fmt.Errorf("origin must not include path, query or fragment: %s", raw)
		}
		origins = append(origins, raw)
	}
	if len(origins) == 0 {
		return []string{AnyOrigin}, nil
	}
	return origins, nil
}

// CORS returns an HTTP middleware that handles CORS for cross-origin requests.
//
// Behavior:
//   - No Origin header: same-origin request, passed through untouched
//   - Origin not allowed: logged, passed through without CORS headers (the browser blocks it)
//   - Allowed preflight (OPTIONS): CORS headers and 204, next is not called
//   - Allowed actual request: Access-Control-Allow-Origin set, then next
//
// With the wildcard policy the response carries "*" and no credentials header;
// an explicit whitelist echoes the origin and allows credentials.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	wildcard := false
	allowed := make(map[string]struct{}, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		if o == AnyOrigin {
			wildcard = true
			continue
		}
		allowed[strings.ToLower(o)] = struct{}{}
	}
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(config.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, ok := allowed[strings.ToLower(origin)]
			if !wildcard && !ok {
				if config.Logger != nil {
					config.Logger.Warn("CORS: origin not allowed",
						slog.String("origin", origin),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method))
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", AnyOrigin)
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)

				if config.Logger != nil {
					config.Logger.Debug("CORS: preflight request",
						slog.String("origin", origin),
						slog.String("requested_method", r.Header.Get("Access-Control-Request-Method")))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
