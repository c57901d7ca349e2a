package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPExtractor is an interface for extracting client IP addresses from HTTP requests.
// The rate limiter keys its buckets on the returned value.
type IPExtractor interface {
	// ExtractIP extracts the client IP address from an HTTP request.
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor extracts the client IP from the RemoteAddr field of the HTTP request.
// This is the default: the TCP peer address cannot be spoofed by the client.
//
// Examples:
//   - "192.168.1.1:54321" → "192.168.1.1"
//   - "[2001:db8::1]:8080" → "2001:db8::1"
//   - "127.0.0.1" → "127.0.0.1" (no port)
type RemoteAddrExtractor struct{}

// ExtractIP implements IPExtractor.
func (e *RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig lists the reverse proxies whose forwarding headers are believed.
type TrustedProxyConfig struct {
	// Enabled indicates whether proxy trust is enabled.
	// When false, all header-based extraction is disabled.
	Enabled bool

	// AllowedCIDRs is a list of trusted proxy IP ranges.
	AllowedCIDRs []netip.Prefix
}

// ParseTrustedProxies parses a comma-separated list of IPs and CIDR ranges.
// A bare IP becomes a /32 or /128 prefix. Empty elements are skipped.
//
// Examples:
//   - "192.168.1.1"
//   - "10.0.0.0/8,172.16.0.0/12"
//   - "2001:db8::/32"
func ParseTrustedProxies(list string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		prefix, err := netip.ParsePrefix(item)
		if err != nil {
			addr, addrErr := netip.ParseAddr(item)
			if addrErr != nil {
				return nil, fmt.Errorf("invalid IP or CIDR format '%s': must be valid IP address or CIDR notation (e.g., '192.168.1.1' or '10.0.0.0/8')", item)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// IsTrusted reports whether remoteAddr ("IP:port" or "IP") is inside one of
// the trusted ranges. Unparseable input is never trusted.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// TrustedProxyExtractor extracts the client IP from X-Forwarded-For or X-Real-IP headers
// when the request comes from a trusted proxy. If the proxy is not trusted, it falls back
// to RemoteAddr extraction to prevent IP spoofing attacks.
//
// Header extraction priority:
//  1. X-Forwarded-For (first IP in comma-separated list)
//  2. X-Real-IP (fallback)
//  3. RemoteAddr (if proxy is not trusted or headers are missing)
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

// NewTrustedProxyExtractor creates a new TrustedProxyExtractor with the given configuration.
func NewTrustedProxyExtractor(config TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{config: config}
}

// ExtractIP implements IPExtractor.
func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled {
		return extractIPFromAddr(r.RemoteAddr)
	}

	xff := r.Header.Get("X-Forwarded-For")
	xri := r.Header.Get("X-Real-IP")

	if !e.config.IsTrusted(r.RemoteAddr) {
		if xff != "" || xri != "" {
			// ヘッダーによるレート制限回避の試み
			slog.Warn("untrusted peer sent forwarding headers",
				slog.String("remote_addr", r.RemoteAddr),
				slog.Bool("x_forwarded_for", xff != ""),
				slog.Bool("x_real_ip", xri != ""),
			)
		}
		return extractIPFromAddr(r.RemoteAddr)
	}

	if ip := parseFirstIP(xff); ip != "" {
		return ip, nil
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
		return addr.Unmap().String(), nil
	}
	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr extracts the IP address from a "host:port" or "IP" string.
//
// Examples:
//   - "192.168.1.1:8080" → "192.168.1.1", nil
//   - "[2001:db8::1]:8080" → "2001:db8::1", nil
//   - "127.0.0.1" → "127.0.0.1", nil (no port)
func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = strings.Trim(addr, "[]")
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return ip.Unmap().String(), nil
}

// parseFirstIP returns the first entry of an X-Forwarded-For list ("client,
// proxy1, proxy2") when it is a valid IP, or "".
func parseFirstIP(s string) string {
	first, _, _ := strings.Cut(s, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}
