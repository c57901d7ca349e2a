package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"centscape-preview/internal/usecase/fetch"
)

// Decision is the outcome of classifying one host at one point in time.
// It is never cached: DNS and network topology can change between hops.
type Decision int

const (
	// Allowed means the host may be contacted.
	Allowed Decision = iota
	// Blocked means the host is private, loopback, link-local or unspecified.
	Blocked
)

// String returns "allowed" or "blocked".
func (d Decision) String() string {
	if d == Blocked {
		return "blocked"
	}
	return "allowed"
}

// blockedPrefixes lists every address range the guard refuses.
//
// Reference:
//   - https://tools.ietf.org/html/rfc1918 (Private IPv4)
//   - https://tools.ietf.org/html/rfc4193 (Unique local IPv6)
//   - https://tools.ietf.org/html/rfc3927 (Link-local IPv4)
//   - https://tools.ietf.org/html/rfc4291 (Loopback and link-local IPv6)
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/32"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Classify decides whether host may be contacted. It performs no I/O and its
// result depends only on the host string.
//
// Rules:
//   - IPv4 literal: blocked inside 10/8, 172.16/12, 192.168/16, 127/8, 169.254/16 or equal to 0.0.0.0
//   - IPv6 literal: blocked for ::1, ::, fc00::/7 and fe80::/10; IPv4-mapped forms are judged as IPv4
//   - hostname: blocked when it is "localhost" or ends in ".local" or ".localhost" (case-insensitive)
//   - anything else is allowed
//
// Example:
//
//	Classify("10.0.0.1")     // Blocked
//	Classify("printer.local") // Blocked
//	Classify("example.com")  // Allowed
func Classify(host string) Decision {
	h := normalizeHost(host)
	if h == "" {
		return Blocked
	}

	if addr, err := netip.ParseAddr(h); err == nil {
		return classifyAddr(addr)
	}

	lower := strings.ToLower(h)
	if lower == "localhost" || strings.HasSuffix(lower, ".local") || strings.HasSuffix(lower, ".localhost") {
		return Blocked
	}
	return Allowed
}

// classifyAddr applies blockedPrefixes to a parsed address.
func classifyAddr(addr netip.Addr) Decision {
	addr = addr.WithZone("").Unmap()
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return Blocked
		}
	}
	return Allowed
}

// normalizeHost strips surrounding whitespace, IPv6 brackets and one trailing dot.
func normalizeHost(host string) string {
	h := strings.TrimSpace(host)
	h = strings.TrimPrefix(h, "[")
	h = strings.TrimSuffix(h, "]")
	h = strings.TrimSuffix(h, ".")
	return h
}

// Guard decides whether a destination may be contacted.
// BoundedFetcher consults CheckHost before every hop and CheckIP for every
// address the dialer is about to connect to.
type Guard interface {
	// CheckHost returns a *fetch.Error of KindGuardBlocked when host must not
	// be contacted.
	CheckHost(ctx context.Context, host string) error

	// CheckIP returns a *fetch.Error of KindGuardBlocked when addr must not be
	// connected to.
	CheckIP(addr netip.Addr) error
}

// Resolver is the subset of *net.Resolver used by HostGuard.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// HostGuard is the production Guard.
//
// Besides Classify on the host string it optionally resolves symbolic names and
// checks every returned address, so a public name that points at a private
// address is refused before a connection is attempted. The dial-time CheckIP
// covers the remaining window in which DNS could answer differently.
type HostGuard struct {
	resolver Resolver
	resolve  bool
}

// NewHostGuard creates a HostGuard. A nil resolver means net.DefaultResolver.
func NewHostGuard(resolveHostnames bool, resolver Resolver) *HostGuard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &HostGuard{resolver: resolver, resolve: resolveHostnames}
}

// CheckHost implements Guard.
func (g *HostGuard) CheckHost(ctx context.Context, host string) error {
	if Classify(host) == Blocked {
		return fetch.NewError(fetch.KindGuardBlocked, "", fmt.Errorf("host %q is not allowed", host))
	}

	h := normalizeHost(host)
	if !g.resolve {
		return nil
	}
	if _, err := netip.ParseAddr(h); err == nil {
		// リテラルIPは Classify で判定済み
		return nil
	}

	addrs, err := g.resolver.LookupNetIP(ctx, "ip", h)
	if err != nil {
		if isTimeout(err) {
			return fetch.NewError(fetch.KindTimeout, "", fmt.Errorf("resolve %s: %w", h, err))
		}
		return fetch.NewError(fetch.KindNetwork, "", fmt.Errorf("resolve %s: %w", h, err))
	}
	if len(addrs) == 0 {
		return fetch.NewError(fetch.KindNetwork, "", fmt.Errorf("resolve %s: no addresses", h))
	}

	for _, addr := range addrs {
		if classifyAddr(addr) == Blocked {
			return fetch.NewError(fetch.KindGuardBlocked, "",
				fmt.Errorf("host %q resolves to private address %s", h, addr))
		}
	}
	return nil
}

// CheckIP implements Guard.
func (g *HostGuard) CheckIP(addr netip.Addr) error {
	if classifyAddr(addr) == Blocked {
		return fetch.NewError(fetch.KindGuardBlocked, "", fmt.Errorf("address %s is not allowed", addr))
	}
	return nil
}

// permissiveGuard allows everything. It is used when DenyPrivateIPs is false,
// which only makes sense in tests and local development.
type permissiveGuard struct{}

func (permissiveGuard) CheckHost(context.Context, string) error { return nil }
func (permissiveGuard) CheckIP(netip.Addr) error               { return nil }
