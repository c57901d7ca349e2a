package fetcher

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"centscape-preview/internal/usecase/fetch"
)

// newGuardedDialer returns a dialer that asks guard about every concrete
// address right before the socket connects. This closes the gap between the
// DNS answer seen by CheckHost and the one used by the dialer (DNS rebinding).
func newGuardedDialer(timeout time.Duration, guard Guard) *net.Dialer {
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fetch.NewError(fetch.KindGuardBlocked, "", fmt.Errorf("unparseable dial address %q", address))
			}
			addr, err := netip.ParseAddr(host)
			if err != nil {
				return fetch.NewError(fetch.KindGuardBlocked, "", fmt.Errorf("dial address %q is not an IP", host))
			}
			return guard.CheckIP(addr)
		},
	}
}

// newHTTPClient builds the client used by BoundedFetcher.
//
// Redirects are never followed by the client: CheckRedirect hands every 3xx
// back to the caller so the fetch loop can apply the guard and the hop cap.
// Environment proxies are ignored because a proxy would hide the real
// destination from the dial-time check.
func newHTTPClient(config Config, guard Guard) *http.Client {
	dialer := newGuardedDialer(config.Timeout, guard)

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   config.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
