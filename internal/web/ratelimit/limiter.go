// Package ratelimit throttles catalog clients per key, in memory or
// shared through redis.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Limiter decides whether the request identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Result is the limiter state after one request
type Result struct {
	// Limit is the maximum number of requests per window
	Limit int
	// Remaining is what is left of the current window
	Remaining int
	// ResetAt is when the window is full again
	ResetAt time.Time
	Allowed bool
}

// KeyFunc derives the limiter key of a request
type KeyFunc func(r *http.Request) string

// RemoteIP keys requests by the address of the connection. Headers are
// ignored since any client can set them.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedFor keys requests by the client address recorded in
// X-Forwarded-For, but only when the connection comes from one of the
// trusted proxies. The header is read right to left and the first entry
// that is not itself a trusted proxy wins. Other requests fall back to
// RemoteIP.
func ForwardedFor(trusted []*net.IPNet) KeyFunc {
	if len(trusted) == 0 {
		return RemoteIP
	}

	isTrusted := func(addr string) bool {
		ip := net.ParseIP(addr)
		if ip == nil {
			return false
		}
		for _, n := range trusted {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		remote := RemoteIP(r)
		if !isTrusted(remote) {
			return remote
		}

		hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop) {
				return hop
			}
		}
		return remote
	}
}

// ParseTrustedProxies reads proxy addresses given as CIDR blocks or
// single IPs
func ParseTrustedProxies(values []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if !strings.Contains(v, "/") {
			ip := net.ParseIP(v)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", v)
			}
			bits := 128
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
