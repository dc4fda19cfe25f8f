// Package connpool builds the shared, keep-alive outbound *http.Transport
// used for every request to the origin and any CDN it redirects to, and
// strips the hop-by-hop / client-identifying headers a reverse proxy must
// not forward verbatim.
package connpool

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mwitkow/go-conntrack"
)

// Config holds the tunables for the shared transport, one pool per scheme.
type Config struct {
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	IdleConnTimeout     time.Duration
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	RequestTimeout      time.Duration
}

// DefaultConfig matches the fixed pool parameters: keep-alive on, 30s idle
// timeout, 10 max sockets per host, 5 max idle sockets per host, 30s request
// timeout.
func DefaultConfig() Config {
	return Config{
		DialTimeout:         30 * time.Second,
		KeepAlive:           30 * time.Second,
		IdleConnTimeout:     30 * time.Second,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     10,
		RequestTimeout:      30 * time.Second,
	}
}

// New builds the shared *http.Transport, instrumented with conntrack so
// outbound connection counts surface on the default Prometheus registry,
// which GET /metrics serves alongside the proxy's own registry.
func New(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	dial := conntrack.NewDialContextFunc(
		conntrack.DialWithName("origin"),
		conntrack.DialWithDialContextFunc(dialer.DialContext),
		conntrack.DialWithTracing(),
	)

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dial,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
	}
}

// hopByHopHeaders lists headers that must never be forwarded verbatim between
// proxy hops, per RFC 7230 §6.1.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// PrepareOutbound strips hop-by-hop and client-identifying headers, then sets
// Host to targetHost so the origin sees the request as addressed to itself.
func PrepareOutbound(header http.Header, targetHost string) http.Header {
	out := header.Clone()
	for _, h := range hopByHopHeaders {
		out.Del(h)
	}
	out.Del("Origin")
	out.Del("Referer")
	out.Set("Host", targetHost)
	return out
}

// IsHopByHopHeader reports whether key must be stripped between proxy hops.
func IsHopByHopHeader(key string) bool {
	canonical := http.CanonicalHeaderKey(key)
	for _, h := range hopByHopHeaders {
		if h == canonical {
			return true
		}
	}
	return false
}

// WithDeadline returns a context that expires after d, used to bound a
// single upstream connection attempt and read per the configured request
// timeout policy.
func WithDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// IsTimeout reports whether err resulted from a deadline set by WithDeadline
// or the transport's own dial/read timeouts.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if ok := asNetError(err, &netErr); ok {
		return netErr.Timeout()
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
