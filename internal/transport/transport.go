// Package transport provides the upstream HTTP transports used to reach the
// catalog backend.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Options configures New.
type Options struct {
	// Timeout bounds dialing and the TLS handshake.
	Timeout time.Duration
	// Fingerprint presents a browser TLS fingerprint. Some managed WordPress
	// hosts rate-limit Go's default ClientHello (JA3) aggressively.
	Fingerprint bool
}

// New returns the RoundTripper for catalog requests.
func New(opts Options) http.RoundTripper {
	if opts.Fingerprint {
		return NewChromeTransport(opts.Timeout)
	}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: opts.Timeout}).DialContext,
		TLSHandshakeTimeout: opts.Timeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConnsPerHost: 8,
	}
}

// NewChromeTransport returns a RoundTripper presenting Chrome's TLS
// fingerprint via uTLS. ALPN decides between HTTP/2 and HTTP/1.1; hosts that
// negotiate HTTP/1.1 once are remembered and skip the HTTP/2 attempt.
// Plain http:// requests bypass the fingerprinting entirely.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	t := &chromeTransport{
		dialer: &net.Dialer{Timeout: timeout},
	}

	t.h2 = &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return t.dialTLS(ctx, network, addr)
		},
	}
	t.h1 = &http.Transport{
		DialContext: t.dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return t.dialTLS(ctx, network, addr)
		},
		MaxIdleConnsPerHost: 8,
	}
	return t
}

type chromeTransport struct {
	dialer *net.Dialer
	h2     *http2.Transport
	h1     *http.Transport

	// h1Only holds "host:port" keys whose server chose http/1.1 over ALPN.
	h1Only sync.Map
}

// RoundTrip implements http.RoundTripper.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	if _, ok := t.h1Only.Load(canonicalAddr(req)); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Context().Err() != nil {
		return nil, err
	}
	// Servers without h2 make the HTTP/2 attempt fail after the handshake.
	// Requests carrying a body that was already consumed cannot be replayed.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, err
	}
	if req.GetBody != nil {
		body, gerr := req.GetBody()
		if gerr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

// CloseIdleConnections releases pooled connections of both transports.
func (t *chromeTransport) CloseIdleConnections() {
	t.h2.CloseIdleConnections()
	t.h1.CloseIdleConnections()
}

func (t *chromeTransport) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := t.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	if tlsConn.ConnectionState().NegotiatedProtocol != http2.NextProtoTLS {
		t.h1Only.Store(addr, struct{}{})
	}
	return tlsConn, nil
}

func canonicalAddr(req *http.Request) string {
	port := req.URL.Port()
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(req.URL.Hostname(), port)
}
