// Package transport provides the HTTP transports used to reach WooCommerce
// stores.
//
// Go's standard TLS client has a distinctive fingerprint, and the CDNs in
// front of many WooCommerce hosts (Cloudflare, Sucuri) use JA3 fingerprinting
// to rate-limit or block non-browser clients. NewChromeTransport presents
// Chrome's TLS fingerprint via uTLS so bulk order exports don't trip those
// filters:
//
//  1. uTLS with HelloChrome_Auto for Chrome's ClientHello
//  2. ALPN negotiates naturally (h2, http/1.1)
//  3. Go's http2.Transport handles HTTP/2 framing when negotiated
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to the store. Supports HTTP/2 and HTTP/1.1 based on ALPN
// negotiation.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &chromeTransport{h2: h2, h1: h1}
}

// NewPlainTransport returns the default transport. Used for plain-HTTP dev
// stores and in tests against httptest servers, where TLS fingerprinting is
// pointless.
func NewPlainTransport() http.RoundTripper {
	return http.DefaultTransport
}

// chromeTransport wraps HTTP/2 and HTTP/1.1 transports with Chrome's TLS
// fingerprint.
type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip implements http.RoundTripper.
// Tries HTTP/2 first, falls back to HTTP/1.1 for servers without h2.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Context().Err() != nil {
		// Canceled or timed out; don't mask that with a second attempt.
		return nil, err
	}
	return t.h1.RoundTrip(req)
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
