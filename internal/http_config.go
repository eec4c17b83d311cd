package internal

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultConnectTimeout is the connection timeout used when the configuration does not specify one.
const DefaultConnectTimeout = 3 * time.Second

// HTTPTransportOptions are the transport-level settings that the SDK applies to every HTTP client
// it creates.
type HTTPTransportOptions struct {
	ConnectTimeout time.Duration
	ProxyURL       *url.URL
	// CACertPool replaces the system root certificates when non-nil.
	CACertPool *x509.CertPool
}

// NewHTTPTransport creates a transport based on the SDK's HTTP configuration.
func NewHTTPTransport(options HTTPTransportOptions) *http.Transport {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 1 * time.Minute,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if options.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(options.ProxyURL)
	}
	if options.CACertPool != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: options.CACertPool, MinVersion: tls.VersionTLS12}
	}
	return transport
}

// NewHTTPClient creates an HTTP client with no overall request timeout, since streaming requests
// are long-lived. Components that need a deadline apply one through the request context.
func NewHTTPClient(options HTTPTransportOptions) *http.Client {
	return &http.Client{Transport: NewHTTPTransport(options)}
}
