package fscomponents

import (
	"crypto/x509"
	"errors"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/flagsync/go-client-sdk/internal"
	"github.com/flagsync/go-client-sdk/subsystems"
)

// DefaultConnectTimeout is the HTTP connection timeout that is used if HTTPConfigurationBuilder.ConnectTimeout
// is not set.
const DefaultConnectTimeout = internal.DefaultConnectTimeout

// HTTPConfigurationBuilder contains methods for configuring the SDK's networking behavior.
//
// If you want to set non-default values for any of these properties, create a builder with
// fscomponents.HTTPConfiguration(), change its properties with the HTTPConfigurationBuilder methods, and
// store it in Config.HTTP:
//
//	config := fsclient.Config{
//	    HTTP: fscomponents.HTTPConfiguration().
//	        ConnectTimeout(3 * time.Second).
//	        ProxyURL(proxyURL),
//	}
type HTTPConfigurationBuilder struct {
	inited            bool
	connectTimeout    time.Duration
	httpClientFactory func() *http.Client
	proxyURL          *url.URL
	caCerts           *x509.CertPool
	userAgent         string
	wrapperIdentifier string
	err               error
}

// HTTPConfiguration returns a configuration builder for the SDK's HTTP configuration.
//
//	config := fsclient.Config{
//	    HTTP: fscomponents.HTTPConfiguration().
//	        ConnectTimeout(3 * time.Second).
//	        ProxyURL(proxyURL),
//	}
func HTTPConfiguration() *HTTPConfigurationBuilder {
	b := &HTTPConfigurationBuilder{}
	b.checkValid()
	return b
}

func (b *HTTPConfigurationBuilder) checkValid() bool {
	if b == nil {
		return false
	}
	if !b.inited {
		b.connectTimeout = DefaultConnectTimeout
		b.inited = true
	}
	return true
}

// CACert specifies a CA certificate to be added to the trusted root CA list for HTTPS requests.
//
// If the certificate data is invalid, the SDK client will fail to start.
func (b *HTTPConfigurationBuilder) CACert(certData []byte) *HTTPConfigurationBuilder {
	if b.checkValid() && b.err == nil {
		if b.caCerts == nil {
			b.caCerts = x509.NewCertPool()
		}
		if !b.caCerts.AppendCertsFromPEM(certData) {
			b.err = errors.New("invalid CA certificate data")
		}
	}
	return b
}

// CACertFile specifies a CA certificate to be added to the trusted root CA list for HTTPS requests,
// reading the certificate data from a file in PEM format.
//
// If the file cannot be read or the data is invalid, the SDK client will fail to start.
func (b *HTTPConfigurationBuilder) CACertFile(filePath string) *HTTPConfigurationBuilder {
	if b.checkValid() && b.err == nil {
		bytes, err := os.ReadFile(filePath) //nolint:gosec // G304: reading a file the application named
		if err != nil {
			b.err = err
			return b
		}
		return b.CACert(bytes)
	}
	return b
}

// ConnectTimeout sets the maximum amount of time to wait for each connection to be made.
//
// The default value is DefaultConnectTimeout. A zero or negative value selects the default.
func (b *HTTPConfigurationBuilder) ConnectTimeout(connectTimeout time.Duration) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if connectTimeout <= 0 {
			b.connectTimeout = DefaultConnectTimeout
		} else {
			b.connectTimeout = connectTimeout
		}
	}
	return b
}

// HTTPClientFactory specifies a function for creating each HTTP client instance that is used by the SDK.
//
// If you use this option, it overrides any other settings that you may have specified with
// ConnectTimeout, ProxyURL or CACert; you are responsible for setting up any desired custom
// configuration on the HTTP client. The SDK may modify the client properties after the client is
// created, for instance to add caching, but will not replace the underlying Transport.
//
// Streaming connections are long-lived, so the client should not have an overall Timeout.
func (b *HTTPConfigurationBuilder) HTTPClientFactory(httpClientFactory func() *http.Client) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.httpClientFactory = httpClientFactory
	}
	return b
}

// ProxyURL specifies a proxy URL to be used for all requests. This overrides any setting of the
// HTTP_PROXY, HTTPS_PROXY, or NO_PROXY environment variables.
func (b *HTTPConfigurationBuilder) ProxyURL(proxyURL url.URL) *HTTPConfigurationBuilder {
	if b.checkValid() {
		u := proxyURL
		b.proxyURL = &u
	}
	return b
}

// UserAgent specifies an additional User-Agent header value to send with HTTP requests.
func (b *HTTPConfigurationBuilder) UserAgent(userAgent string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.userAgent = userAgent
	}
	return b
}

// Wrapper allows wrapper libraries to set an identifying name for the wrapper being used.
//
// This will be sent in request headers during requests to the FlagSync servers to allow recording
// metrics on the usage of these wrapper libraries.
func (b *HTTPConfigurationBuilder) Wrapper(wrapperName, wrapperVersion string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if wrapperName == "" || wrapperVersion == "" {
			b.wrapperIdentifier = wrapperName
		} else {
			b.wrapperIdentifier = wrapperName + "/" + wrapperVersion
		}
	}
	return b
}

// Build is called internally by the SDK.
func (b *HTTPConfigurationBuilder) Build(
	clientContext subsystems.ClientContext,
) (subsystems.HTTPConfiguration, error) {
	if !b.checkValid() {
		defaults := HTTPConfigurationBuilder{}
		return defaults.Build(clientContext)
	}
	if b.err != nil {
		return subsystems.HTTPConfiguration{}, b.err
	}

	headers := make(http.Header)
	userAgent := "GoClient/" + internal.SDKVersion
	if b.userAgent != "" {
		userAgent = userAgent + " " + b.userAgent
	}
	headers.Set("User-Agent", userAgent)
	if b.wrapperIdentifier != "" {
		headers.Add("X-FlagSync-Wrapper", b.wrapperIdentifier)
	}

	clientFactory := b.httpClientFactory
	if clientFactory == nil {
		options := internal.HTTPTransportOptions{
			ConnectTimeout: b.connectTimeout,
			ProxyURL:       b.proxyURL,
			CACertPool:     b.caCerts,
		}
		clientFactory = func() *http.Client {
			return internal.NewHTTPClient(options)
		}
	}

	return subsystems.HTTPConfiguration{
		DefaultHeaders:   headers,
		CreateHTTPClient: clientFactory,
	}, nil
}
