package internal

import (
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPTransportDefaults(t *testing.T) {
	transport := NewHTTPTransport(HTTPTransportOptions{})
	require.NotNil(t, transport.DialContext)
	assert.NotNil(t, transport.Proxy)
}

func TestNewHTTPTransportUsesProxyURL(t *testing.T) {
	proxyURL, _ := url.Parse("http://my-proxy:8080")
	transport := NewHTTPTransport(HTTPTransportOptions{ProxyURL: proxyURL})
	req, _ := http.NewRequest("GET", "http://example", nil)
	got, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, proxyURL, got)
}

func TestNewHTTPClientCanMakeRequests(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(204), func(server *httptest.Server) {
		client := NewHTTPClient(HTTPTransportOptions{})
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, 204, resp.StatusCode)
	})
}

func TestNewHTTPTransportUsesCACertPool(t *testing.T) {
	httphelpers.WithSelfSignedServer(httphelpers.HandlerWithStatus(200),
		func(server *httptest.Server, certData []byte, certs *x509.CertPool) {
			client := NewHTTPClient(HTTPTransportOptions{CACertPool: certs})
			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, 200, resp.StatusCode)

			_, err = NewHTTPClient(HTTPTransportOptions{}).Get(server.URL)
			assert.Error(t, err)
		})
}
