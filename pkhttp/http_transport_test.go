package pkhttp

import (
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// See also: proxytest/http_transport_proxy_test.go

func TestDefaultTransportDoesNotAcceptSelfSignedCert(t *testing.T) {
	httphelpers.WithSelfSignedServer(httphelpers.HandlerWithStatus(200),
		func(server *httptest.Server, certData []byte, certs *x509.CertPool) {
			transport, _, err := NewHTTPTransport()
			require.NoError(t, err)

			client := &http.Client{Transport: transport}
			_, err = client.Get(server.URL)
			require.Error(t, err)
		})
}

func TestCanAcceptSelfSignedCertWithCA(t *testing.T) {
	httphelpers.WithSelfSignedServer(httphelpers.HandlerWithStatus(200),
		func(server *httptest.Server, certData []byte, certs *x509.CertPool) {
			transport, _, err := NewHTTPTransport(CACertOption(certData))
			require.NoError(t, err)

			client := &http.Client{Transport: transport}
			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, 200, resp.StatusCode)
		})
}

func TestCanAcceptSelfSignedCertWithCAFile(t *testing.T) {
	httphelpers.WithSelfSignedServer(httphelpers.HandlerWithStatus(200),
		func(server *httptest.Server, certData []byte, certs *x509.CertPool) {
			certFile := filepath.Join(t.TempDir(), "cert.pem")
			require.NoError(t, os.WriteFile(certFile, certData, 0600))

			transport, _, err := NewHTTPTransport(CACertFileOption(certFile))
			require.NoError(t, err)

			client := &http.Client{Transport: transport}
			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, 200, resp.StatusCode)
		})
}

func TestErrorForNonexistentCertFile(t *testing.T) {
	_, _, err := NewHTTPTransport(CACertFileOption(filepath.Join(t.TempDir(), "missing.pem")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't read CA certificate file")
}

func TestErrorForBadCertData(t *testing.T) {
	_, _, err := NewHTTPTransport(CACertOption([]byte("sorry")))
	require.Error(t, err)
	assert.ErrorIs(t, err, errInvalidCACert)
}

func TestDefaultTransportSettings(t *testing.T) {
	transport, dialer, err := NewHTTPTransport()
	require.NoError(t, err)
	assert.Equal(t, reflect.ValueOf(http.ProxyFromEnvironment).Pointer(), reflect.ValueOf(transport.Proxy).Pointer())
	assert.Equal(t, 100, transport.MaxIdleConns)
	assert.Equal(t, 90*time.Second, transport.IdleConnTimeout)
	assert.Equal(t, DefaultConnectTimeout, dialer.Timeout)
	assert.Nil(t, transport.TLSClientConfig)
}

func TestCanSetConnectTimeout(t *testing.T) {
	_, dialer, err := NewHTTPTransport(ConnectTimeoutOption(700 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 700*time.Millisecond, dialer.Timeout)

	_, dialer, err = NewHTTPTransport(ConnectTimeoutOption(-1))
	require.NoError(t, err)
	assert.Equal(t, DefaultConnectTimeout, dialer.Timeout)
}

func TestCanSetProxyURL(t *testing.T) {
	proxyURL, err := url.Parse("https://fake-proxy")
	require.NoError(t, err)
	transport, _, err := NewHTTPTransport(ProxyOption(*proxyURL))
	require.NoError(t, err)
	require.NotNil(t, transport.Proxy)
	urlOut, err := transport.Proxy(&http.Request{})
	require.NoError(t, err)
	assert.Equal(t, proxyURL, urlOut)
}
