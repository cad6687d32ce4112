//go:build proxytest1

// The tests in this package must run one at a time in separate "go test" invocations, because
// Go may cache the value of HTTP_PROXY. Each test has its own build tag.

package proxytest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/pkhttp"
)

func TestDefaultTransportUsesProxyEnvVars(t *testing.T) {
	targetURL := "http://badhost/url"

	// A minimal fake proxy that only records the request. If HTTP_PROXY were ignored, the client
	// would try to reach the nonexistent host directly and fail.
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(proxy *httptest.Server) {
		t.Setenv("HTTP_PROXY", proxy.URL)

		transport, _, err := pkhttp.NewHTTPTransport()
		require.NoError(t, err)

		client := &http.Client{Transport: transport}
		resp, err := client.Get(targetURL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, 200, resp.StatusCode)
		assert.Equal(t, 1, len(requestsCh))
		r := <-requestsCh
		assert.Equal(t, targetURL, r.Request.URL.String())
	})
}
