package pkcomponents

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/pkhttp"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	// DefaultConnectTimeout is the default value for HTTPConfigurationBuilder.ConnectTimeout.
	DefaultConnectTimeout = 3 * time.Second
	// DefaultRequestTimeout is the default value for HTTPConfigurationBuilder.RequestTimeout.
	DefaultRequestTimeout = 30 * time.Second

	appKeyHeader  = "X-PK-App-Key"
	wrapperHeader = "X-PK-Wrapper"
)

var errEmptyHeaderName = errors.New("HTTP header name must not be empty")

// HTTPConfigurationBuilder contains methods for configuring the SDK's networking behavior.
//
// If you want to set non-default values for any of these properties, create a builder with
// pkcomponents.HTTPConfiguration(), change its properties with the HTTPConfigurationBuilder methods,
// and store it in Config.HTTP:
//
//	config := pkclient.Config{
//	    HTTP: pkcomponents.HTTPConfiguration().
//	        ConnectTimeout(3 * time.Second).
//	        ProxyURL(proxyURL),
//	}
type HTTPConfigurationBuilder struct {
	inited            bool
	connectTimeout    time.Duration
	requestTimeout    time.Duration
	httpClientFactory func() *http.Client
	headers           http.Header
	proxyURL          *url.URL
	caCerts           [][]byte
	caCertFiles       []string
	userAgent         string
	wrapperIdentifier string
}

// HTTPConfiguration returns a configuration builder for the SDK's HTTP configuration.
//
//	config := pkclient.Config{
//	    HTTP: pkcomponents.HTTPConfiguration().ConnectTimeout(5 * time.Second),
//	}
func HTTPConfiguration() *HTTPConfigurationBuilder {
	return &HTTPConfigurationBuilder{}
}

func (b *HTTPConfigurationBuilder) checkValid() bool {
	if b == nil {
		internal.LogErrorNilPointerMethod("HTTPConfigurationBuilder")
		return false
	}
	if !b.inited {
		b.connectTimeout = DefaultConnectTimeout
		b.requestTimeout = DefaultRequestTimeout
		b.headers = make(http.Header)
		b.inited = true
	}
	return true
}

// CACert specifies a CA certificate to be added to the trusted root CA list for HTTPS requests.
//
// If the certificate data is invalid, Build returns an error and the client will not start.
func (b *HTTPConfigurationBuilder) CACert(certData []byte) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.caCerts = append(b.caCerts, certData)
	}
	return b
}

// CACertFile specifies a CA certificate file to be added to the trusted root CA list for HTTPS
// requests.
//
// If the file cannot be read or the data is invalid, Build returns an error.
func (b *HTTPConfigurationBuilder) CACertFile(filePath string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		b.caCertFiles = append(b.caCertFiles, filePath)
	}
	return b
}

// ConnectTimeout sets the maximum amount of time to wait for each connection to be made.
//
// The default value is DefaultConnectTimeout.
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

// RequestTimeout sets the maximum time a request may take, including reading the response body.
//
// The default value is DefaultRequestTimeout.
func (b *HTTPConfigurationBuilder) RequestTimeout(requestTimeout time.Duration) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if requestTimeout <= 0 {
			b.requestTimeout = DefaultRequestTimeout
		} else {
			b.requestTimeout = requestTimeout
		}
	}
	return b
}

// Header specifies a custom HTTP header that should be added to all SDK requests.
//
// If a value is empty, the header is removed. Headers the SDK sets for itself take precedence.
func (b *HTTPConfigurationBuilder) Header(name string, value string) *HTTPConfigurationBuilder {
	if b.checkValid() {
		if value == "" {
			b.headers.Del(name)
		} else {
			b.headers.Set(name, value)
		}
	}
	return b
}

// HTTPClientFactory specifies a function for creating each HTTP client instance that is used by
// the SDK.
//
// If you use this option, it overrides every other option of this builder except headers: the SDK
// uses the clients as they are.
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
// This will be sent in request headers during requests to the pushkit servers to allow recording
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

	headers := make(http.Header)
	for name, values := range b.headers {
		if strings.TrimSpace(name) == "" {
			return subsystems.HTTPConfiguration{}, errEmptyHeaderName
		}
		headers[name] = values
	}
	if clientContext.GetAppKey() != "" {
		headers.Set(appKeyHeader, clientContext.GetAppKey())
	}
	userAgent := "GoClient/" + internal.SDKVersion
	if b.userAgent != "" {
		userAgent = userAgent + " " + b.userAgent
	}
	headers.Set("User-Agent", userAgent)
	if b.wrapperIdentifier != "" {
		headers.Set(wrapperHeader, b.wrapperIdentifier)
	}

	transportOpts := []pkhttp.TransportOption{
		pkhttp.ConnectTimeoutOption(b.connectTimeout),
	}
	for _, certData := range b.caCerts {
		transportOpts = append(transportOpts, pkhttp.CACertOption(certData))
	}
	for _, certFile := range b.caCertFiles {
		transportOpts = append(transportOpts, pkhttp.CACertFileOption(certFile))
	}
	if b.proxyURL != nil {
		transportOpts = append(transportOpts, pkhttp.ProxyOption(*b.proxyURL))
	}

	clientFactory := b.httpClientFactory
	if clientFactory == nil {
		// Validate the transport options now so that a bad certificate stops the client from starting.
		if _, _, err := pkhttp.NewHTTPTransport(transportOpts...); err != nil {
			return subsystems.HTTPConfiguration{}, err
		}
		requestTimeout := b.requestTimeout
		clientFactory = func() *http.Client {
			client := &http.Client{Timeout: requestTimeout}
			if transport, _, err := pkhttp.NewHTTPTransport(transportOpts...); err == nil {
				client.Transport = transport
			}
			return client
		}
	}

	return subsystems.HTTPConfiguration{
		DefaultHeaders:   headers,
		CreateHTTPClient: clientFactory,
	}, nil
}
