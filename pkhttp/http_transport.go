package pkhttp

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultConnectTimeout is the connection timeout used when none is specified.
const DefaultConnectTimeout = 10 * time.Second

// DefaultKeepAlive is the keep-alive interval of the transport's dialer.
const DefaultKeepAlive = 1 * time.Minute

type transportExtraOptions struct {
	caCerts        *x509.CertPool
	connectTimeout time.Duration
	proxyURL       *url.URL
}

// TransportOption is the interface for optional configuration parameters that can be passed to
// NewHTTPTransport.
type TransportOption interface {
	apply(opts *transportExtraOptions) error
}

type connectTimeoutOption struct {
	timeout time.Duration
}

// ConnectTimeoutOption specifies the maximum time to wait for a TCP connection.
func ConnectTimeoutOption(timeout time.Duration) TransportOption {
	return connectTimeoutOption{timeout: timeout}
}

func (o connectTimeoutOption) apply(opts *transportExtraOptions) error {
	opts.connectTimeout = o.timeout
	return nil
}

type caCertOption struct {
	certData []byte
}

// CACertOption adds a CA certificate, in PEM format, to the set of trusted roots.
//
// The transport will still trust the system's default roots as well.
func CACertOption(certData []byte) TransportOption {
	return caCertOption{certData: certData}
}

func (o caCertOption) apply(opts *transportExtraOptions) error {
	return addCACert(opts, o.certData)
}

type caCertFileOption struct {
	filePath string
}

// CACertFileOption adds a CA certificate file, in PEM format, to the set of trusted roots.
func CACertFileOption(filePath string) TransportOption {
	return caCertFileOption{filePath: filePath}
}

func (o caCertFileOption) apply(opts *transportExtraOptions) error {
	bytes, err := os.ReadFile(o.filePath) //nolint:gosec // the path comes from the application configuration
	if err != nil {
		return fmt.Errorf("can't read CA certificate file: %w", err)
	}
	return addCACert(opts, bytes)
}

type proxyOption struct {
	url url.URL
}

// ProxyOption sends all requests through the given proxy. Without it, the transport uses the
// standard HTTP_PROXY and HTTPS_PROXY environment variables.
func ProxyOption(proxyURL url.URL) TransportOption {
	return proxyOption{url: proxyURL}
}

func (o proxyOption) apply(opts *transportExtraOptions) error {
	u := o.url
	opts.proxyURL = &u
	return nil
}

var errInvalidCACert = errors.New("invalid CA certificate data")

func addCACert(opts *transportExtraOptions, certData []byte) error {
	if opts.caCerts == nil {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		opts.caCerts = pool
	}
	if !opts.caCerts.AppendCertsFromPEM(certData) {
		return errInvalidCACert
	}
	return nil
}

// NewHTTPTransport creates a new HTTP transport with the given options.
//
// It also returns the net.Dialer the transport was built with, for callers that wrap the transport.
func NewHTTPTransport(options ...TransportOption) (*http.Transport, *net.Dialer, error) {
	extraOptions := transportExtraOptions{connectTimeout: DefaultConnectTimeout}
	for _, o := range options {
		if err := o.apply(&extraOptions); err != nil {
			return nil, nil, err
		}
	}
	if extraOptions.connectTimeout <= 0 {
		extraOptions.connectTimeout = DefaultConnectTimeout
	}
	dialer := &net.Dialer{
		Timeout:   extraOptions.connectTimeout,
		KeepAlive: DefaultKeepAlive,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if extraOptions.caCerts != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: extraOptions.caCerts, MinVersion: tls.VersionTLS12}
	}
	if extraOptions.proxyURL != nil {
		transport.Proxy = http.ProxyURL(extraOptions.proxyURL)
	}
	return transport, dialer, nil
}
