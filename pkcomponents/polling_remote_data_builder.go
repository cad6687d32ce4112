package pkcomponents

import (
	"errors"
	"time"

	"github.com/pushkit/go-client-sdk/internal/endpoints"
	"github.com/pushkit/go-client-sdk/internal/remotedata"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	// DefaultRemoteDataPollInterval is the default value for PollingRemoteDataBuilder.PollInterval.
	DefaultRemoteDataPollInterval = 10 * time.Minute
	// MinimumRemoteDataPollInterval is the smallest allowed PollingRemoteDataBuilder.PollInterval.
	MinimumRemoteDataPollInterval = 30 * time.Second
)

var errNoRemoteDataSink = errors.New("remote data source was created without an update sink")

// PollingRemoteDataBuilder provides methods for configuring the polling remote data source.
//
// See PollingRemoteData for usage.
type PollingRemoteDataBuilder struct {
	pollInterval time.Duration
}

// PollingRemoteData returns a configurable factory for getting remote data by polling.
//
// This is the default remote data source. The SDK makes an HTTP request to the remote data service
// at regular intervals; HTTP caching avoids downloading payloads that have not changed.
//
//	config := pkclient.Config{
//	    RemoteData: pkcomponents.PollingRemoteData().PollInterval(30 * time.Minute),
//	}
func PollingRemoteData() *PollingRemoteDataBuilder {
	return &PollingRemoteDataBuilder{
		pollInterval: DefaultRemoteDataPollInterval,
	}
}

// PollInterval sets the interval at which the SDK will poll for remote data.
//
// The default value is DefaultRemoteDataPollInterval. Values less than
// MinimumRemoteDataPollInterval are set to the minimum.
func (b *PollingRemoteDataBuilder) PollInterval(pollInterval time.Duration) *PollingRemoteDataBuilder {
	if pollInterval < MinimumRemoteDataPollInterval {
		b.pollInterval = MinimumRemoteDataPollInterval
	} else {
		b.pollInterval = pollInterval
	}
	return b
}

// Used in tests to skip parameter validation.
//
//nolint:unused // it is used in tests
func (b *PollingRemoteDataBuilder) forcePollInterval(
	pollInterval time.Duration,
) *PollingRemoteDataBuilder {
	b.pollInterval = pollInterval
	return b
}

// Build is called internally by the SDK.
func (b *PollingRemoteDataBuilder) Build(context subsystems.ClientContext) (subsystems.RemoteDataSource, error) {
	sink := context.GetRemoteDataUpdateSink()
	if sink == nil {
		return nil, errNoRemoteDataSink
	}
	configuredBaseURI := endpoints.SelectBaseURI(
		context.GetServiceEndpoints(),
		endpoints.RemoteDataService,
		context.GetLogging().Loggers,
	)
	cfg := remotedata.PollingConfig{
		BaseURI:      configuredBaseURI,
		PollInterval: b.pollInterval,
	}
	return remotedata.NewPollingSource(context, sink, cfg), nil
}

type nullRemoteDataFactory struct{}

// NoRemoteData returns a configuration object that turns off remote data. No in-app messages are
// received from the server; messages can still be scheduled by the application.
//
//	config := pkclient.Config{
//	    RemoteData: pkcomponents.NoRemoteData(),
//	}
func NoRemoteData() subsystems.ComponentConfigurer[subsystems.RemoteDataSource] {
	return nullRemoteDataFactory{}
}

func (f nullRemoteDataFactory) Build(subsystems.ClientContext) (subsystems.RemoteDataSource, error) {
	return remotedata.NewNullSource(), nil
}
