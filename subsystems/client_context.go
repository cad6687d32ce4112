package subsystems

import (
	"net/http"

	"github.com/pushkit/go-client-sdk/interfaces"
)

// ClientContext provides context information from the SDK client when creating other components.
//
// This is passed as a parameter to the Build methods of component configurers for KeyValueStore,
// RemoteDataSource, etc. The actual implementation type may contain other properties that are only
// relevant to the built-in SDK components and are therefore not part of the public interface. For
// test purposes you may use the simple struct type BasicClientContext.
type ClientContext interface {
	// GetAppKey returns the configured application key.
	GetAppKey() string

	// GetApplicationInfo returns the configuration for application metadata.
	GetApplicationInfo() interfaces.ApplicationInfo

	// GetHTTP returns the configured HTTPConfiguration.
	GetHTTP() HTTPConfiguration

	// GetLogging returns the configured LoggingConfiguration.
	GetLogging() LoggingConfiguration

	// GetOffline returns true if the client was configured to be completely offline.
	GetOffline() bool

	// GetServiceEndpoints returns the configuration for service URIs.
	GetServiceEndpoints() interfaces.ServiceEndpoints

	// GetDataStore returns the durable key-value store that components may use for small
	// persisted settings. It is nil only while the data store itself is being built.
	GetDataStore() KeyValueStore

	// GetRemoteDataUpdateSink returns the component that RemoteDataSource implementations use to
	// deliver payloads to the SDK.
	//
	// This component is only available when the SDK is creating a RemoteDataSource. Otherwise the
	// method returns nil.
	GetRemoteDataUpdateSink() RemoteDataUpdateSink
}

// BasicClientContext is the basic implementation of the ClientContext interface, not including any
// private fields that the SDK may use for implementation details.
type BasicClientContext struct {
	AppKey               string
	ApplicationInfo      interfaces.ApplicationInfo
	HTTP                 HTTPConfiguration
	Logging              LoggingConfiguration
	Offline              bool
	ServiceEndpoints     interfaces.ServiceEndpoints
	DataStore            KeyValueStore
	RemoteDataUpdateSink RemoteDataUpdateSink
}

func (b BasicClientContext) GetAppKey() string { return b.AppKey } //nolint:revive

func (b BasicClientContext) GetApplicationInfo() interfaces.ApplicationInfo { return b.ApplicationInfo } //nolint:revive

func (b BasicClientContext) GetHTTP() HTTPConfiguration { //nolint:revive
	ret := b.HTTP
	if ret.CreateHTTPClient == nil {
		ret.CreateHTTPClient = func() *http.Client {
			client := *http.DefaultClient
			return &client
		}
	}
	return ret
}

func (b BasicClientContext) GetLogging() LoggingConfiguration { return b.Logging } //nolint:revive

func (b BasicClientContext) GetOffline() bool { return b.Offline } //nolint:revive

func (b BasicClientContext) GetServiceEndpoints() interfaces.ServiceEndpoints { //nolint:revive
	return b.ServiceEndpoints
}

func (b BasicClientContext) GetDataStore() KeyValueStore { return b.DataStore } //nolint:revive

func (b BasicClientContext) GetRemoteDataUpdateSink() RemoteDataUpdateSink { //nolint:revive
	return b.RemoteDataUpdateSink
}
