package endpoints

import (
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/interfaces"
)

// ServiceType is used internally to denote which endpoint a URI is for.
type ServiceType int

const (
	AnalyticsService  ServiceType = iota //nolint:revive // internal constant
	RemoteDataService ServiceType = iota //nolint:revive // internal constant
	DeviceService     ServiceType = iota //nolint:revive // internal constant
)

func (s ServiceType) String() string {
	switch s {
	case AnalyticsService:
		return "Analytics"
	case RemoteDataService:
		return "RemoteData"
	case DeviceService:
		return "Device"
	default:
		return "???"
	}
}

func anyCustom(serviceEndpoints interfaces.ServiceEndpoints) bool {
	return serviceEndpoints.Analytics != "" || serviceEndpoints.RemoteData != "" ||
		serviceEndpoints.Device != ""
}

func getCustom(serviceEndpoints interfaces.ServiceEndpoints, serviceType ServiceType) string {
	switch serviceType {
	case AnalyticsService:
		return serviceEndpoints.Analytics
	case RemoteDataService:
		return serviceEndpoints.RemoteData
	case DeviceService:
		return serviceEndpoints.Device
	default:
		return ""
	}
}

// IsCustom returns true if the service endpoint has been overridden with a non-default value.
func IsCustom(serviceEndpoints interfaces.ServiceEndpoints, serviceType ServiceType) bool {
	uri := getCustom(serviceEndpoints, serviceType)
	return uri != "" && strings.TrimSuffix(uri, "/") != strings.TrimSuffix(DefaultBaseURI(serviceType), "/")
}

// DefaultBaseURI returns the default base URI for the given kind of endpoint.
func DefaultBaseURI(serviceType ServiceType) string {
	switch serviceType {
	case AnalyticsService:
		return DefaultAnalyticsBaseURI
	case RemoteDataService:
		return DefaultRemoteDataBaseURI
	case DeviceService:
		return DefaultDeviceBaseURI
	default:
		return ""
	}
}

// SelectBaseURI is a helper for getting either a custom or a default URI for the given kind of endpoint.
//
// If some endpoints were customized but not this one, an error is logged and the default is used:
// that usually means a proxy configuration that forgot one of the services.
func SelectBaseURI(
	serviceEndpoints interfaces.ServiceEndpoints,
	serviceType ServiceType,
	loggers ldlog.Loggers,
) string {
	var configuredBaseURI string
	if anyCustom(serviceEndpoints) {
		configuredBaseURI = getCustom(serviceEndpoints, serviceType)
		if configuredBaseURI == "" {
			loggers.Errorf(
				"You have set custom ServiceEndpoints without specifying the %s base URI; connections may not work properly",
				serviceType,
			)
			configuredBaseURI = DefaultBaseURI(serviceType)
		}
	} else {
		configuredBaseURI = DefaultBaseURI(serviceType)
	}
	return strings.TrimRight(configuredBaseURI, "/")
}

// AddPath concatenates a subpath to a URL in a way that will not cause a double slash.
func AddPath(baseURI string, path string) string {
	return strings.TrimSuffix(baseURI, "/") + "/" + strings.TrimPrefix(path, "/")
}
