package pkcomponents

import "github.com/pushkit/go-client-sdk/interfaces"

// ProxyEndpoints specifies a single base URI for a proxy that serves every pushkit service.
//
// Store this value in the ServiceEndpoints field of your SDK configuration. For example:
//
//	config := pkclient.Config{
//	    ServiceEndpoints: pkcomponents.ProxyEndpoints("http://my-proxy:8080"),
//	}
//
// If the proxy does not forward analytics events and you want them sent directly to pushkit
// instead, use ProxyEndpointsWithoutAnalytics.
func ProxyEndpoints(proxyBaseURI string) interfaces.ServiceEndpoints {
	return interfaces.ServiceEndpoints{
		Analytics:  proxyBaseURI,
		RemoteData: proxyBaseURI,
		Device:     proxyBaseURI,
	}
}

// ProxyEndpointsWithoutAnalytics specifies a single base URI for a proxy that serves every pushkit
// service except analytics events, which keep their default endpoint.
func ProxyEndpointsWithoutAnalytics(proxyBaseURI string) interfaces.ServiceEndpoints {
	return interfaces.ServiceEndpoints{
		RemoteData: proxyBaseURI,
		Device:     proxyBaseURI,
	}
}
