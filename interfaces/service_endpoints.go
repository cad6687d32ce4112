package interfaces

// ServiceEndpoints allow configuration of custom service URIs.
//
// If you want to set non-default values for any of these fields, set the ServiceEndpoints field
// in the SDK's Config struct. You may set individual values such as RemoteData, or use the helper
// method pkcomponents.ProxyEndpoints().
type ServiceEndpoints struct {
	// Analytics is the base URI of the event collector.
	Analytics string
	// RemoteData is the base URI of the remote data service.
	RemoteData string
	// Device is the base URI of the device API, which handles tag-group uploads and lookups.
	Device string
}
