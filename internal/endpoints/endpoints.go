package endpoints

const (
	// DefaultAnalyticsBaseURI is the default base URI of the event collector.
	DefaultAnalyticsBaseURI = "https://combine.pushkit.io/"

	// DefaultRemoteDataBaseURI is the default base URI of the remote data service.
	DefaultRemoteDataBaseURI = "https://remote-data.pushkit.io/"

	// DefaultDeviceBaseURI is the default base URI of the device API.
	DefaultDeviceBaseURI = "https://device-api.pushkit.io/"

	// EventsRequestPath is the URL path for event batch uploads.
	EventsRequestPath = "/api/events"

	// RemoteDataRequestPathFormat is the URL path for remote data polling; the parameter is
	// the application key.
	RemoteDataRequestPathFormat = "/api/remote-data/app/%s/go"

	// ChannelTagsRequestPath is the URL path for channel tag-group mutations.
	ChannelTagsRequestPath = "/api/channels/tags"

	// NamedUserTagsRequestPath is the URL path for named-user tag-group mutations.
	NamedUserTagsRequestPath = "/api/named_users/tags"

	// TagGroupsLookupRequestPath is the URL path for tag-group lookups.
	TagGroupsLookupRequestPath = "/api/channels/tags-lookup"
)
