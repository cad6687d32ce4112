package pkclient

import (
	"github.com/pushkit/go-client-sdk/interfaces"
	"github.com/pushkit/go-client-sdk/pkactions"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/pkinapp"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// Config exposes advanced configuration options for the pushkit client.
//
// All of these settings are optional, so an empty Config struct is always valid. See the description of each
// field for the default behavior if it is not set.
//
// Some of the Config fields are actually factories for subcomponents of the SDK. The types of these fields
// are [subsystems.ComponentConfigurer]; the actual implementation types, which have methods for configuring
// that subcomponent, are normally provided by corresponding functions in the pkcomponents package. For
// instance, to set the Analytics field to a configuration in which events are batched for 10 seconds:
//
//	var config pkclient.Config
//	config.Analytics = pkcomponents.Analytics().BatchDelay(10 * time.Second)
type Config struct {
	// Provides configuration of action automation: schedules that perform named actions when their
	// triggers fire.
	//
	// If nil, the default is pkcomponents.ActionAutomation(), which only has the built-in actions.
	//
	//     // example: register an action and keep action schedules on disk
	//     config.ActionAutomation = pkcomponents.ActionAutomation().
	//         Action(openURL, "open_url_action").
	//         ScheduleStore(pksqlite.ActionScheduleStore().Path("pushkit.db"))
	ActionAutomation subsystems.ComponentConfigurer[pkactions.ManagerConfig]

	// Sets the SDK's behavior regarding analytics events.
	//
	// If nil, the default is pkcomponents.Analytics(); see that method for an explanation of how to
	// further configure event delivery. You may also turn off event delivery using pkcomponents.NoAnalytics().
	//
	// If Offline is set to true, then event delivery is always off and Analytics is ignored.
	//
	//     // example: keep events on disk between runs
	//     config.Analytics = pkcomponents.Analytics().EventStore(pksqlite.EventStore().Path("events.db"))
	Analytics subsystems.ComponentConfigurer[pkevents.EventManager]

	// Provides configuration of application metadata. See interfaces.ApplicationInfo.
	//
	// The application version is used by version triggers and audience version ranges, and the
	// locale by audience language checks and remote data requests.
	ApplicationInfo interfaces.ApplicationInfo

	// Sets the implementation of the key-value store that holds the SDK's persistent state: the
	// batch policy overrides, the tag-group mutation queues and the remote data bookkeeping.
	//
	// If nil, the default is pkcomponents.InMemoryDataStore(), so nothing survives a restart.
	//
	//     // example: use a SQLite database file
	//     config.DataStore = pksqlite.DataStore().Path("pushkit.db")
	DataStore subsystems.ComponentConfigurer[subsystems.KeyValueStore]

	// Provides configuration of the SDK's network connection behavior.
	//
	// If nil, the default is pkcomponents.HTTPConfiguration(); see that method for an explanation of how to
	// further configure these options.
	//
	//     // example: set connection timeout to 8 seconds and use a proxy server
	//     config.HTTP = pkcomponents.HTTPConfiguration().ConnectTimeout(8 * time.Second).ProxyURL(myProxyURL)
	HTTP subsystems.ComponentConfigurer[subsystems.HTTPConfiguration]

	// Provides configuration of in-app messaging.
	//
	// If nil, the default is pkcomponents.InAppMessaging(). Messages can only be displayed for the
	// display types that have an adapter factory.
	InAppMessaging subsystems.ComponentConfigurer[pkinapp.ManagerConfig]

	// Provides configuration of the SDK's logging behavior.
	//
	// If nil, the default is pkcomponents.Logging(); see that method for an explanation of how to
	// further configure logging behavior. The other option is pkcomponents.NoLogging().
	//
	//     // example: enable logging only for Warn level and above
	//     config.Logging = pkcomponents.Logging().MinLevel(ldlog.Warn)
	Logging subsystems.ComponentConfigurer[subsystems.LoggingConfiguration]

	// Sets whether this client is offline. An offline client will not make any network connections:
	// no events are uploaded, no remote data is fetched and tag-group lookups are disabled. Schedules
	// created by the application still run.
	Offline bool

	// Sets the implementation of RemoteDataSource for receiving remote data payloads.
	//
	// If nil, the default is pkcomponents.PollingRemoteData(). Other options include
	// pkcomponents.NoRemoteData() and pkfiledata.DataSource().
	//
	// If Offline is set to true, then RemoteData is ignored.
	RemoteData subsystems.ComponentConfigurer[subsystems.RemoteDataSource]

	// Provides configuration of custom service base URIs.
	//
	// Set this field only if you want to specify non-default values for any of the URIs. You may set
	// individual values such as Analytics, or use the helper method pkcomponents.ProxyEndpoints().
	ServiceEndpoints interfaces.ServiceEndpoints
}
