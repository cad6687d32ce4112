package pkcomponents

import (
	"fmt"
	"time"

	"github.com/pushkit/go-client-sdk/internal/endpoints"
	"github.com/pushkit/go-client-sdk/internal/retriable"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	// DefaultBatchDelay is the default value for AnalyticsBuilder.BatchDelay.
	DefaultBatchDelay = pkevents.DefaultBatchDelay
	// DefaultInboxCapacity is the default value for AnalyticsBuilder.InboxCapacity.
	DefaultInboxCapacity = pkevents.DefaultInboxCapacity
	// DefaultUploadRetries is the default value for AnalyticsBuilder.UploadRetries.
	DefaultUploadRetries = pkevents.DefaultUploadRetries
	// DefaultRetryInterval is the default value for AnalyticsBuilder.RetryInterval.
	DefaultRetryInterval = time.Second
	// MaxRetryInterval is the longest delay between retries of a failed upload.
	MaxRetryInterval = time.Minute
)

// AnalyticsBuilder provides methods for configuring analytics event storage and delivery.
//
// See Analytics for usage.
type AnalyticsBuilder struct {
	batchDelay      time.Duration
	inboxCapacity   int
	uploadRetries   int
	retryInterval   time.Duration
	uploadsDisabled bool
	eventStore      subsystems.ComponentConfigurer[pkevents.EventStore]
}

// Analytics returns a configuration builder for analytics events.
//
// The default configuration has analytics enabled, with events kept in memory until they are
// uploaded. If you want to customize this behavior, call this method to obtain a builder, change
// its properties with the AnalyticsBuilder methods, and store it in Config.Analytics:
//
//	config := pkclient.Config{
//	    Analytics: pkcomponents.Analytics().
//	        BatchDelay(5 * time.Second).
//	        EventStore(pksqlite.EventStore().Path("events.db")),
//	}
//
// To disable analytics events, use NoAnalytics instead of Analytics.
func Analytics() *AnalyticsBuilder {
	return &AnalyticsBuilder{
		batchDelay:    DefaultBatchDelay,
		inboxCapacity: DefaultInboxCapacity,
		uploadRetries: DefaultUploadRetries,
		retryInterval: DefaultRetryInterval,
	}
}

// BatchDelay sets how long a normal-priority event waits before an upload is attempted, so that
// events recorded close together go in one batch. High-priority events are uploaded right away
// and low-priority events wait for the maximum upload wait.
//
// The default value is DefaultBatchDelay. Negative values are treated as zero.
func (b *AnalyticsBuilder) BatchDelay(batchDelay time.Duration) *AnalyticsBuilder {
	if batchDelay < 0 {
		batchDelay = 0
	}
	b.batchDelay = batchDelay
	return b
}

// InboxCapacity sets the number of calls that can be waiting for the event manager before new
// events are dropped.
//
// The default value is DefaultInboxCapacity.
func (b *AnalyticsBuilder) InboxCapacity(capacity int) *AnalyticsBuilder {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	b.inboxCapacity = capacity
	return b
}

// UploadRetries sets the number of times a failed upload is retried before the manager waits for
// the next scheduled upload. Only network errors and recoverable HTTP statuses are retried.
//
// The default value is DefaultUploadRetries.
func (b *AnalyticsBuilder) UploadRetries(retries int) *AnalyticsBuilder {
	if retries < 0 {
		retries = 0
	}
	b.uploadRetries = retries
	return b
}

// RetryInterval sets the delay before the first retry of a failed upload. Later retries back off
// exponentially up to MaxRetryInterval.
//
// The default value is DefaultRetryInterval.
func (b *AnalyticsBuilder) RetryInterval(interval time.Duration) *AnalyticsBuilder {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	b.retryInterval = interval
	return b
}

// UploadsDisabled starts the event manager with uploads turned off. Events are still stored, and
// uploads can be turned on later with Client.SetAnalyticsEnabled.
func (b *AnalyticsBuilder) UploadsDisabled(disabled bool) *AnalyticsBuilder {
	b.uploadsDisabled = disabled
	return b
}

// EventStore sets the store that holds events until they are uploaded.
//
// The default is InMemoryEventStore(). Use pksqlite.EventStore() to keep events across restarts.
func (b *AnalyticsBuilder) EventStore(storeConfigurer subsystems.ComponentConfigurer[pkevents.EventStore]) *AnalyticsBuilder {
	b.eventStore = storeConfigurer
	return b
}

// Build is called by the SDK to create the event manager instance.
func (b *AnalyticsBuilder) Build(context subsystems.ClientContext) (pkevents.EventManager, error) {
	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("EventManager:")

	storeConfigurer := b.eventStore
	if storeConfigurer == nil {
		storeConfigurer = InMemoryEventStore()
	}
	store, err := storeConfigurer.Build(context)
	if err != nil {
		return nil, fmt.Errorf("creating event store: %w", err)
	}

	configuredBaseURI := endpoints.SelectBaseURI(
		context.GetServiceEndpoints(),
		endpoints.AnalyticsService,
		loggers,
	)
	httpConfig := context.GetHTTP()
	sender := pkevents.NewHTTPEventSender(
		httpConfig.CreateHTTPClient(),
		configuredBaseURI,
		httpConfig.DefaultHeaders,
		loggers,
		context.GetLogging().LogDataPayloads,
	)

	eventsConfig := pkevents.EventsConfiguration{
		Store:         store,
		Sender:        sender,
		Policy:        pkevents.NewBatchPolicy(context.GetDataStore(), loggers),
		KeyValueStore: context.GetDataStore(),
		BatchDelay:    b.batchDelay,
		InboxCapacity: b.inboxCapacity,
		MaxRetries:    b.uploadRetries,
		RetryBackoff: retriable.Backoff{
			Initial:    b.retryInterval,
			Max:        MaxRetryInterval,
			Multiplier: 2,
		},
		UploadsDisabled: b.uploadsDisabled,
		Loggers:         loggers,
	}
	if hd, ok := context.(hasAnalyticsDelegate); ok {
		eventsConfig.Delegate = hd.GetAnalyticsDelegate()
	}
	return pkevents.NewEventManager(eventsConfig), nil
}

type nullEventManagerFactory struct{}

// NoAnalytics returns a configuration object that disables analytics events.
//
// Storing this in Config.Analytics causes the SDK to discard all analytics events, regardless of
// any other configuration.
//
//	config := pkclient.Config{
//	    Analytics: pkcomponents.NoAnalytics(),
//	}
func NoAnalytics() subsystems.ComponentConfigurer[pkevents.EventManager] {
	return nullEventManagerFactory{}
}

func (f nullEventManagerFactory) Build(subsystems.ClientContext) (pkevents.EventManager, error) {
	return pkevents.NewNullEventManager(), nil
}
