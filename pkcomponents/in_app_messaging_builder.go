package pkcomponents

import (
	"fmt"
	"time"

	"github.com/pushkit/go-client-sdk/internal/retriable"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkinapp"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	// DefaultScheduleLimit is the default value for InAppMessagingBuilder.ScheduleLimit.
	DefaultScheduleLimit = pkautomation.DefaultScheduleLimit
	// DefaultDisplayInterval is the default value for InAppMessagingBuilder.DisplayInterval.
	DefaultDisplayInterval = pkinapp.DefaultDisplayInterval
	// DefaultPrepareRetries is the default value for InAppMessagingBuilder.PrepareRetries.
	DefaultPrepareRetries = pkautomation.DefaultPrepareRetries
	// DefaultPrepareRetryInterval is the default value for InAppMessagingBuilder.PrepareRetryInterval.
	DefaultPrepareRetryInterval = 30 * time.Second
)

// InAppMessagingBuilder provides methods for configuring in-app messaging.
//
// See InAppMessaging for usage.
type InAppMessagingBuilder struct {
	scheduleLimit        int
	displayInterval      time.Duration
	immediateDisplay     bool
	prepareRetries       int
	prepareRetryInterval time.Duration
	adapterFactories     map[pkinapp.DisplayType]pkinapp.AdapterFactory
	scheduleStore        subsystems.ComponentConfigurer[pkautomation.ScheduleStore]
}

// InAppMessaging returns a configuration builder for in-app messaging.
//
// The default configuration keeps schedules in memory and shows at most one message every
// DefaultDisplayInterval. Store the builder in Config.InAppMessaging:
//
//	config := pkclient.Config{
//	    InAppMessaging: pkcomponents.InAppMessaging().
//	        DisplayInterval(time.Minute).
//	        ScheduleStore(pksqlite.ScheduleStore().Path("pushkit.db")),
//	}
func InAppMessaging() *InAppMessagingBuilder {
	return &InAppMessagingBuilder{
		scheduleLimit:        DefaultScheduleLimit,
		displayInterval:      DefaultDisplayInterval,
		prepareRetries:       DefaultPrepareRetries,
		prepareRetryInterval: DefaultPrepareRetryInterval,
		adapterFactories:     make(map[pkinapp.DisplayType]pkinapp.AdapterFactory),
	}
}

// ScheduleLimit sets the maximum number of schedules that may exist at once. Scheduling beyond it
// fails with pkautomation.ErrScheduleLimitReached.
//
// The default value is DefaultScheduleLimit; the minimum is 1.
func (b *InAppMessagingBuilder) ScheduleLimit(limit int) *InAppMessagingBuilder {
	if limit < 1 {
		limit = 1
	}
	b.scheduleLimit = limit
	return b
}

// DisplayInterval sets the minimum time between the end of one message and the start of the next.
//
// The default value is DefaultDisplayInterval. Negative values are treated as zero.
func (b *InAppMessagingBuilder) DisplayInterval(interval time.Duration) *InAppMessagingBuilder {
	if interval < 0 {
		interval = 0
	}
	b.displayInterval = interval
	return b
}

// ImmediateDisplay makes every message display as soon as it is ready, even while another one is
// showing. The display interval is ignored.
func (b *InAppMessagingBuilder) ImmediateDisplay(immediate bool) *InAppMessagingBuilder {
	b.immediateDisplay = immediate
	return b
}

// PrepareRetries sets how many times a failed message preparation is retried before the schedule
// goes to the back of the preparation queue.
//
// The default value is DefaultPrepareRetries; the minimum is 1.
func (b *InAppMessagingBuilder) PrepareRetries(retries int) *InAppMessagingBuilder {
	if retries < 1 {
		retries = 1
	}
	b.prepareRetries = retries
	return b
}

// PrepareRetryInterval sets the delay before the first retry of a failed preparation. Later
// retries back off exponentially.
//
// The default value is DefaultPrepareRetryInterval.
func (b *InAppMessagingBuilder) PrepareRetryInterval(interval time.Duration) *InAppMessagingBuilder {
	if interval <= 0 {
		interval = DefaultPrepareRetryInterval
	}
	b.prepareRetryInterval = interval
	return b
}

// AdapterFactory registers the factory that creates display adapters for a display type. Messages
// of a type with no factory are skipped.
func (b *InAppMessagingBuilder) AdapterFactory(
	displayType pkinapp.DisplayType,
	factory pkinapp.AdapterFactory,
) *InAppMessagingBuilder {
	if factory == nil {
		delete(b.adapterFactories, displayType)
	} else {
		b.adapterFactories[displayType] = factory
	}
	return b
}

// ScheduleStore sets the store that holds message schedules.
//
// The default is InMemoryScheduleStore(). Use pksqlite.ScheduleStore() to keep schedules across
// restarts.
func (b *InAppMessagingBuilder) ScheduleStore(
	storeConfigurer subsystems.ComponentConfigurer[pkautomation.ScheduleStore],
) *InAppMessagingBuilder {
	b.scheduleStore = storeConfigurer
	return b
}

// Build is called by the SDK to collect the in-app messaging configuration. The client adds the
// event recorder and the audience checker before it creates the manager.
func (b *InAppMessagingBuilder) Build(context subsystems.ClientContext) (pkinapp.ManagerConfig, error) {
	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("InAppMessaging:")

	storeConfigurer := b.scheduleStore
	if storeConfigurer == nil {
		storeConfigurer = InMemoryScheduleStore()
	}
	store, err := storeConfigurer.Build(context)
	if err != nil {
		return pkinapp.ManagerConfig{}, fmt.Errorf("creating schedule store: %w", err)
	}

	config := pkinapp.ManagerConfig{
		Store:            store,
		ScheduleLimit:    b.scheduleLimit,
		DisplayInterval:  b.displayInterval,
		AdapterFactories: make(map[pkinapp.DisplayType]pkinapp.AdapterFactory, len(b.adapterFactories)),
		PrepareRetries:   b.prepareRetries,
		PrepareBackoff: retriable.Backoff{
			Initial:    b.prepareRetryInterval,
			Max:        4 * b.prepareRetryInterval,
			Multiplier: 2,
		},
		Loggers: loggers,
	}
	for displayType, factory := range b.adapterFactories {
		config.AdapterFactories[displayType] = factory
	}
	if b.immediateDisplay {
		config.DisplayCoordinator = pkinapp.ImmediateDisplayCoordinator{}
	}
	return config, nil
}
