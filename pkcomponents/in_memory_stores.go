package pkcomponents

import (
	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

type inMemoryDataStoreFactory struct{}

// InMemoryDataStore returns the default key-value store factory. Persisted settings such as batch
// limits and tag-group history are lost when the process exits.
//
// Use pksqlite.DataStore() for a store that survives restarts.
func InMemoryDataStore() subsystems.ComponentConfigurer[subsystems.KeyValueStore] {
	return inMemoryDataStoreFactory{}
}

func (f inMemoryDataStoreFactory) Build(context subsystems.ClientContext) (subsystems.KeyValueStore, error) {
	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("InMemoryDataStore:")
	return internal.NewInMemoryKeyValueStore(loggers), nil
}

type inMemoryEventStoreFactory struct{}

// InMemoryEventStore returns the default event store factory. Events that have not been uploaded
// when the process exits are lost.
func InMemoryEventStore() subsystems.ComponentConfigurer[pkevents.EventStore] {
	return inMemoryEventStoreFactory{}
}

func (f inMemoryEventStoreFactory) Build(subsystems.ClientContext) (pkevents.EventStore, error) {
	return pkevents.NewInMemoryEventStore(), nil
}

type inMemoryScheduleStoreFactory struct{}

// InMemoryScheduleStore returns the default schedule store factory.
func InMemoryScheduleStore() subsystems.ComponentConfigurer[pkautomation.ScheduleStore] {
	return inMemoryScheduleStoreFactory{}
}

func (f inMemoryScheduleStoreFactory) Build(subsystems.ClientContext) (pkautomation.ScheduleStore, error) {
	return pkautomation.NewInMemoryScheduleStore(), nil
}
