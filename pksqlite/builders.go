package pksqlite

import (
	"errors"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// DefaultPath is the database file used when no path is configured.
const DefaultPath = "pushkit.db"

var errEmptyPath = errors.New("pksqlite: database path must not be empty")

// StoreBuilder holds the settings shared by the SQLite store builders.
type StoreBuilder struct {
	path string
}

func (b *StoreBuilder) open() (*Database, error) {
	if b.path == "" {
		return nil, errEmptyPath
	}
	return Open(b.path)
}

// DataStoreBuilder configures a SQLite-backed KeyValueStore.
type DataStoreBuilder struct {
	StoreBuilder
}

// DataStore returns a configurable builder for a SQLite KeyValueStore, for use as the data store in
// the client Config.
func DataStore() *DataStoreBuilder {
	return &DataStoreBuilder{StoreBuilder{path: DefaultPath}}
}

// Path sets the database file.
func (b *DataStoreBuilder) Path(path string) *DataStoreBuilder {
	b.path = path
	return b
}

// Build is called internally by the SDK.
func (b *DataStoreBuilder) Build(subsystems.ClientContext) (subsystems.KeyValueStore, error) {
	d, err := b.open()
	if err != nil {
		return nil, err
	}
	return &kvStore{database: d, owned: true}, nil
}

// EventStoreBuilder configures a SQLite-backed analytics EventStore.
type EventStoreBuilder struct {
	StoreBuilder
}

// EventStore returns a configurable builder for a SQLite EventStore.
func EventStore() *EventStoreBuilder {
	return &EventStoreBuilder{StoreBuilder{path: DefaultPath}}
}

// Path sets the database file.
func (b *EventStoreBuilder) Path(path string) *EventStoreBuilder {
	b.path = path
	return b
}

// Build is called internally by the SDK.
func (b *EventStoreBuilder) Build(subsystems.ClientContext) (pkevents.EventStore, error) {
	d, err := b.open()
	if err != nil {
		return nil, err
	}
	return &eventStore{database: d, owned: true}, nil
}

// ScheduleStoreBuilder configures a SQLite-backed automation ScheduleStore.
type ScheduleStoreBuilder struct {
	StoreBuilder
	table     string
	cacheSize int
}

// ScheduleStore returns a configurable builder for a SQLite ScheduleStore holding in-app message
// schedules.
func ScheduleStore() *ScheduleStoreBuilder {
	return &ScheduleStoreBuilder{
		StoreBuilder: StoreBuilder{path: DefaultPath},
		table:        SchedulesTable,
		cacheSize:    DefaultScheduleCacheSize,
	}
}

// ActionScheduleStore returns a configurable builder for a SQLite ScheduleStore holding action
// schedules. It may share a database file with the other stores.
func ActionScheduleStore() *ScheduleStoreBuilder {
	b := ScheduleStore()
	b.table = ActionSchedulesTable
	return b
}

// Path sets the database file.
func (b *ScheduleStoreBuilder) Path(path string) *ScheduleStoreBuilder {
	b.path = path
	return b
}

// CacheSize sets the number of schedules kept in memory for reads by ID. Zero disables caching;
// negative values are treated as zero.
func (b *ScheduleStoreBuilder) CacheSize(size int) *ScheduleStoreBuilder {
	if size < 0 {
		size = 0
	}
	b.cacheSize = size
	return b
}

// Build is called internally by the SDK.
func (b *ScheduleStoreBuilder) Build(subsystems.ClientContext) (pkautomation.ScheduleStore, error) {
	d, err := b.open()
	if err != nil {
		return nil, err
	}
	s := d.newScheduleStore(b.table, b.cacheSize)
	s.owned = true
	return s, nil
}
