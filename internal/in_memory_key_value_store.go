package internal

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// InMemoryKeyValueStore is a map-backed key-value store. Its contents do not survive a restart.
type InMemoryKeyValueStore struct {
	data    map[string]ldvalue.Value
	loggers ldlog.Loggers
	sync.RWMutex
}

// NewInMemoryKeyValueStore creates an empty InMemoryKeyValueStore.
func NewInMemoryKeyValueStore(loggers ldlog.Loggers) *InMemoryKeyValueStore {
	return &InMemoryKeyValueStore{
		data:    make(map[string]ldvalue.Value),
		loggers: loggers,
	}
}

// Get returns the value stored under a key.
func (store *InMemoryKeyValueStore) Get(key string) (ldvalue.Value, bool, error) {
	store.RLock()
	defer store.RUnlock()
	value, ok := store.data[key]
	if !ok {
		store.loggers.Debugf("Key %q not found", key)
		return ldvalue.Null(), false, nil
	}
	return value, true, nil
}

// Set stores a value.
func (store *InMemoryKeyValueStore) Set(key string, value ldvalue.Value) error {
	store.Lock()
	store.data[key] = value
	store.Unlock()
	return nil
}

// Remove deletes a key.
func (store *InMemoryKeyValueStore) Remove(key string) error {
	store.Lock()
	delete(store.data, key)
	store.Unlock()
	return nil
}

// Close is a no-op; the contents stay readable.
func (store *InMemoryKeyValueStore) Close() error {
	return nil
}
