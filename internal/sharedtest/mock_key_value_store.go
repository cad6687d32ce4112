package sharedtest

import (
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// MockKeyValueStore is a map-backed KeyValueStore whose operations can be made to fail.
type MockKeyValueStore struct {
	data     map[string]ldvalue.Value
	fakeErr  error
	closed   bool
	setCount int
	lock     sync.Mutex
}

var _ subsystems.KeyValueStore = (*MockKeyValueStore)(nil)

// NewMockKeyValueStore creates an empty MockKeyValueStore.
func NewMockKeyValueStore() *MockKeyValueStore {
	return &MockKeyValueStore{data: make(map[string]ldvalue.Value)}
}

// SetFakeError causes all subsequent operations to return this error, or clears it if nil.
func (m *MockKeyValueStore) SetFakeError(err error) {
	m.lock.Lock()
	m.fakeErr = err
	m.lock.Unlock()
}

// Snapshot returns a copy of the current contents.
func (m *MockKeyValueStore) Snapshot() map[string]ldvalue.Value {
	m.lock.Lock()
	defer m.lock.Unlock()
	return maps.Clone(m.data)
}

// SetCount returns the number of successful Set calls.
func (m *MockKeyValueStore) SetCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.setCount
}

// IsClosed returns true if Close has been called.
func (m *MockKeyValueStore) IsClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

func (m *MockKeyValueStore) Get(key string) (ldvalue.Value, bool, error) { //nolint:revive
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeErr != nil {
		return ldvalue.Null(), false, m.fakeErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MockKeyValueStore) Set(key string, value ldvalue.Value) error { //nolint:revive
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeErr != nil {
		return m.fakeErr
	}
	m.data[key] = value
	m.setCount++
	return nil
}

func (m *MockKeyValueStore) Remove(key string) error { //nolint:revive
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.fakeErr != nil {
		return m.fakeErr
	}
	delete(m.data, key)
	return nil
}

func (m *MockKeyValueStore) Close() error { //nolint:revive
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
	return nil
}
