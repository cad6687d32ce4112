package sharedtest

import (
	"sync"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// SingleComponentConfigurer is a test implementation of ComponentConfigurer that always returns the
// same pre-existing instance.
type SingleComponentConfigurer[T any] struct {
	Instance T
}

func (c SingleComponentConfigurer[T]) Build(context subsystems.ClientContext) (T, error) { //nolint:revive
	return c.Instance, nil
}

// ComponentConfigurerThatReturnsError is a test implementation of ComponentConfigurer that always
// returns an error.
type ComponentConfigurerThatReturnsError[T any] struct {
	Err error
}

func (c ComponentConfigurerThatReturnsError[T]) Build(context subsystems.ClientContext) (T, error) { //nolint:revive
	var empty T
	return empty, c.Err
}

// MockRemoteDataSink captures the payload batches delivered by a RemoteDataSource.
type MockRemoteDataSink struct {
	UpdatesCh chan []subsystems.RemoteDataPayload
	last      []subsystems.RemoteDataPayload
	lock      sync.Mutex
}

// NewMockRemoteDataSink creates a MockRemoteDataSink.
func NewMockRemoteDataSink() *MockRemoteDataSink {
	return &MockRemoteDataSink{UpdatesCh: make(chan []subsystems.RemoteDataPayload, 10)}
}

func (m *MockRemoteDataSink) Update(payloads []subsystems.RemoteDataPayload) { //nolint:revive
	m.lock.Lock()
	m.last = payloads
	m.lock.Unlock()
	m.UpdatesCh <- payloads
}

// Last returns the most recently delivered batch.
func (m *MockRemoteDataSink) Last() []subsystems.RemoteDataPayload {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.last
}

// MockRemoteDataSource is a RemoteDataSource whose behavior is controlled by the test.
type MockRemoteDataSource struct {
	Initialized bool
	StartFn     func(chan<- struct{})
	closed      bool
	lock        sync.Mutex
}

func (m *MockRemoteDataSource) IsInitialized() bool { //nolint:revive
	return m.Initialized
}

func (m *MockRemoteDataSource) Start(closeWhenReady chan<- struct{}) { //nolint:revive
	if m.StartFn == nil {
		close(closeWhenReady)
		return
	}
	m.StartFn(closeWhenReady)
}

func (m *MockRemoteDataSource) Close() error { //nolint:revive
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
	return nil
}

// IsClosed returns true if Close has been called.
func (m *MockRemoteDataSource) IsClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}
