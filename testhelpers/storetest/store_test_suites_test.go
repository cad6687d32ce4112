package storetest

import (
	"testing"

	"github.com/pushkit/go-client-sdk/internal/sharedtest"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// These run the suites against the in-memory reference implementations, so that we can distinguish
// between flaws in store implementations and flaws in the test logic.

func TestKeyValueStoreTestSuite(t *testing.T) {
	NewKeyValueStoreTestSuite(func() subsystems.ComponentConfigurer[subsystems.KeyValueStore] {
		return sharedtest.SingleComponentConfigurer[subsystems.KeyValueStore]{Instance: sharedtest.NewMockKeyValueStore()}
	}, nil).Run(t)
}

func TestKeyValueStoreTestSuitePersistence(t *testing.T) {
	store := sharedtest.NewMockKeyValueStore()
	NewKeyValueStoreTestSuite(func() subsystems.ComponentConfigurer[subsystems.KeyValueStore] {
		return sharedtest.SingleComponentConfigurer[subsystems.KeyValueStore]{Instance: reopenable{store}}
	}, func() error {
		for key := range store.Snapshot() {
			_ = store.Remove(key)
		}
		return nil
	}).Persistent(true).Run(t)
}

// reopenable ignores Close so that one mock store can stand in for a persistent database.
type reopenable struct {
	*sharedtest.MockKeyValueStore
}

func (reopenable) Close() error { return nil }

func TestEventStoreTestSuite(t *testing.T) {
	NewEventStoreTestSuite(func() subsystems.ComponentConfigurer[pkevents.EventStore] {
		return sharedtest.SingleComponentConfigurer[pkevents.EventStore]{Instance: pkevents.NewInMemoryEventStore()}
	}, nil).Run(t)
}

func TestScheduleStoreTestSuite(t *testing.T) {
	NewScheduleStoreTestSuite(func() subsystems.ComponentConfigurer[pkautomation.ScheduleStore] {
		return sharedtest.SingleComponentConfigurer[pkautomation.ScheduleStore]{Instance: pkautomation.NewInMemoryScheduleStore()}
	}, nil).Run(t)
}
