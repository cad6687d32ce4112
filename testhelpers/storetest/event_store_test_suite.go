package storetest

import (
	"fmt"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v3/testbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// EventStoreTestSuite provides a configurable test suite for all implementations of
// pkevents.EventStore.
type EventStoreTestSuite struct {
	storeFactoryFn func() subsystems.ComponentConfigurer[pkevents.EventStore]
	clearDataFn    func() error
	persistent     bool
}

// NewEventStoreTestSuite creates an EventStoreTestSuite. The parameters have the same meaning as for
// NewKeyValueStoreTestSuite.
func NewEventStoreTestSuite(
	storeFactoryFn func() subsystems.ComponentConfigurer[pkevents.EventStore],
	clearDataFn func() error,
) *EventStoreTestSuite {
	return &EventStoreTestSuite{storeFactoryFn: storeFactoryFn, clearDataFn: clearDataFn}
}

// Persistent enables tests that verify events stored by one store instance are seen by a later one
// created from the same factory.
func (s *EventStoreTestSuite) Persistent(persistent bool) *EventStoreTestSuite {
	s.persistent = persistent
	return s
}

// Run runs the configured test suite.
func (s *EventStoreTestSuite) Run(t *testing.T) {
	s.runInternal(testbox.RealTest(t))
}

func (s *EventStoreTestSuite) runInternal(t testbox.TestingT) {
	t.Run("Append", s.runAppendTests)
	t.Run("Snapshot", s.runSnapshotTests)
	t.Run("Prune", s.runPruneTests)
	t.Run("Delete", s.runDeleteTests)
	if s.persistent {
		t.Run("persistence", s.runPersistenceTests)
	}
}

func (s *EventStoreTestSuite) withEmptyStore(t testbox.TestingT, action func(pkevents.EventStore)) {
	clearData(t, s.clearDataFn)
	withStore(t, s.storeFactoryFn(), action)
}

// Event times are truncated to milliseconds, the precision stores are required to keep.
func makeEvent(id string, priority pkevents.Priority, size int) pkevents.StoredEvent {
	body := make([]byte, size)
	for i := range body {
		body[i] = 'x'
	}
	return pkevents.StoredEvent{
		ID:        id,
		Type:      "custom_event",
		Priority:  priority,
		Time:      time.UnixMilli(time.Now().UnixMilli()),
		SessionID: "session",
		Body:      body,
		Size:      size,
	}
}

func storedIDs(events []pkevents.StoredEvent) []string {
	ret := make([]string, 0, len(events))
	for _, e := range events {
		ret = append(ret, e.ID)
	}
	return ret
}

func (s *EventStoreTestSuite) runAppendTests(t testbox.TestingT) {
	t.Run("empty store", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 0, count)
			size, err := store.Size()
			require.NoError(t, err)
			assert.Equal(t, 0, size)
		})
	})

	t.Run("count and size", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			require.NoError(t, store.Append(makeEvent("a", pkevents.PriorityNormal, 10)))
			require.NoError(t, store.Append(makeEvent("b", pkevents.PriorityHigh, 25)))
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 2, count)
			size, err := store.Size()
			require.NoError(t, err)
			assert.Equal(t, 35, size)
		})
	})

	t.Run("fields are preserved", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			e := makeEvent("a", pkevents.PriorityHigh, 5)
			require.NoError(t, store.Append(e))
			events, err := store.Snapshot(100)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, e.ID, events[0].ID)
			assert.Equal(t, e.Type, events[0].Type)
			assert.Equal(t, e.Priority, events[0].Priority)
			assert.True(t, e.Time.Equal(events[0].Time))
			assert.Equal(t, e.SessionID, events[0].SessionID)
			assert.Equal(t, e.Body, events[0].Body)
			assert.Equal(t, e.Size, events[0].Size)
		})
	})
}

func (s *EventStoreTestSuite) runSnapshotTests(t testbox.TestingT) {
	t.Run("insertion order", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			for i := 0; i < 5; i++ {
				require.NoError(t, store.Append(makeEvent(fmt.Sprintf("e%d", i), pkevents.PriorityNormal, 1)))
			}
			events, err := store.Snapshot(100)
			require.NoError(t, err)
			assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4"}, storedIDs(events))
		})
	})

	t.Run("byte budget", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			require.NoError(t, store.Append(makeEvent("a", pkevents.PriorityNormal, 40)))
			require.NoError(t, store.Append(makeEvent("b", pkevents.PriorityNormal, 70)))
			require.NoError(t, store.Append(makeEvent("c", pkevents.PriorityNormal, 50)))
			events, err := store.Snapshot(100)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, storedIDs(events))
		})
	})

	t.Run("does not remove events", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			require.NoError(t, store.Append(makeEvent("a", pkevents.PriorityNormal, 1)))
			_, err := store.Snapshot(100)
			require.NoError(t, err)
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	})
}

func (s *EventStoreTestSuite) runPruneTests(t testbox.TestingT) {
	t.Run("nothing to prune", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			require.NoError(t, store.Append(makeEvent("a", pkevents.PriorityNormal, 10)))
			n, err := store.Prune(100)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	})

	t.Run("lowest priority then oldest", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			require.NoError(t, store.Append(makeEvent("n1", pkevents.PriorityNormal, 10)))
			require.NoError(t, store.Append(makeEvent("h1", pkevents.PriorityHigh, 10)))
			require.NoError(t, store.Append(makeEvent("l1", pkevents.PriorityLow, 10)))
			require.NoError(t, store.Append(makeEvent("n2", pkevents.PriorityNormal, 10)))
			require.NoError(t, store.Append(makeEvent("l2", pkevents.PriorityLow, 10)))

			n, err := store.Prune(20)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			events, err := store.Snapshot(100)
			require.NoError(t, err)
			assert.Equal(t, []string{"h1", "n2"}, storedIDs(events))
			size, err := store.Size()
			require.NoError(t, err)
			assert.Equal(t, 20, size)
		})
	})
}

func (s *EventStoreTestSuite) runDeleteTests(t testbox.TestingT) {
	t.Run("by ID", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			for _, id := range []string{"a", "b", "c"} {
				require.NoError(t, store.Append(makeEvent(id, pkevents.PriorityNormal, 1)))
			}
			require.NoError(t, store.Delete([]string{"a", "c", "unknown"}))
			events, err := store.Snapshot(100)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, storedIDs(events))
		})
	})

	t.Run("all", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			for _, id := range []string{"a", "b"} {
				require.NoError(t, store.Append(makeEvent(id, pkevents.PriorityNormal, 1)))
			}
			require.NoError(t, store.DeleteAll())
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 0, count)
		})
	})
}

func (s *EventStoreTestSuite) runPersistenceTests(t testbox.TestingT) {
	t.Run("events survive reopening", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkevents.EventStore) {
			require.NoError(t, store.Append(makeEvent("a", pkevents.PriorityNormal, 3)))
		})
		withStore(t, s.storeFactoryFn(), func(store pkevents.EventStore) {
			events, err := store.Snapshot(100)
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, storedIDs(events))
		})
	})
}
