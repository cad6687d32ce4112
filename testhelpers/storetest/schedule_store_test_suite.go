package storetest

import (
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v3/testbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// ScheduleStoreTestSuite provides a configurable test suite for all implementations of
// pkautomation.ScheduleStore.
type ScheduleStoreTestSuite struct {
	storeFactoryFn func() subsystems.ComponentConfigurer[pkautomation.ScheduleStore]
	clearDataFn    func() error
	persistent     bool
}

// NewScheduleStoreTestSuite creates a ScheduleStoreTestSuite. The parameters have the same meaning as
// for NewKeyValueStoreTestSuite.
func NewScheduleStoreTestSuite(
	storeFactoryFn func() subsystems.ComponentConfigurer[pkautomation.ScheduleStore],
	clearDataFn func() error,
) *ScheduleStoreTestSuite {
	return &ScheduleStoreTestSuite{storeFactoryFn: storeFactoryFn, clearDataFn: clearDataFn}
}

// Persistent enables tests that verify schedules stored by one store instance are seen by a later
// one created from the same factory.
func (s *ScheduleStoreTestSuite) Persistent(persistent bool) *ScheduleStoreTestSuite {
	s.persistent = persistent
	return s
}

// Run runs the configured test suite.
func (s *ScheduleStoreTestSuite) Run(t *testing.T) {
	s.runInternal(testbox.RealTest(t))
}

func (s *ScheduleStoreTestSuite) runInternal(t testbox.TestingT) {
	t.Run("Put and Get", s.runPutGetTests)
	t.Run("queries", s.runQueryTests)
	t.Run("Delete", s.runDeleteTests)
	if s.persistent {
		t.Run("persistence", s.runPersistenceTests)
	}
}

func (s *ScheduleStoreTestSuite) withEmptyStore(t testbox.TestingT, action func(pkautomation.ScheduleStore)) {
	clearData(t, s.clearDataFn)
	withStore(t, s.storeFactoryFn(), action)
}

var baseTime = time.UnixMilli(1_700_000_000_000)

func makeSchedule(id, group string, createdOffset time.Duration) pkautomation.Schedule {
	return pkautomation.Schedule{
		ID: id,
		Info: pkautomation.ScheduleInfo{
			Group:    group,
			Triggers: []pkautomation.Trigger{{Type: pkautomation.TriggerAppInit, Goal: 2}},
			Priority: 1,
			Data:     ldvalue.ObjectBuild().SetString("kind", "test").Build(),
		},
		Metadata:       ldvalue.String("meta"),
		State:          pkautomation.StateIdle,
		StateChangedAt: baseTime,
		CreatedAt:      baseTime.Add(createdOffset),
	}
}

func scheduleIDs(schedules []pkautomation.Schedule) []string {
	ret := make([]string, 0, len(schedules))
	for _, sched := range schedules {
		ret = append(ret, sched.ID)
	}
	return ret
}

func assertSameSchedule(t assert.TestingT, expected, actual pkautomation.Schedule) {
	assert.Equal(t, expected.ID, actual.ID)
	assert.Equal(t, expected.Info.Group, actual.Info.Group)
	assert.Equal(t, expected.Info.Priority, actual.Info.Priority)
	assert.True(t, expected.Info.Data.Equal(actual.Info.Data), "data: %s", actual.Info.Data)
	assert.True(t, expected.Metadata.Equal(actual.Metadata), "metadata: %s", actual.Metadata)
	assert.Equal(t, expected.State, actual.State)
	assert.Equal(t, expected.ExecutionCount, actual.ExecutionCount)
	assert.True(t, expected.CreatedAt.Equal(actual.CreatedAt), "created at")
	assert.True(t, expected.StateChangedAt.Equal(actual.StateChangedAt), "state changed at")
	if assert.Len(t, actual.Info.Triggers, len(expected.Info.Triggers)) {
		for i, trigger := range expected.Info.Triggers {
			assert.Equal(t, trigger.Type, actual.Info.Triggers[i].Type)
			assert.Equal(t, trigger.Goal, actual.Info.Triggers[i].Goal)
			assert.Equal(t, trigger.Progress, actual.Info.Triggers[i].Progress)
		}
	}
}

func (s *ScheduleStoreTestSuite) runPutGetTests(t testbox.TestingT) {
	t.Run("unknown ID", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			_, found, err := store.Get("unknown")
			require.NoError(t, err)
			assert.False(t, found)
		})
	})

	t.Run("fields are preserved", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			sched := makeSchedule("a", "g", 0)
			sched.Info.Triggers[0].Progress = 1
			sched.ExecutionCount = 3
			sched.State = pkautomation.StatePaused
			require.NoError(t, store.Put(sched))

			got, found, err := store.Get("a")
			require.NoError(t, err)
			require.True(t, found)
			assertSameSchedule(t, sched, got)
		})
	})

	t.Run("put replaces", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			sched := makeSchedule("a", "g", 0)
			require.NoError(t, store.Put(sched))
			sched.State = pkautomation.StateTriggered
			sched.Info.Group = "other"
			require.NoError(t, store.Put(sched))

			got, _, err := store.Get("a")
			require.NoError(t, err)
			assert.Equal(t, pkautomation.StateTriggered, got.State)
			group, err := store.GetByGroup("g")
			require.NoError(t, err)
			assert.Empty(t, group)
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	})

	t.Run("returned schedules are copies", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			require.NoError(t, store.Put(makeSchedule("a", "g", 0)))
			got, _, err := store.Get("a")
			require.NoError(t, err)
			got.Info.Triggers[0].Progress = 5

			again, _, err := store.Get("a")
			require.NoError(t, err)
			assert.Equal(t, float64(0), again.Info.Triggers[0].Progress)
		})
	})
}

func (s *ScheduleStoreTestSuite) runQueryTests(t testbox.TestingT) {
	put := func(t testbox.TestingT, store pkautomation.ScheduleStore) {
		require.NoError(t, store.Put(
			makeSchedule("a", "g1", time.Second),
			makeSchedule("b", "g1", 0),
			makeSchedule("c", "g2", 2*time.Second),
			makeSchedule("d", "g1", time.Second),
		))
	}

	t.Run("all by creation time", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			put(t, store)
			all, err := store.GetAll()
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a", "d", "c"}, scheduleIDs(all))
		})
	})

	t.Run("group by creation time", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			put(t, store)
			group, err := store.GetByGroup("g1")
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "a", "d"}, scheduleIDs(group))
			none, err := store.GetByGroup("unknown")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	})

	t.Run("count", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			put(t, store)
			count, err := store.Count()
			require.NoError(t, err)
			assert.Equal(t, 4, count)
		})
	})
}

func (s *ScheduleStoreTestSuite) runDeleteTests(t testbox.TestingT) {
	t.Run("by ID", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			require.NoError(t, store.Put(makeSchedule("a", "g", 0), makeSchedule("b", "g", time.Second)))
			require.NoError(t, store.Delete("a", "unknown"))

			_, found, err := store.Get("a")
			require.NoError(t, err)
			assert.False(t, found)
			all, err := store.GetAll()
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, scheduleIDs(all))
		})
	})
}

func (s *ScheduleStoreTestSuite) runPersistenceTests(t testbox.TestingT) {
	t.Run("schedules survive reopening", func(t testbox.TestingT) {
		sched := makeSchedule("a", "g", 0)
		s.withEmptyStore(t, func(store pkautomation.ScheduleStore) {
			require.NoError(t, store.Put(sched))
		})
		withStore(t, s.storeFactoryFn(), func(store pkautomation.ScheduleStore) {
			got, found, err := store.Get("a")
			require.NoError(t, err)
			require.True(t, found)
			assertSameSchedule(t, sched, got)
		})
	})
}
