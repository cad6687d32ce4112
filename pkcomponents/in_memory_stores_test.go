package pkcomponents

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/sharedtest"
)

func TestInMemoryDataStore(t *testing.T) {
	store, err := InMemoryDataStore().Build(sharedtest.NewSimpleTestContext(""))
	require.NoError(t, err)
	require.IsType(t, &internal.InMemoryKeyValueStore{}, store)

	require.NoError(t, store.Set("a", ldvalue.Bool(true)))
	value, found, err := store.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ldvalue.Bool(true), value)
}

func TestInMemoryEventStore(t *testing.T) {
	s1, err := InMemoryEventStore().Build(sharedtest.NewSimpleTestContext(""))
	require.NoError(t, err)
	s2, err := InMemoryEventStore().Build(sharedtest.NewSimpleTestContext(""))
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	count, err := s1.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestInMemoryScheduleStore(t *testing.T) {
	store, err := InMemoryScheduleStore().Build(sharedtest.NewSimpleTestContext(""))
	require.NoError(t, err)
	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
