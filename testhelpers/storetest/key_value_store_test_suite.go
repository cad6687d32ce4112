package storetest

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v3/testbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// KeyValueStoreTestSuite provides a configurable test suite for all implementations of
// KeyValueStore.
type KeyValueStoreTestSuite struct {
	storeFactoryFn func() subsystems.ComponentConfigurer[subsystems.KeyValueStore]
	clearDataFn    func() error
	persistent     bool
}

// NewKeyValueStoreTestSuite creates a KeyValueStoreTestSuite for testing some implementation of
// KeyValueStore.
//
// The storeFactoryFn parameter returns a configured factory for the store, including any
// configuration needed for the test environment. The clearDataFn parameter deletes any existing data
// in the underlying database; it may be nil for a store that starts out empty every time.
func NewKeyValueStoreTestSuite(
	storeFactoryFn func() subsystems.ComponentConfigurer[subsystems.KeyValueStore],
	clearDataFn func() error,
) *KeyValueStoreTestSuite {
	return &KeyValueStoreTestSuite{storeFactoryFn: storeFactoryFn, clearDataFn: clearDataFn}
}

// Persistent enables tests that verify data written by one store instance is seen by a later one
// created from the same factory.
func (s *KeyValueStoreTestSuite) Persistent(persistent bool) *KeyValueStoreTestSuite {
	s.persistent = persistent
	return s
}

// Run runs the configured test suite.
func (s *KeyValueStoreTestSuite) Run(t *testing.T) {
	s.runInternal(testbox.RealTest(t))
}

func (s *KeyValueStoreTestSuite) runInternal(t testbox.TestingT) {
	t.Run("Get", s.runGetTests)
	t.Run("Set", s.runSetTests)
	t.Run("Remove", s.runRemoveTests)
	if s.persistent {
		t.Run("persistence", s.runPersistenceTests)
	}
}

func (s *KeyValueStoreTestSuite) withEmptyStore(t testbox.TestingT, action func(subsystems.KeyValueStore)) {
	clearData(t, s.clearDataFn)
	withStore(t, s.storeFactoryFn(), action)
}

func (s *KeyValueStoreTestSuite) runGetTests(t testbox.TestingT) {
	t.Run("unknown key", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			value, ok, err := store.Get("unknown")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, ldvalue.Null(), value)
		})
	})

	t.Run("value types", func(t testbox.TestingT) {
		values := map[string]ldvalue.Value{
			"bool":   ldvalue.Bool(true),
			"number": ldvalue.Int(42),
			"string": ldvalue.String("hello"),
			"array":  ldvalue.ArrayOf(ldvalue.String("a"), ldvalue.Int(1)),
			"object": ldvalue.ObjectBuild().SetString("name", "x").SetInt("count", 2).Build(),
		}
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			for key, value := range values {
				require.NoError(t, store.Set(key, value))
			}
			for key, expected := range values {
				value, ok, err := store.Get(key)
				require.NoError(t, err)
				assert.True(t, ok, "for key %q", key)
				assert.True(t, expected.Equal(value), "for key %q: expected %s, got %s", key, expected, value)
			}
		})
	})
}

func (s *KeyValueStoreTestSuite) runSetTests(t testbox.TestingT) {
	t.Run("replaces previous value", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			require.NoError(t, store.Set("key", ldvalue.String("first")))
			require.NoError(t, store.Set("key", ldvalue.String("second")))
			value, ok, err := store.Get("key")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, ldvalue.String("second"), value)
		})
	})

	t.Run("keys are independent", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			require.NoError(t, store.Set("a", ldvalue.Int(1)))
			require.NoError(t, store.Set("b", ldvalue.Int(2)))
			value, _, err := store.Get("a")
			require.NoError(t, err)
			assert.Equal(t, ldvalue.Int(1), value)
		})
	})
}

func (s *KeyValueStoreTestSuite) runRemoveTests(t testbox.TestingT) {
	t.Run("removes value", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			require.NoError(t, store.Set("key", ldvalue.Bool(true)))
			require.NoError(t, store.Remove("key"))
			_, ok, err := store.Get("key")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	})

	t.Run("unknown key is not an error", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			assert.NoError(t, store.Remove("unknown"))
		})
	})
}

func (s *KeyValueStoreTestSuite) runPersistenceTests(t testbox.TestingT) {
	t.Run("value survives reopening", func(t testbox.TestingT) {
		s.withEmptyStore(t, func(store subsystems.KeyValueStore) {
			require.NoError(t, store.Set("key", ldvalue.String("kept")))
		})
		withStore(t, s.storeFactoryFn(), func(store subsystems.KeyValueStore) {
			value, ok, err := store.Get("key")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, ldvalue.String("kept"), value)
		})
	})
}
