package storetest

import (
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/go-test-helpers/v3/testbox"

	"github.com/pushkit/go-client-sdk/subsystems"
	"github.com/pushkit/go-client-sdk/testhelpers"
)

func withStore[T interface{ Close() error }](
	t testbox.TestingT,
	factory subsystems.ComponentConfigurer[T],
	action func(T),
) {
	testhelpers.WithMockLoggingContext(t, func(context subsystems.ClientContext) {
		store, err := factory.Build(context)
		require.NoError(t, err)
		defer func() {
			_ = store.Close()
		}()
		action(store)
	})
}

func clearData(t testbox.TestingT, clearDataFn func() error) {
	if clearDataFn != nil {
		require.NoError(t, clearDataFn())
	}
}
