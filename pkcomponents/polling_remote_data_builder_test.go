package pkcomponents

import (
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/interfaces"
	"github.com/pushkit/go-client-sdk/internal/remotedata"
	"github.com/pushkit/go-client-sdk/internal/sharedtest"
)

func TestPollingRemoteDataBuilder(t *testing.T) {
	t.Run("PollInterval", func(t *testing.T) {
		p := PollingRemoteData()
		assert.Equal(t, DefaultRemoteDataPollInterval, p.pollInterval)

		p.PollInterval(time.Hour)
		assert.Equal(t, time.Hour, p.pollInterval)

		p.PollInterval(time.Second)
		assert.Equal(t, MinimumRemoteDataPollInterval, p.pollInterval)

		p.forcePollInterval(time.Second)
		assert.Equal(t, time.Second, p.pollInterval)
	})

	t.Run("Build", func(t *testing.T) {
		baseURI := "http://base"
		interval := time.Hour

		clientContext := sharedtest.NewSimpleTestContext(sharedtest.TestAppKey)
		clientContext.ServiceEndpoints = interfaces.ServiceEndpoints{
			Analytics: baseURI, RemoteData: baseURI, Device: baseURI,
		}
		clientContext.RemoteDataUpdateSink = sharedtest.NewMockRemoteDataSink()

		ds, err := PollingRemoteData().PollInterval(interval).Build(clientContext)
		require.NoError(t, err)
		require.NotNil(t, ds)
		defer ds.Close()

		ps, ok := ds.(*remotedata.PollingSource)
		require.True(t, ok)
		assert.Equal(t, baseURI, ps.GetBaseURI())
		assert.Equal(t, interval, ps.GetPollInterval())
	})

	t.Run("Build requires a sink", func(t *testing.T) {
		_, err := PollingRemoteData().Build(sharedtest.NewSimpleTestContext(sharedtest.TestAppKey))
		assert.Equal(t, errNoRemoteDataSink, err)
	})
}

func TestNoRemoteData(t *testing.T) {
	ds, err := NoRemoteData().Build(sharedtest.NewSimpleTestContext(""))
	require.NoError(t, err)
	defer ds.Close()
	assert.True(t, ds.IsInitialized())

	readyCh := make(chan struct{})
	ds.Start(readyCh)
	th.AssertChannelClosed(t, readyCh, time.Second)
}
