package remotedata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/sharedtest"
	"github.com/pushkit/go-client-sdk/subsystems"
)

type mockResponse struct {
	payloads []subsystems.RemoteDataPayload
	cached   bool
	err      error
}

type mockRequestor struct {
	responses chan mockResponse
	requests  chan struct{}
}

func newMockRequestor() *mockRequestor {
	return &mockRequestor{responses: make(chan mockResponse, 10), requests: make(chan struct{}, 100)}
}

func (r *mockRequestor) request(ctx context.Context) ([]subsystems.RemoteDataPayload, bool, error) {
	r.requests <- struct{}{}
	select {
	case resp := <-r.responses:
		return resp.payloads, resp.cached, resp.err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func withPollingSource(t *testing.T, action func(*PollingSource, *mockRequestor, *sharedtest.MockRemoteDataSink, *ldlogtest.MockLog)) {
	mockLog := ldlogtest.NewMockLog()
	defer mockLog.DumpIfTestFailed(t)
	context := sharedtest.NewTestContext("", nil, &subsystems.LoggingConfiguration{Loggers: mockLog.Loggers})
	sink := sharedtest.NewMockRemoteDataSink()
	r := newMockRequestor()
	ps := newPollingSource(context, sink, r, 10*time.Millisecond)
	defer ps.Close() //nolint:errcheck
	action(ps, r, sink, mockLog)
}

func samplePayloads() []subsystems.RemoteDataPayload {
	return []subsystems.RemoteDataPayload{{Type: "in_app_messages", Data: ldvalue.ObjectBuild().Build()}}
}

func TestPollingSourceDeliversFirstPoll(t *testing.T) {
	withPollingSource(t, func(ps *PollingSource, r *mockRequestor, sink *sharedtest.MockRemoteDataSink, _ *ldlogtest.MockLog) {
		r.responses <- mockResponse{payloads: samplePayloads()}
		ready := make(chan struct{})
		ps.Start(ready)

		th.AssertChannelClosed(t, ready, time.Second)
		assert.True(t, ps.IsInitialized())
		update := th.RequireValue(t, sink.UpdatesCh, time.Second)
		assert.Equal(t, samplePayloads(), update)
	})
}

func TestPollingSourceSkipsCachedResponses(t *testing.T) {
	withPollingSource(t, func(ps *PollingSource, r *mockRequestor, sink *sharedtest.MockRemoteDataSink, _ *ldlogtest.MockLog) {
		r.responses <- mockResponse{payloads: samplePayloads()}
		r.responses <- mockResponse{cached: true}
		ps.Start(make(chan struct{}))

		th.RequireValue(t, sink.UpdatesCh, time.Second)
		th.RequireValue(t, r.requests, time.Second)
		th.RequireValue(t, r.requests, time.Second)
		th.AssertNoMoreValues(t, sink.UpdatesCh, 50*time.Millisecond)
	})
}

func TestPollingSourceRetriesRecoverableErrors(t *testing.T) {
	for _, err := range []error{
		internal.HTTPStatusError{Message: "service unavailable", Code: 503},
		errors.New("connection refused"),
		malformedJSONError{errors.New("bad json")},
	} {
		t.Run(err.Error(), func(t *testing.T) {
			withPollingSource(t, func(ps *PollingSource, r *mockRequestor, sink *sharedtest.MockRemoteDataSink, mockLog *ldlogtest.MockLog) {
				r.responses <- mockResponse{err: err}
				r.responses <- mockResponse{payloads: samplePayloads()}
				ready := make(chan struct{})
				ps.Start(ready)

				th.AssertChannelClosed(t, ready, time.Second)
				assert.True(t, ps.IsInitialized())
				th.RequireValue(t, sink.UpdatesCh, time.Second)
				assert.Len(t, mockLog.GetOutput(ldlog.Warn), 1)
			})
		})
	}
}

func TestPollingSourceStopsOnUnrecoverableError(t *testing.T) {
	withPollingSource(t, func(ps *PollingSource, r *mockRequestor, sink *sharedtest.MockRemoteDataSink, mockLog *ldlogtest.MockLog) {
		r.responses <- mockResponse{err: internal.HTTPStatusError{Code: 401}}
		ready := make(chan struct{})
		ps.Start(ready)

		th.AssertChannelClosed(t, ready, time.Second)
		assert.False(t, ps.IsInitialized())
		th.RequireValue(t, r.requests, time.Second)
		th.AssertNoMoreValues(t, r.requests, 50*time.Millisecond)
		assert.Len(t, mockLog.GetOutput(ldlog.Error), 1)
		assert.Len(t, sink.UpdatesCh, 0)
	})
}

func TestPollingSourceCloseStopsPolling(t *testing.T) {
	withPollingSource(t, func(ps *PollingSource, r *mockRequestor, _ *sharedtest.MockRemoteDataSink, _ *ldlogtest.MockLog) {
		ready := make(chan struct{})
		ps.Start(ready)
		th.RequireValue(t, r.requests, time.Second)
		require.NoError(t, ps.Close())

		th.AssertChannelClosed(t, ready, time.Second)
		assert.False(t, ps.IsInitialized())
		th.AssertNoMoreValues(t, r.requests, 50*time.Millisecond)
	})
}

func TestNewPollingSourceConfiguration(t *testing.T) {
	ps := NewPollingSource(sharedtest.NewSimpleTestContext("key"), sharedtest.NewMockRemoteDataSink(),
		PollingConfig{BaseURI: "http://base", PollInterval: time.Hour})
	defer ps.Close() //nolint:errcheck
	assert.Equal(t, "http://base", ps.GetBaseURI())
	assert.Equal(t, time.Hour, ps.GetPollInterval())
}

func TestNullSource(t *testing.T) {
	s := NewNullSource()
	ready := make(chan struct{})
	s.Start(ready)
	th.AssertChannelClosed(t, ready, time.Second)
	assert.True(t, s.IsInitialized())
	assert.NoError(t, s.Close())
}
