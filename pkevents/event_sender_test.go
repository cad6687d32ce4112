package pkevents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/internal/endpoints"
)

func makeTestBatch(t *testing.T, ids ...string) ([]byte, int) {
	var events []StoredEvent
	for _, id := range ids {
		e, err := ToStoredEvent(Event{ID: id, Type: "test", Time: time.UnixMilli(1000), Data: ldvalue.Null()}, "s")
		require.NoError(t, err)
		events = append(events, e)
	}
	return buildBatchBody(events), len(events)
}

func TestSenderPostsBatchWithHeaders(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		defaultHeaders := http.Header{}
		defaultHeaders.Set("Authorization", "Basic xyz")
		sender := NewHTTPEventSender(server.Client(), server.URL, defaultHeaders, ldlog.NewDisabledLoggers(), false)

		extra := http.Header{}
		extra.Set("X-PK-Device-Family", "go")
		body, count := makeTestBatch(t, "a", "b")
		result := sender.SendEventData(context.Background(), body, extra, count)
		assert.True(t, result.Success)
		assert.Equal(t, 200, result.StatusCode)
		assert.NoError(t, result.Err)

		r := th.RequireValue(t, requestsCh, time.Second)
		assert.Equal(t, http.MethodPost, r.Request.Method)
		assert.Equal(t, endpoints.EventsRequestPath, r.Request.URL.Path)
		assert.Equal(t, "application/json", r.Request.Header.Get("Content-Type"))
		assert.Equal(t, "Basic xyz", r.Request.Header.Get("Authorization"))
		assert.Equal(t, "go", r.Request.Header.Get("X-PK-Device-Family"))
		assert.NotEmpty(t, r.Request.Header.Get(sentAtHeader))
		assert.NotEmpty(t, r.Request.Header.Get(payloadIDHeader))

		parsed := ldvalue.Parse(r.Body)
		require.Equal(t, 2, parsed.Count())
		assert.Equal(t, "a", parsed.GetByIndex(0).GetByKey("event_id").StringValue())
		assert.Equal(t, "b", parsed.GetByIndex(1).GetByKey("event_id").StringValue())
	})
}

func TestSenderUsesNewPayloadIDForEachRequest(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		sender := NewHTTPEventSender(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers(), false)
		body, count := makeTestBatch(t, "a")
		sender.SendEventData(context.Background(), body, nil, count)
		sender.SendEventData(context.Background(), body, nil, count)
		r1 := th.RequireValue(t, requestsCh, time.Second)
		r2 := th.RequireValue(t, requestsCh, time.Second)
		assert.NotEqual(t, r1.Request.Header.Get(payloadIDHeader), r2.Request.Header.Get(payloadIDHeader))
	})
}

func TestSenderReturnsResponseHeaders(t *testing.T) {
	responseHeaders := http.Header{}
	responseHeaders.Set(MaxBatchHeader, "200")
	handler := httphelpers.HandlerWithResponse(200, responseHeaders, nil)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		sender := NewHTTPEventSender(server.Client(), server.URL, nil, ldlog.NewDisabledLoggers(), false)
		body, count := makeTestBatch(t, "a")
		result := sender.SendEventData(context.Background(), body, nil, count)
		require.True(t, result.Success)
		assert.Equal(t, "200", result.Headers.Get(MaxBatchHeader))
	})
}

func TestSenderErrorStatuses(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 408, 429, 500, 503} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mockLog := ldlogtest.NewMockLog()
			defer mockLog.DumpIfTestFailed(t)
			httphelpers.WithServer(httphelpers.HandlerWithStatus(status), func(server *httptest.Server) {
				sender := NewHTTPEventSender(server.Client(), server.URL, nil, mockLog.Loggers, false)
				body, count := makeTestBatch(t, "a")
				result := sender.SendEventData(context.Background(), body, nil, count)
				assert.False(t, result.Success)
				assert.Equal(t, status, result.StatusCode)
				assert.Error(t, result.Err)

				recoverable := status >= 500 || status == 408 || status == 429
				assert.Equal(t, recoverable, result.Recoverable())
				if recoverable {
					mockLog.AssertMessageMatch(t, true, ldlog.Warn, "Error posting events")
				} else {
					mockLog.AssertMessageMatch(t, true, ldlog.Error, "giving up permanently")
				}
			})
		})
	}
}

func TestSenderNetworkErrorIsRecoverable(t *testing.T) {
	client := httphelpers.ClientFromHandler(httphelpers.BrokenConnectionHandler())
	sender := NewHTTPEventSender(client, "http://fake", nil, ldlog.NewDisabledLoggers(), false)
	body, count := makeTestBatch(t, "a")
	result := sender.SendEventData(context.Background(), body, nil, count)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.StatusCode)
	assert.Error(t, result.Err)
	assert.True(t, result.Recoverable())
}

func TestSenderLogsPayloadOnlyIfEnabled(t *testing.T) {
	for _, logPayloads := range []bool{false, true} {
		mockLog := ldlogtest.NewMockLog()
		mockLog.Loggers.SetMinLevel(ldlog.Debug)
		httphelpers.WithServer(httphelpers.HandlerWithStatus(200), func(server *httptest.Server) {
			sender := NewHTTPEventSender(server.Client(), server.URL, nil, mockLog.Loggers, logPayloads)
			body, count := makeTestBatch(t, "payload-marker")
			sender.SendEventData(context.Background(), body, nil, count)
		})
		mockLog.AssertMessageMatch(t, logPayloads, ldlog.Debug, "payload-marker")
		mockLog.AssertMessageMatch(t, true, ldlog.Debug, "Sending 1 events")
	}
}

func TestBuildBatchBody(t *testing.T) {
	body, _ := makeTestBatch(t)
	assert.Equal(t, "[]", string(body))

	body, _ = makeTestBatch(t, "x", "y", "z")
	parsed := ldvalue.Parse(body)
	assert.Equal(t, ldvalue.ArrayType, parsed.Type())
	assert.Equal(t, 3, parsed.Count())
}
