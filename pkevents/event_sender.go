package pkevents

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/endpoints"
)

const (
	sentAtHeader    = "X-PK-Sent-At"
	payloadIDHeader = "X-PK-Payload-ID"
)

// EventSender delivers an already-serialized batch of events to the event collector.
type EventSender interface {
	// SendEventData makes one attempt to deliver the batch. Retrying is the caller's concern.
	SendEventData(ctx context.Context, body []byte, headers http.Header, eventCount int) EventSenderResult
}

// EventSenderResult is the return type for EventSender.SendEventData.
type EventSenderResult struct {
	// Success is true if the batch was accepted.
	Success bool
	// StatusCode is the HTTP status, or zero if the request did not get a response.
	StatusCode int
	// Headers are the response headers of a successful request. They may carry batch policy
	// overrides.
	Headers http.Header
	// Err describes the failure, if any.
	Err error
}

// Recoverable returns true if a failed attempt may succeed if retried: a network error, or a
// recoverable HTTP status.
func (r EventSenderResult) Recoverable() bool {
	return !r.Success && (r.StatusCode == 0 || internal.IsHTTPErrorRecoverable(r.StatusCode))
}

type httpEventSender struct {
	client          *http.Client
	eventsURI       string
	defaultHeaders  http.Header
	loggers         ldlog.Loggers
	logDataPayloads bool
	now             func() time.Time
}

// NewHTTPEventSender creates the standard EventSender, which POSTs batches as a JSON array to the
// events path of the given base URI.
func NewHTTPEventSender(
	client *http.Client,
	baseURI string,
	defaultHeaders http.Header,
	loggers ldlog.Loggers,
	logDataPayloads bool,
) EventSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpEventSender{
		client:          client,
		eventsURI:       endpoints.AddPath(baseURI, endpoints.EventsRequestPath),
		defaultHeaders:  defaultHeaders,
		loggers:         loggers,
		logDataPayloads: logDataPayloads,
		now:             time.Now,
	}
}

func (s *httpEventSender) SendEventData(
	ctx context.Context,
	body []byte,
	headers http.Header,
	eventCount int,
) EventSenderResult {
	if s.logDataPayloads && s.loggers.IsDebugEnabled() {
		s.loggers.Debugf("Sending %d events: %s", eventCount, body)
	} else {
		s.loggers.Debugf("Sending %d events", eventCount)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.eventsURI, bytes.NewReader(body))
	if err != nil {
		s.loggers.Errorf("Unexpected error while creating event request: %+v", err)
		return EventSenderResult{Err: err}
	}
	for k, vv := range s.defaultHeaders {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	for k, vv := range headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sentAtHeader, strconv.FormatInt(s.now().Unix(), 10))
	req.Header.Set(payloadIDHeader, uuid.NewString())

	resp, err := s.client.Do(req)
	if resp != nil && resp.Body != nil {
		_, _ = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() == nil {
			s.loggers.Warnf("Unexpected error while sending events: %+v", err)
		}
		return EventSenderResult{Err: err}
	}
	if err := internal.CheckForHTTPError(resp.StatusCode, s.eventsURI); err != nil {
		internal.CheckIfErrorIsRecoverableAndLog(s.loggers, internal.HTTPErrorDescription(resp.StatusCode),
			"posting events", resp.StatusCode, "will retry")
		return EventSenderResult{StatusCode: resp.StatusCode, Err: err}
	}
	return EventSenderResult{Success: true, StatusCode: resp.StatusCode, Headers: resp.Header}
}

// buildBatchBody joins stored event bodies into the JSON array that is uploaded.
func buildBatchBody(events []StoredEvent) []byte {
	size := 2
	for _, e := range events {
		size += e.Size + 1
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.WriteByte('[')
	for i, e := range events {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e.Body)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}
