package pkservices

import (
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// RemoteData is a convenience type for constructing a remote data polling response for
// RemoteDataServiceHandler. Its String() method returns the JSON response body.
//
//	data := pkservices.NewRemoteData().Payload("in_app_messages", timestamp, messagesDocument)
//	handler := pkservices.RemoteDataServiceHandler(data)
//
// The handler reads the current content on every request, so payloads may be changed while a
// server is running.
type RemoteData struct {
	payloads []ldvalue.Value
	lock     sync.Mutex
}

// NewRemoteData creates a RemoteData instance with no payloads.
func NewRemoteData() *RemoteData {
	return &RemoteData{}
}

// Payload adds or replaces the payload of a type.
func (d *RemoteData) Payload(payloadType string, timestamp time.Time, data ldvalue.Value) *RemoteData {
	payload := ldvalue.ObjectBuild().
		Set("type", ldvalue.String(payloadType)).
		Set("timestamp", ldvalue.String(timestamp.UTC().Format(time.RFC3339Nano))).
		Set("data", data).
		Build()
	d.lock.Lock()
	defer d.lock.Unlock()
	for i, p := range d.payloads {
		if p.GetByKey("type").StringValue() == payloadType {
			d.payloads[i] = payload
			return d
		}
	}
	d.payloads = append(d.payloads, payload)
	return d
}

// RemovePayload removes the payload of a type, if any.
func (d *RemoteData) RemovePayload(payloadType string) *RemoteData {
	d.lock.Lock()
	defer d.lock.Unlock()
	kept := d.payloads[:0]
	for _, p := range d.payloads {
		if p.GetByKey("type").StringValue() != payloadType {
			kept = append(kept, p)
		}
	}
	d.payloads = kept
	return d
}

// AsValue returns the response body as a value: {"payloads": [...]}.
func (d *RemoteData) AsValue() ldvalue.Value {
	d.lock.Lock()
	defer d.lock.Unlock()
	return ldvalue.ObjectBuild().Set("payloads", ldvalue.ArrayOf(d.payloads...)).Build()
}

// String returns the JSON encoding of the response body.
func (d *RemoteData) String() string {
	return d.AsValue().JSONString()
}
