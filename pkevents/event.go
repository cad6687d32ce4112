package pkevents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Priority determines how soon an upload is scheduled after an event is added, and which events
// are pruned first when the store is full.
type Priority int

const (
	// PriorityNormal is the default priority.
	PriorityNormal Priority = iota
	// PriorityLow events wait for the maximum upload wait, and are pruned first.
	PriorityLow
	// PriorityHigh events are uploaded as soon as the minimum batch interval allows.
	PriorityHigh
)

// Rank orders priorities from lowest to highest: Low 0, Normal 1, High 2.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	default:
		return 1
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// ErrStoreFull is reported when an event cannot fit in the store even after pruning.
var ErrStoreFull = errors.New("event is larger than the event store can hold")

// ErrEventTooLarge is reported when an event is larger than the maximum batch size, so that it could
// never be uploaded.
var ErrEventTooLarge = errors.New("event is larger than the maximum batch size")

// Event is an analytics event as recorded by application code or SDK components. It is a value
// type; treat it as immutable once created.
type Event struct {
	// ID uniquely identifies the event.
	ID string
	// Type is the event type, for instance "custom_event".
	Type string
	// Priority controls upload scheduling and pruning.
	Priority Priority
	// Time is when the event occurred.
	Time time.Time
	// Data is the event's JSON body. It should be an object; any other value is uploaded as an
	// empty object.
	Data ldvalue.Value
}

// NewEvent creates an Event with a new random ID and the current time.
func NewEvent(eventType string, data ldvalue.Value, priority Priority) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		Priority: priority,
		Time:     time.Now(),
		Data:     data,
	}
}

// StoredEvent is the persisted form of an Event. Body is the exact JSON object that is uploaded as
// part of a batch, and Size is its length in bytes.
type StoredEvent struct {
	ID        string
	Type      string
	Priority  Priority
	Time      time.Time
	SessionID string
	Body      []byte
	Size      int
}

// ToStoredEvent serializes an event for the store, adding the session ID to its data.
func ToStoredEvent(event Event, sessionID string) (StoredEvent, error) {
	data := ldvalue.ObjectBuild()
	if event.Data.Type() == ldvalue.ObjectType {
		for _, key := range event.Data.Keys(nil) {
			data.Set(key, event.Data.GetByKey(key))
		}
	}
	data.Set("session_id", ldvalue.String(sessionID))

	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("type").String(event.Type)
	obj.Name("event_id").String(event.ID)
	obj.Name("time").String(formatEventTime(event.Time))
	data.Build().WriteToJSONWriter(obj.Name("data"))
	obj.End()
	if err := w.Error(); err != nil {
		return StoredEvent{}, fmt.Errorf("serializing event %s: %w", event.ID, err)
	}
	body := w.Bytes()
	return StoredEvent{
		ID:        event.ID,
		Type:      event.Type,
		Priority:  event.Priority,
		Time:      event.Time,
		SessionID: sessionID,
		Body:      body,
		Size:      len(body),
	}, nil
}

// Event times are uploaded as decimal seconds since the epoch, with millisecond precision.
func formatEventTime(t time.Time) string {
	ms := t.UnixMilli()
	return fmt.Sprintf("%d.%03d", ms/1000, ms%1000)
}
