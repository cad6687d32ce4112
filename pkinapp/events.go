package pkinapp

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkevents"
)

// EventRecorder records analytics events on behalf of the manager. pkclient.Client implements it
// by adding the events to its event manager with the current session ID.
type EventRecorder interface {
	RecordEvent(event pkevents.Event)
}

type nullEventRecorder struct{}

func (nullEventRecorder) RecordEvent(pkevents.Event) {}

func messageEventData(message Message, scheduleID string) *ldvalue.ObjectBuilder {
	return ldvalue.ObjectBuild().
		Set("id", ldvalue.ObjectBuild().Set("message_id", ldvalue.String(message.ID)).Build()).
		Set("schedule_id", ldvalue.String(scheduleID)).
		Set("source", ldvalue.String(string(message.Source)))
}

func newDisplayEvent(message Message, scheduleID string) pkevents.Event {
	return pkevents.NewEvent(pkevents.InAppDisplayEventType, messageEventData(message, scheduleID).Build(),
		pkevents.PriorityNormal)
}

func newResolutionEvent(message Message, scheduleID string, resolution Resolution, displayTime time.Duration) pkevents.Event {
	data := messageEventData(message, scheduleID).Set("resolution", resolution.asValue(displayTime))
	return pkevents.NewEvent(pkevents.InAppResolutionEventType, data.Build(), pkevents.PriorityNormal)
}
