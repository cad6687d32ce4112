package pkevents

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Event types recorded by the SDK itself.
const (
	AppInitEventType         = "app_init"
	AppForegroundEventType   = "app_foreground"
	AppBackgroundEventType   = "app_background"
	ScreenTrackingEventType  = "screen_tracking"
	CustomEventType          = "custom_event"
	InAppDisplayEventType    = "in_app_display"
	InAppResolutionEventType = "in_app_resolution"
)

// NewAppInitEvent creates the event recorded when the host application starts.
func NewAppInitEvent() Event {
	return NewEvent(AppInitEventType, ldvalue.Null(), PriorityNormal)
}

// NewAppForegroundEvent creates the event recorded when the host application becomes active.
func NewAppForegroundEvent() Event {
	return NewEvent(AppForegroundEventType, ldvalue.Null(), PriorityNormal)
}

// NewAppBackgroundEvent creates the event recorded when the host application goes to the
// background. It has high priority, since the process may be suspended soon.
func NewAppBackgroundEvent() Event {
	return NewEvent(AppBackgroundEventType, ldvalue.Null(), PriorityHigh)
}

// NewScreenTrackingEvent creates an event describing the time spent on a screen.
func NewScreenTrackingEvent(screen, previousScreen string, entered, exited time.Time) Event {
	data := ldvalue.ObjectBuild().
		Set("screen", ldvalue.String(screen)).
		Set("entered_time", ldvalue.String(formatEventTime(entered))).
		Set("exited_time", ldvalue.String(formatEventTime(exited))).
		Set("duration", ldvalue.String(formatDuration(exited.Sub(entered))))
	if previousScreen != "" {
		data.Set("previous_screen", ldvalue.String(previousScreen))
	}
	return NewEvent(ScreenTrackingEventType, data.Build(), PriorityNormal)
}

// NewCustomEvent creates an application-defined event. The value is ignored unless it is a number;
// properties should be an object or null.
func NewCustomEvent(name string, value ldvalue.Value, properties ldvalue.Value) Event {
	data := ldvalue.ObjectBuild().Set("event_name", ldvalue.String(name))
	if value.IsNumber() {
		data.Set("event_value", value)
	}
	if properties.Type() == ldvalue.ObjectType {
		data.Set("properties", properties)
	}
	return NewEvent(CustomEventType, data.Build(), PriorityNormal)
}

func formatDuration(d time.Duration) string {
	return formatEventTime(time.UnixMilli(d.Milliseconds()))
}
