package pkevents

import (
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStoredEventAddsSessionID(t *testing.T) {
	event := Event{
		ID:       "event-1",
		Type:     "custom_event",
		Priority: PriorityHigh,
		Time:     time.UnixMilli(1700000000123),
		Data:     ldvalue.ObjectBuild().Set("event_name", ldvalue.String("purchase")).Build(),
	}
	stored, err := ToStoredEvent(event, "session-1")
	require.NoError(t, err)

	assert.Equal(t, "event-1", stored.ID)
	assert.Equal(t, PriorityHigh, stored.Priority)
	assert.Equal(t, "session-1", stored.SessionID)
	assert.Equal(t, len(stored.Body), stored.Size)

	parsed := ldvalue.Parse(stored.Body)
	assert.Equal(t, "custom_event", parsed.GetByKey("type").StringValue())
	assert.Equal(t, "event-1", parsed.GetByKey("event_id").StringValue())
	assert.Equal(t, "1700000000.123", parsed.GetByKey("time").StringValue())
	assert.Equal(t, "purchase", parsed.GetByKey("data").GetByKey("event_name").StringValue())
	assert.Equal(t, "session-1", parsed.GetByKey("data").GetByKey("session_id").StringValue())
}

func TestToStoredEventWithNonObjectData(t *testing.T) {
	stored, err := ToStoredEvent(NewEvent("app_init", ldvalue.String("ignored"), PriorityNormal), "s")
	require.NoError(t, err)
	data := ldvalue.Parse(stored.Body).GetByKey("data")
	assert.True(t, ldvalue.ObjectBuild().Set("session_id", ldvalue.String("s")).Build().Equal(data), data.JSONString())
}

func TestNewEventAssignsIDAndTime(t *testing.T) {
	before := time.Now()
	e1 := NewEvent("x", ldvalue.Null(), PriorityLow)
	e2 := NewEvent("x", ldvalue.Null(), PriorityLow)
	assert.NotEqual(t, e1.ID, e2.ID)
	assert.False(t, e1.Time.Before(before))
	assert.Equal(t, PriorityLow, e1.Priority)
}

func TestCustomEvent(t *testing.T) {
	props := ldvalue.ObjectBuild().Set("color", ldvalue.String("red")).Build()
	e := NewCustomEvent("purchase", ldvalue.Float64(9.99), props)
	assert.Equal(t, CustomEventType, e.Type)
	assert.Equal(t, "purchase", e.Data.GetByKey("event_name").StringValue())
	assert.Equal(t, 9.99, e.Data.GetByKey("event_value").Float64Value())
	assert.True(t, props.Equal(e.Data.GetByKey("properties")))

	e = NewCustomEvent("open", ldvalue.Null(), ldvalue.Null())
	_, hasValue := e.Data.TryGetByKey("event_value")
	assert.False(t, hasValue)
}

func TestScreenTrackingEvent(t *testing.T) {
	entered := time.UnixMilli(1000000)
	e := NewScreenTrackingEvent("home", "login", entered, entered.Add(2500*time.Millisecond))
	assert.Equal(t, "home", e.Data.GetByKey("screen").StringValue())
	assert.Equal(t, "login", e.Data.GetByKey("previous_screen").StringValue())
	assert.Equal(t, "2.500", e.Data.GetByKey("duration").StringValue())
}

func TestBackgroundEventIsHighPriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, NewAppBackgroundEvent().Priority)
	assert.Equal(t, PriorityNormal, NewAppForegroundEvent().Priority)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityHigh.Rank())
	assert.Equal(t, "normal", Priority(0).String())
}
