package pktestdata

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkinapp"
)

// MessageBuilder is a builder for in-app messages in the remote data format, used in conjunction
// with TestRemoteData.
//
// A shortcut for building messages is to call TestRemoteData.Message(id); the returned builder can
// be passed to TestRemoteData.Update once configured.
type MessageBuilder struct {
	id              string
	name            string
	displayType     pkinapp.DisplayType
	display         ldvalue.Value
	audience        *pkinapp.Audience
	triggers        []pkautomation.Trigger
	limit           int
	priority        int
	start           time.Time
	end             time.Time
	delay           time.Duration
	interval        time.Duration
	editGracePeriod int
}

func newMessageBuilder(id string) *MessageBuilder {
	return &MessageBuilder{id: id, displayType: pkinapp.DisplayBanner, limit: 1}
}

func (b *MessageBuilder) copy() *MessageBuilder {
	ret := *b
	ret.triggers = append([]pkautomation.Trigger(nil), b.triggers...)
	if b.audience != nil {
		a := *b.audience
		ret.audience = &a
	}
	return &ret
}

// Name sets the message name.
func (b *MessageBuilder) Name(name string) *MessageBuilder {
	b.name = name
	return b
}

// Display sets the display type and the content passed to the display adapter.
func (b *MessageBuilder) Display(displayType pkinapp.DisplayType, content ldvalue.Value) *MessageBuilder {
	b.displayType = displayType
	b.display = content
	return b
}

// Audience restricts who sees the message. Nil removes the restriction.
func (b *MessageBuilder) Audience(audience *pkinapp.Audience) *MessageBuilder {
	if audience == nil {
		b.audience = nil
	} else {
		a := *audience
		b.audience = &a
	}
	return b
}

// Trigger adds a trigger. A message needs at least one trigger or clients will ignore it.
func (b *MessageBuilder) Trigger(trigger pkautomation.Trigger) *MessageBuilder {
	b.triggers = append(b.triggers, trigger)
	return b
}

// ClearTriggers removes all triggers.
func (b *MessageBuilder) ClearTriggers() *MessageBuilder {
	b.triggers = nil
	return b
}

// Limit sets how many times the message may be displayed. Zero means once.
func (b *MessageBuilder) Limit(limit int) *MessageBuilder {
	b.limit = limit
	return b
}

// Priority sets the display priority; lower values are displayed first.
func (b *MessageBuilder) Priority(priority int) *MessageBuilder {
	b.priority = priority
	return b
}

// Window sets when the message is active. Zero times leave that end open.
func (b *MessageBuilder) Window(start, end time.Time) *MessageBuilder {
	b.start, b.end = start, end
	return b
}

// Delay sets how long to wait after the message is triggered before displaying it.
func (b *MessageBuilder) Delay(delay time.Duration) *MessageBuilder {
	b.delay = delay
	return b
}

// Interval sets how long the schedule pauses after each display.
func (b *MessageBuilder) Interval(interval time.Duration) *MessageBuilder {
	b.interval = interval
	return b
}

// EditGracePeriodDays sets how long the schedule may still be edited after it finishes.
func (b *MessageBuilder) EditGracePeriodDays(days int) *MessageBuilder {
	b.editGracePeriod = days
	return b
}

func (b *MessageBuilder) build(created, lastUpdated time.Time) ldvalue.Value {
	message := pkinapp.MessageAsValue(pkinapp.Message{
		ID:             b.id,
		Name:           b.name,
		DisplayType:    b.displayType,
		DisplayContent: b.display,
		Audience:       b.audience,
	})
	triggers := ldvalue.ArrayBuild()
	for _, t := range b.triggers {
		triggers.Add(pkautomation.TriggerAsValue(t))
	}
	obj := ldvalue.ObjectBuild().
		Set("message", message).
		Set("created", millis(created)).
		Set("last_updated", millis(lastUpdated)).
		Set("triggers", triggers.Build()).
		Set("limit", ldvalue.Int(b.limit)).
		Set("priority", ldvalue.Int(b.priority)).
		Set("edit_grace_period", ldvalue.Int(b.editGracePeriod))
	if !b.start.IsZero() {
		obj.Set("start", millis(b.start))
	}
	if !b.end.IsZero() {
		obj.Set("end", millis(b.end))
	}
	if b.delay > 0 {
		obj.Set("delay", ldvalue.Float64(b.delay.Seconds()))
	}
	if b.interval > 0 {
		obj.Set("interval", ldvalue.Float64(b.interval.Seconds()))
	}
	return obj.Build()
}

func millis(t time.Time) ldvalue.Value {
	return ldvalue.Float64(float64(ldtime.UnixMillisFromTime(t)))
}
