package pkinapp

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// DisplayType selects the adapter that displays a message.
type DisplayType string

// Built-in display types.
const (
	DisplayBanner     DisplayType = "banner"
	DisplayModal      DisplayType = "modal"
	DisplayFullScreen DisplayType = "fullscreen"
	DisplayHTML       DisplayType = "html"
	DisplayCustom     DisplayType = "custom"
)

// Source records where a message came from.
type Source string

const (
	// SourceRemoteData messages are managed by the RemoteDataClient.
	SourceRemoteData Source = "remote-data"
	// SourceAppDefined messages are scheduled by application code.
	SourceAppDefined Source = "app-defined"
	// SourceLegacyPush messages arrive in push payloads.
	SourceLegacyPush Source = "legacy-push"
)

// Message is an in-app message.
type Message struct {
	ID          string
	Name        string
	DisplayType DisplayType
	// DisplayContent is interpreted by the adapter for the display type.
	DisplayContent ldvalue.Value
	Extras         ldvalue.Value
	// Actions run when the message is displayed.
	Actions ldvalue.Value
	// Audience restricts who sees the message. Nil means everyone.
	Audience *Audience
	Source   Source
}

// MessageAsValue returns the JSON form of a message, which is also the remote data format.
func MessageAsValue(m Message) ldvalue.Value {
	b := ldvalue.ObjectBuild().
		Set("message_id", ldvalue.String(m.ID)).
		Set("display_type", ldvalue.String(string(m.DisplayType)))
	if m.Name != "" {
		b.Set("name", ldvalue.String(m.Name))
	}
	if m.Source != "" {
		b.Set("source", ldvalue.String(string(m.Source)))
	}
	for key, v := range map[string]ldvalue.Value{"display": m.DisplayContent, "extra": m.Extras, "actions": m.Actions} {
		if !v.IsNull() {
			b.Set(key, v)
		}
	}
	if m.Audience != nil {
		b.Set("audience", AudienceAsValue(*m.Audience))
	}
	return b.Build()
}

// MessageFromValue parses the JSON form of a message. A message without a source is treated as
// app-defined.
func MessageFromValue(v ldvalue.Value) Message {
	m := Message{
		ID:             v.GetByKey("message_id").StringValue(),
		Name:           v.GetByKey("name").StringValue(),
		DisplayType:    DisplayType(v.GetByKey("display_type").StringValue()),
		DisplayContent: v.GetByKey("display"),
		Extras:         v.GetByKey("extra"),
		Actions:        v.GetByKey("actions"),
		Source:         Source(v.GetByKey("source").StringValue()),
	}
	if m.Source == "" {
		m.Source = SourceAppDefined
	}
	if a, ok := v.TryGetByKey("audience"); ok && a.Type() == ldvalue.ObjectType {
		audience := AudienceFromValue(a)
		m.Audience = &audience
	}
	return m
}
