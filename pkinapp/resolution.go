package pkinapp

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// ResolutionType describes how a displayed message went away.
type ResolutionType string

// Resolution types, as reported in in_app_resolution events.
const (
	ResolutionButtonClick   ResolutionType = "button_click"
	ResolutionMessageClick  ResolutionType = "message_click"
	ResolutionUserDismissed ResolutionType = "user_dismissed"
	ResolutionTimedOut      ResolutionType = "timed_out"
	ResolutionExpired       ResolutionType = "expired"
)

// Resolution is reported by an adapter when a message is done displaying.
type Resolution struct {
	Type ResolutionType
	// ButtonID and ButtonDescription are set for ResolutionButtonClick.
	ButtonID          string
	ButtonDescription string
}

// ButtonClickResolution creates a resolution for a button press.
func ButtonClickResolution(buttonID, description string) Resolution {
	return Resolution{Type: ResolutionButtonClick, ButtonID: buttonID, ButtonDescription: description}
}

// UserDismissedResolution creates a resolution for a dismissal.
func UserDismissedResolution() Resolution {
	return Resolution{Type: ResolutionUserDismissed}
}

func (r Resolution) asValue(displayTime time.Duration) ldvalue.Value {
	b := ldvalue.ObjectBuild().Set("type", ldvalue.String(string(r.Type)))
	if r.Type == ResolutionButtonClick {
		b.Set("button_id", ldvalue.String(r.ButtonID))
		if r.ButtonDescription != "" {
			b.Set("button_description", ldvalue.String(r.ButtonDescription))
		}
	}
	if displayTime > 0 {
		b.Set("display_time", ldvalue.Float64(displayTime.Seconds()))
	}
	return b.Build()
}
