package pkautomation

import (
	"github.com/blang/semver"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// TriggerType identifies the kind of occurrence a trigger counts.
type TriggerType string

// Trigger types. The string values are the ones used in remote data.
const (
	TriggerAppInit          TriggerType = "app_init"
	TriggerForeground       TriggerType = "foreground"
	TriggerBackground       TriggerType = "background"
	TriggerRegionEnter      TriggerType = "region_enter"
	TriggerRegionExit       TriggerType = "region_exit"
	TriggerCustomEventCount TriggerType = "custom_event_count"
	TriggerCustomEventValue TriggerType = "custom_event_value"
	TriggerScreen           TriggerType = "screen"
	TriggerActiveSession    TriggerType = "active_session"
	TriggerVersion          TriggerType = "version"
	TriggerAppActive        TriggerType = "app_active"
)

// Trigger counts occurrences toward a goal.
type Trigger struct {
	Type TriggerType
	// Goal is the count, or for TriggerCustomEventValue the summed event value, that fires the
	// schedule.
	Goal float64
	// Progress is the count so far. It is reset whenever the schedule fires or is edited.
	Progress float64
	// Predicate narrows which occurrences count. It may be nil.
	Predicate *TriggerPredicate
}

// TriggerPredicate narrows the occurrences a trigger counts. Empty fields match anything.
type TriggerPredicate struct {
	// EventName must equal the custom event's name.
	EventName string
	// Properties must each be present with an equal value in the custom event's properties.
	Properties ldvalue.Value
	// RegionID must equal the region's ID.
	RegionID string
	// Screen must equal the screen name.
	Screen string
	// VersionRange is a semver range, such as ">=2.0.0 <3.0.0", that the app version must satisfy.
	VersionRange string
}

func (t Trigger) clone() Trigger {
	ret := t
	if t.Predicate != nil {
		p := *t.Predicate
		ret.Predicate = &p
	}
	return ret
}

// TriggerEvent is an occurrence fed to the engine.
type TriggerEvent struct {
	Type       TriggerType
	Name       string
	Value      float64
	Properties ldvalue.Value
	RegionID   string
	Screen     string
	Version    string
}

// AppInitEvent is sent once when the client starts.
func AppInitEvent() TriggerEvent { return TriggerEvent{Type: TriggerAppInit, Value: 1} }

// ForegroundEvent is sent when the application enters the foreground.
func ForegroundEvent() TriggerEvent { return TriggerEvent{Type: TriggerForeground, Value: 1} }

// BackgroundEvent is sent when the application enters the background.
func BackgroundEvent() TriggerEvent { return TriggerEvent{Type: TriggerBackground, Value: 1} }

// AppActiveEvent is sent when the application becomes active.
func AppActiveEvent() TriggerEvent { return TriggerEvent{Type: TriggerAppActive, Value: 1} }

// ScreenEvent is sent when a screen is viewed.
func ScreenEvent(screen string) TriggerEvent {
	return TriggerEvent{Type: TriggerScreen, Screen: screen, Value: 1}
}

// RegionEnterEvent is sent when the device enters a region.
func RegionEnterEvent(regionID string) TriggerEvent {
	return TriggerEvent{Type: TriggerRegionEnter, RegionID: regionID, Value: 1}
}

// RegionExitEvent is sent when the device leaves a region.
func RegionExitEvent(regionID string) TriggerEvent {
	return TriggerEvent{Type: TriggerRegionExit, RegionID: regionID, Value: 1}
}

// VersionEvent is sent when the client starts with an app version different from the last run.
func VersionEvent(version string) TriggerEvent {
	return TriggerEvent{Type: TriggerVersion, Version: version, Value: 1}
}

// CustomEvent is sent when a custom event is recorded. It counts toward both
// TriggerCustomEventCount triggers (by one) and TriggerCustomEventValue triggers (by value).
func CustomEvent(name string, value float64, properties ldvalue.Value) TriggerEvent {
	return TriggerEvent{Type: TriggerCustomEventCount, Name: name, Value: value, Properties: properties}
}

// increment returns how much the event advances the trigger, or false if it does not match.
func (t Trigger) increment(e TriggerEvent) (float64, bool) {
	switch t.Type {
	case TriggerCustomEventCount:
		if e.Type != TriggerCustomEventCount || !t.Predicate.matchesCustomEvent(e) {
			return 0, false
		}
		return 1, true
	case TriggerCustomEventValue:
		if e.Type != TriggerCustomEventCount || e.Value == 0 || !t.Predicate.matchesCustomEvent(e) {
			return 0, false
		}
		return e.Value, true
	case TriggerActiveSession:
		return 1, e.Type == TriggerForeground
	case TriggerScreen:
		return 1, e.Type == t.Type && (t.Predicate == nil || t.Predicate.Screen == "" || t.Predicate.Screen == e.Screen)
	case TriggerRegionEnter, TriggerRegionExit:
		return 1, e.Type == t.Type && (t.Predicate == nil || t.Predicate.RegionID == "" || t.Predicate.RegionID == e.RegionID)
	case TriggerVersion:
		return 1, e.Type == t.Type && t.Predicate.matchesVersion(e.Version)
	default:
		return 1, e.Type == t.Type
	}
}

func (p *TriggerPredicate) matchesCustomEvent(e TriggerEvent) bool {
	if p == nil {
		return true
	}
	if p.EventName != "" && p.EventName != e.Name {
		return false
	}
	if p.Properties.Type() != ldvalue.ObjectType {
		return true
	}
	for _, key := range p.Properties.Keys(nil) {
		actual, ok := e.Properties.TryGetByKey(key)
		if !ok || !actual.Equal(p.Properties.GetByKey(key)) {
			return false
		}
	}
	return true
}

func (p *TriggerPredicate) matchesVersion(version string) bool {
	if p == nil || p.VersionRange == "" {
		return true
	}
	return VersionInRange(version, p.VersionRange)
}

// VersionInRange returns true if version satisfies the semver range. Versions are parsed
// tolerantly, so "2.1" is treated as "2.1.0". An unparseable version or range never matches.
func VersionInRange(version, versionRange string) bool {
	v, err := semver.ParseTolerant(version)
	if err != nil {
		return false
	}
	r, err := semver.ParseRange(versionRange)
	if err != nil {
		return false
	}
	return r(v)
}
