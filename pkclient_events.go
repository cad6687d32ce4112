package pkclient

import (
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkevents"
)

// AddEvent records an analytics event with the current session ID. It is dropped if analytics are
// disabled.
//
// Every recorded event is also delivered to the channels returned by AddEventListener.
func (c *Client) AddEvent(event pkevents.Event) {
	if !c.analyticsEnabled.Load() {
		c.loggers.Debugf("Analytics disabled, dropping %s event", event.Type)
		return
	}
	c.eventManager.AddEvent(event, c.SessionID())
	c.eventBroadcaster.Broadcast(event)
}

// RecordEvent implements pkinapp.EventRecorder.
func (c *Client) RecordEvent(event pkevents.Event) {
	c.AddEvent(event)
}

// AddEventListener returns a channel that receives every analytics event the client records.
//
// It is the caller's responsibility to consume values from the channel. Allowing values to
// accumulate in the channel can cause an SDK goroutine to be blocked.
func (c *Client) AddEventListener() <-chan pkevents.Event {
	return c.eventBroadcaster.AddListener()
}

// RemoveEventListener unsubscribes a channel returned by AddEventListener.
func (c *Client) RemoveEventListener(ch <-chan pkevents.Event) {
	c.eventBroadcaster.RemoveListener(ch)
}

// TrackCustomEvent records an application-defined event and counts it toward custom event
// triggers. The value is summed by value triggers if it is a number; properties, if an object,
// are matched by trigger predicates.
func (c *Client) TrackCustomEvent(name string, value ldvalue.Value, properties ldvalue.Value) error {
	if name == "" {
		return errEmptyEventName
	}
	c.AddEvent(pkevents.NewCustomEvent(name, value, properties))
	c.processTrigger(pkautomation.CustomEvent(name, value.Float64Value(), properties))
	return nil
}

// TrackScreen records that the user is now viewing a screen. The time spent on the previous screen
// is recorded as a screen tracking event. Tracking the current screen again does nothing.
func (c *Client) TrackScreen(screen string) {
	now := c.now()
	c.lock.Lock()
	if screen == c.currentScreen {
		c.lock.Unlock()
		return
	}
	exited, ok := c.exitScreen(now)
	c.previousScreen = c.currentScreen
	c.currentScreen = screen
	c.screenEntered = now
	c.lock.Unlock()

	if ok {
		c.AddEvent(exited)
	}
	if screen != "" {
		c.processTrigger(pkautomation.ScreenEvent(screen))
	}
}

// exitScreen builds the tracking event for the current screen. The caller holds the lock.
func (c *Client) exitScreen(now time.Time) (pkevents.Event, bool) {
	if c.currentScreen == "" {
		return pkevents.Event{}, false
	}
	return pkevents.NewScreenTrackingEvent(c.currentScreen, c.previousScreen, c.screenEntered, now), true
}

// OnAppInit tells the client that the application has started. It records an app_init event,
// fires app-init triggers, and fires version triggers if the application version differs from
// the one seen on the previous run.
func (c *Client) OnAppInit() {
	c.AddEvent(pkevents.NewAppInitEvent())
	c.processTrigger(pkautomation.AppInitEvent())

	version := c.appInfo.ApplicationVersion
	if version == "" {
		return
	}
	if version != c.loadString(lastAppVersionKey) {
		c.storeString(lastAppVersionKey, version)
		c.processTrigger(pkautomation.VersionEvent(version))
	}
}

// OnForeground tells the client that the application became active. It starts a new session,
// records an app_foreground event and fires foreground triggers.
func (c *Client) OnForeground() {
	c.lock.Lock()
	c.sessionID = uuid.NewString()
	c.lock.Unlock()

	c.AddEvent(pkevents.NewAppForegroundEvent())
	c.processTrigger(pkautomation.ForegroundEvent())
	c.processTrigger(pkautomation.AppActiveEvent())
}

// OnBackground tells the client that the application went to the background. The current screen
// is closed out, an app_background event is recorded, background triggers fire, and stored events
// are uploaded as soon as possible.
func (c *Client) OnBackground() {
	c.lock.Lock()
	exited, ok := c.exitScreen(c.now())
	if ok {
		c.previousScreen = c.currentScreen
		c.currentScreen = ""
	}
	c.lock.Unlock()

	if ok {
		c.AddEvent(exited)
	}
	c.AddEvent(pkevents.NewAppBackgroundEvent())
	c.processTrigger(pkautomation.BackgroundEvent())
	c.eventManager.Flush()
}

// OnRegionEnter fires region-enter triggers for a region.
func (c *Client) OnRegionEnter(regionID string) {
	c.processTrigger(pkautomation.RegionEnterEvent(regionID))
}

// OnRegionExit fires region-exit triggers for a region.
func (c *Client) OnRegionExit(regionID string) {
	c.processTrigger(pkautomation.RegionExitEvent(regionID))
}

// SetAnalyticsEnabled turns analytics on or off. The setting is persisted in the data store.
// Disabling analytics deletes every stored event and stops uploads; events added while analytics
// are disabled are dropped.
func (c *Client) SetAnalyticsEnabled(enabled bool) {
	if c.analyticsEnabled.Swap(enabled) == enabled {
		return
	}
	if err := c.dataStore.Set(analyticsEnabledKey, ldvalue.Bool(enabled)); err != nil {
		c.loggers.Errorf("Unable to persist analytics setting: %s", err)
	}
	if !enabled {
		c.eventManager.DeleteAllEvents()
	}
	c.eventManager.SetUploadsEnabled(enabled)
}

// IsAnalyticsEnabled returns whether analytics are enabled.
func (c *Client) IsAnalyticsEnabled() bool {
	return c.analyticsEnabled.Load()
}

// FlushEvents asks for stored events to be uploaded as soon as possible.
func (c *Client) FlushEvents() {
	c.eventManager.Flush()
}

// LastSendTime returns the time of the last successful analytics upload, or the zero time.
func (c *Client) LastSendTime() time.Time {
	return c.eventManager.LastSendTime()
}
