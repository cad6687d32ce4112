package pkclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/sync/errgroup"

	"github.com/pushkit/go-client-sdk/interfaces"
	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/endpoints"
	"github.com/pushkit/go-client-sdk/internal/remotedata"
	"github.com/pushkit/go-client-sdk/pkactions"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkcomponents"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/pkinapp"
	"github.com/pushkit/go-client-sdk/pktaggroups"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// Version is the SDK version.
const Version = internal.SDKVersion

// Headers added to every analytics upload.
const (
	ChannelIDHeader      = "X-PK-Channel-ID"
	AppVersionHeader     = "X-PK-App-Version"
	LocaleLanguageHeader = "X-PK-Locale-Language"
	LocaleCountryHeader  = "X-PK-Locale-Country"
	NamedUserIDHeader    = "X-PK-Named-User-ID"
	SDKVersionHeader     = "X-PK-Lib-Version"
)

const (
	installedKey        = "pk.client.installed"
	lastAppVersionKey   = "pk.client.last_app_version"
	channelIDKey        = "pk.client.channel_id"
	namedUserIDKey      = "pk.client.named_user_id"
	analyticsEnabledKey = "pk.client.analytics_enabled"
)

var (
	// ErrInitializationTimeout is returned by MakeClient or MakeCustomClient if the remote data
	// source has not delivered its first payloads within the timeout.
	ErrInitializationTimeout = errors.New("timeout encountered waiting for pushkit client initialization")

	// ErrInitializationFailed is returned by MakeClient or MakeCustomClient if the remote data
	// source failed permanently before delivering any payloads, for instance because the app key
	// was rejected.
	ErrInitializationFailed = errors.New("pushkit client initialization failed")

	errEmptyEventName = errors.New("custom event name must not be empty")
)

// Client is the pushkit SDK client.
//
// It owns the analytics event manager, the tag-group registrar and lookup cache, the in-app
// messaging manager with its automation engine, the action automation manager with another, and
// the remote data source that feeds in-app messages. The application tells the client about
// lifecycle transitions (OnAppInit, OnForeground, OnBackground), screens and custom events; these
// are recorded as analytics events and fed to both automation engines as triggers.
//
// Create it with MakeClient or MakeCustomClient, and call Close when the application shuts down.
// All methods are safe for concurrent use.
type Client struct {
	appKey           string
	loggers          ldlog.Loggers
	offline          bool
	appInfo          interfaces.ApplicationInfo
	isNewUser        bool
	dataStore        subsystems.KeyValueStore
	eventManager     pkevents.EventManager
	tagHistory       *pktaggroups.MutationHistory
	registrar        *pktaggroups.Registrar
	tagLookup        *pktaggroups.LookupManager
	inApp            *pkinapp.Manager
	scheduleStore    pkautomation.ScheduleStore
	inAppRemoteData  *pkinapp.RemoteDataClient
	actions          *pkactions.Manager
	actionStore      pkautomation.ScheduleStore
	dispatcher       *remotedata.Dispatcher
	remoteDataSource subsystems.RemoteDataSource
	remoteDataDone   chan struct{}
	eventBroadcaster *internal.Broadcaster[pkevents.Event]
	analyticsEnabled atomic.Bool
	now              func() time.Time
	closeOnce        sync.Once

	lock               sync.RWMutex
	sessionID          string
	channelID          string
	namedUserID        string
	notificationsOptIn bool
	locationOptIn      bool
	deviceTags         []string
	currentScreen      string
	previousScreen     string
	screenEntered      time.Time
}

// MakeClient creates a new client instance that connects to pushkit with the default configuration.
//
// For advanced configuration options, use MakeCustomClient.
//
// If waitFor is greater than zero, the constructor waits up to that long for the remote data
// source to deliver its first payloads. A timeout returns ErrInitializationTimeout along with a
// working client, which keeps trying in the background.
func MakeClient(appKey string, waitFor time.Duration) (*Client, error) {
	// Ensure that this is created with an empty Config so all of the defaults are used.
	return MakeCustomClient(appKey, Config{}, waitFor)
}

// MakeCustomClient creates a new client instance that connects to pushkit with a custom configuration.
//
// The config parameter allows customization of all SDK properties; some of these are represented
// directly as fields in Config, while others are set by builder methods on a more specific
// configuration object. See Config for details.
//
// If a component cannot be built, MakeCustomClient returns a nil client and the error. The
// waitFor behavior is the same as MakeClient's.
func MakeCustomClient(appKey string, config Config, waitFor time.Duration) (*Client, error) {
	closeWhenReady := make(chan struct{})

	client := &Client{
		appKey:           appKey,
		offline:          config.Offline,
		appInfo:          config.ApplicationInfo,
		eventBroadcaster: internal.NewBroadcaster[pkevents.Event](),
		remoteDataDone:   make(chan struct{}),
		sessionID:        uuid.NewString(),
		now:              time.Now,
	}

	clientContext, err := newClientContextFromConfig(appKey, config, client)
	if err != nil {
		return nil, err
	}
	client.loggers = clientContext.GetLogging().Loggers
	client.dataStore = clientContext.GetDataStore()
	client.loggers.Infof("Starting pushkit client %s", Version)

	client.isNewUser = client.detectNewUser()
	client.channelID = client.loadString(channelIDKey)
	client.namedUserID = client.loadString(namedUserIDKey)
	client.analyticsEnabled.Store(client.loadAnalyticsEnabled())

	client.setUpTagGroups(clientContext)

	if err := client.setUpAnalytics(config, clientContext); err != nil {
		client.closeAfterFailedStart()
		return nil, err
	}
	if !client.analyticsEnabled.Load() {
		client.eventManager.SetUploadsEnabled(false)
	}

	if err := client.setUpInAppMessaging(config, clientContext); err != nil {
		client.closeAfterFailedStart()
		return nil, err
	}
	if err := client.setUpActionAutomation(config, clientContext); err != nil {
		client.closeAfterFailedStart()
		return nil, err
	}

	client.dispatcher = remotedata.NewDispatcher()
	clientContext.RemoteDataUpdateSink = client.dispatcher
	go client.runInAppRemoteData(client.dispatcher.Subscribe(pkinapp.RemoteDataPayloadType))

	if err := client.setUpRemoteData(config, clientContext); err != nil {
		client.closeAfterFailedStart()
		return nil, err
	}

	client.remoteDataSource.Start(closeWhenReady)
	if waitFor > 0 && !config.Offline {
		client.loggers.Infof("Waiting up to %d milliseconds for pushkit client to start...",
			waitFor/time.Millisecond)
		timeout := time.After(waitFor)
		for {
			select {
			case <-closeWhenReady:
				if !client.remoteDataSource.IsInitialized() {
					client.loggers.Warn("pushkit client initialization failed")
					return client, ErrInitializationFailed
				}
				client.loggers.Info("Initialized pushkit client")
				return client, nil
			case <-timeout:
				client.loggers.Warn("Timeout encountered waiting for pushkit client initialization")
				go func() { <-closeWhenReady }() // Don't block the remote data source when not waiting
				return client, ErrInitializationTimeout
			}
		}
	}
	go func() { <-closeWhenReady }() // Don't block the remote data source when not waiting
	return client, nil
}

func (c *Client) setUpTagGroups(clientContext *clientContextImpl) {
	loggers := clientContext.GetLogging().Loggers
	deviceURI := endpoints.SelectBaseURI(clientContext.GetServiceEndpoints(), endpoints.DeviceService, loggers)
	httpConfig := clientContext.GetHTTP()
	apiClient := pktaggroups.NewHTTPAPIClient(httpConfig.CreateHTTPClient(), deviceURI,
		httpConfig.DefaultHeaders, loggers)

	c.tagHistory = pktaggroups.NewMutationHistory(c.dataStore, loggers)
	c.registrar = pktaggroups.NewRegistrar(c.tagHistory, apiClient, c.tagIdentifier, loggers)
	c.tagLookup = pktaggroups.NewLookupManager(pktaggroups.LookupConfig{
		Client:    apiClient,
		History:   c.tagHistory,
		ChannelID: c.ChannelID,
		Disabled:  c.offline,
		Loggers:   loggers,
	})
}

func (c *Client) setUpAnalytics(config Config, clientContext *clientContextImpl) error {
	factory := config.Analytics
	if c.offline {
		factory = pkcomponents.NoAnalytics()
	} else if factory == nil {
		factory = pkcomponents.Analytics()
	}
	eventManager, err := factory.Build(clientContext)
	if err != nil {
		return err
	}
	c.eventManager = eventManager
	return nil
}

func (c *Client) setUpInAppMessaging(config Config, clientContext *clientContextImpl) error {
	factory := config.InAppMessaging
	if factory == nil {
		factory = pkcomponents.InAppMessaging()
	}
	managerConfig, err := factory.Build(clientContext)
	if err != nil {
		return err
	}
	managerConfig.Recorder = c
	managerConfig.AudienceChecker = pkinapp.DefaultAudienceChecker{
		Environment: c.environment,
		TagLookup:   c.tagLookup,
	}
	c.scheduleStore = managerConfig.Store
	c.inApp = pkinapp.NewManager(managerConfig)
	c.inAppRemoteData = pkinapp.NewRemoteDataClient(pkinapp.RemoteDataClientConfig{
		Manager:   c.inApp,
		Store:     c.dataStore,
		IsNewUser: c.isNewUser,
		Loggers:   managerConfig.Loggers,
	})
	return nil
}

func (c *Client) setUpRemoteData(config Config, clientContext *clientContextImpl) error {
	factory := config.RemoteData
	if c.offline {
		factory = pkcomponents.NoRemoteData()
	} else if factory == nil {
		factory = pkcomponents.PollingRemoteData()
	}
	source, err := factory.Build(clientContext)
	if err != nil {
		return err
	}
	c.remoteDataSource = source
	return nil
}

func (c *Client) runInAppRemoteData(payloads <-chan subsystems.RemoteDataPayload) {
	defer close(c.remoteDataDone)
	for payload := range payloads {
		if err := c.inAppRemoteData.ProcessPayload(context.Background(), payload); err != nil {
			c.loggers.Errorf("Unable to process in-app message payload: %s", err)
		}
	}
}

// Close shuts down the client. It stops the remote data source and both automation engines,
// cancels any upload in flight, and closes the stores. Stored events and schedules remain in
// persistent stores for the next run.
//
// Close returns the first error reported by a component, after every component has been closed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.loggers.Info("Closing pushkit client")
		err = c.closeComponents()
	})
	return err
}

func (c *Client) closeAfterFailedStart() {
	c.closeOnce.Do(func() {
		_ = c.closeComponents()
	})
}

func (c *Client) closeComponents() error {
	var errs []error

	// Remote data is stopped first so that no payload reaches a closed manager.
	if c.remoteDataSource != nil {
		errs = append(errs, c.remoteDataSource.Close())
	}
	if c.dispatcher != nil {
		c.dispatcher.Close()
		<-c.remoteDataDone
	}

	var g errgroup.Group
	if c.eventManager != nil {
		g.Go(c.eventManager.Close)
	}
	if c.inApp != nil {
		g.Go(c.inApp.Close)
	}
	if c.actions != nil {
		g.Go(c.actions.Close)
	}
	errs = append(errs, g.Wait())

	if c.scheduleStore != nil {
		errs = append(errs, c.scheduleStore.Close())
	}
	if c.actionStore != nil {
		errs = append(errs, c.actionStore.Close())
	}
	c.eventBroadcaster.Close()
	if c.dataStore != nil {
		errs = append(errs, c.dataStore.Close())
	}
	return errors.Join(errs...)
}

// IsOffline returns whether the client is in offline mode.
func (c *Client) IsOffline() bool {
	return c.offline
}

// IsNewUser returns true if this is the first run of the application with this data store.
func (c *Client) IsNewUser() bool {
	return c.isNewUser
}

// SessionID returns the ID of the current session. A new session starts on each OnForeground.
func (c *Client) SessionID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.sessionID
}

// InAppMessaging returns the in-app messaging manager.
func (c *Client) InAppMessaging() *pkinapp.Manager {
	return c.inApp
}

// Automation returns the automation engine that runs action schedules. In-app message schedules
// run on InAppMessaging().Engine().
func (c *Client) Automation() *pkautomation.Engine {
	return c.actions.Engine()
}

// ChannelID returns the device's channel ID, or "" if it has not been set.
func (c *Client) ChannelID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.channelID
}

// SetChannelID sets the device's channel ID, which is assigned by channel registration. It
// identifies the device for tag-group uploads and lookups and is sent with analytics uploads.
func (c *Client) SetChannelID(channelID string) {
	c.lock.Lock()
	c.channelID = channelID
	c.lock.Unlock()
	c.storeString(channelIDKey, channelID)
}

// NamedUserID returns the named user the device is associated with, or "".
func (c *Client) NamedUserID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.namedUserID
}

// SetNamedUserID associates the device with a named user, or clears the association if the ID is
// empty. Pending named-user tag mutations are discarded when the named user changes.
func (c *Client) SetNamedUserID(namedUserID string) {
	c.lock.Lock()
	changed := c.namedUserID != namedUserID
	c.namedUserID = namedUserID
	c.lock.Unlock()
	if changed {
		c.tagHistory.ClearPendingMutations(pktaggroups.NamedUserType)
		c.storeString(namedUserIDKey, namedUserID)
	}
}

// SetNotificationsOptIn records whether the user has opted in to notifications, for audience checks.
func (c *Client) SetNotificationsOptIn(optIn bool) {
	c.lock.Lock()
	c.notificationsOptIn = optIn
	c.lock.Unlock()
}

// SetLocationOptIn records whether the user has opted in to location, for audience checks.
func (c *Client) SetLocationOptIn(optIn bool) {
	c.lock.Lock()
	c.locationOptIn = optIn
	c.lock.Unlock()
}

// SetDeviceTags sets the device tags that audience tag selectors are checked against.
func (c *Client) SetDeviceTags(tags ...string) {
	c.lock.Lock()
	c.deviceTags = append([]string(nil), tags...)
	c.lock.Unlock()
}

// DeviceTags returns the tags set by SetDeviceTags or changed by the tag actions.
func (c *Client) DeviceTags() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]string(nil), c.deviceTags...)
}

func (c *Client) changeDeviceTags(tags []string, add bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	kept := c.deviceTags[:0:0]
	for _, t := range c.deviceTags {
		if !slices.Contains(tags, t) {
			kept = append(kept, t)
		}
	}
	if add {
		kept = append(kept, tags...)
	}
	c.deviceTags = kept
}

// AnalyticsHeaders implements pkevents.Delegate.
func (c *Client) AnalyticsHeaders() http.Header {
	h := make(http.Header)
	h.Set(SDKVersionHeader, Version)
	if id := c.ChannelID(); id != "" {
		h.Set(ChannelIDHeader, id)
	}
	if id := c.NamedUserID(); id != "" {
		h.Set(NamedUserIDHeader, id)
	}
	if c.appInfo.ApplicationVersion != "" {
		h.Set(AppVersionHeader, c.appInfo.ApplicationVersion)
	}
	if lang := c.appInfo.LanguageCode(); lang != "" {
		h.Set(LocaleLanguageHeader, lang)
	}
	if country := c.appInfo.CountryCode(); country != "" {
		h.Set(LocaleCountryHeader, country)
	}
	return h
}

func (c *Client) environment() pkinapp.Environment {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return pkinapp.Environment{
		IsNewUser:          c.isNewUser,
		NotificationsOptIn: c.notificationsOptIn,
		LocationOptIn:      c.locationOptIn,
		Locale:             c.appInfo.Locale,
		AppVersion:         c.appInfo.ApplicationVersion,
		DeviceTags:         append([]string(nil), c.deviceTags...),
	}
}

func (c *Client) tagIdentifier(t pktaggroups.Type) string {
	switch t {
	case pktaggroups.NamedUserType:
		return c.NamedUserID()
	default:
		return c.ChannelID()
	}
}

func (c *Client) detectNewUser() bool {
	_, found, err := c.dataStore.Get(installedKey)
	if err != nil {
		c.loggers.Warnf("Unable to read install state, assuming an existing user: %s", err)
		return false
	}
	if found {
		return false
	}
	if err := c.dataStore.Set(installedKey, ldvalue.Bool(true)); err != nil {
		c.loggers.Errorf("Unable to persist install state: %s", err)
	}
	return true
}

func (c *Client) loadAnalyticsEnabled() bool {
	value, found, err := c.dataStore.Get(analyticsEnabledKey)
	if err != nil || !found {
		return true
	}
	return value.BoolValue()
}

func (c *Client) loadString(key string) string {
	value, _, err := c.dataStore.Get(key)
	if err != nil {
		c.loggers.Warnf("Unable to read %s: %s", key, err)
	}
	return value.StringValue()
}

func (c *Client) storeString(key, value string) {
	var err error
	if value == "" {
		err = c.dataStore.Remove(key)
	} else {
		err = c.dataStore.Set(key, ldvalue.String(value))
	}
	if err != nil {
		c.loggers.Errorf("Unable to persist %s: %s", key, err)
	}
}

func wrapTagError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("tag group upload failed: %w", err)
}
