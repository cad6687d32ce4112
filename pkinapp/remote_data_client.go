package pkinapp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// RemoteDataPayloadType is the remote data payload type that carries in-app messages.
const RemoteDataPayloadType = "in_app_messages"

const (
	lastPayloadTimestampKey = "pk.in_app.remote_data.last_payload_timestamp"
	lastPayloadMetadataKey  = "pk.in_app.remote_data.last_payload_metadata"
	newUserCutoffKey        = "pk.in_app.remote_data.new_user_cutoff"
)

// RemoteDataClientConfig configures a RemoteDataClient.
type RemoteDataClientConfig struct {
	// Manager schedules the messages. It is required.
	Manager *Manager
	// Store persists the last processed payload. It may be nil, in which case every payload is
	// processed as if it were the first.
	Store subsystems.KeyValueStore
	// IsNewUser is true on the first run of the application. It sets the new-user cutoff the first
	// time a RemoteDataClient is created for a store.
	IsNewUser bool
	Loggers   ldlog.Loggers
}

// RemoteDataClient turns in_app_messages payloads into message schedules: new messages are
// scheduled, updated ones are edited and those no longer present are cancelled.
type RemoteDataClient struct {
	config RemoteDataClientConfig
	now    func() time.Time
	lock   sync.Mutex
}

// NewRemoteDataClient creates a RemoteDataClient.
func NewRemoteDataClient(config RemoteDataClientConfig) *RemoteDataClient {
	c := &RemoteDataClient{config: config, now: time.Now}
	if config.Store != nil {
		if _, found, err := config.Store.Get(newUserCutoffKey); err == nil && !found {
			// A device that is not new when messaging is first set up must never count as new.
			cutoff := time.UnixMilli(0)
			if config.IsNewUser {
				cutoff = c.now()
			}
			c.setTime(newUserCutoffKey, cutoff)
		}
	}
	return c
}

// NewUserCutoff returns the time after which messages created for new users are dropped: the first
// run for a new user, or the zero Unix time otherwise.
func (c *RemoteDataClient) NewUserCutoff() time.Time {
	return c.getTime(newUserCutoffKey)
}

type remoteMessage struct {
	schedule    MessageSchedule
	created     time.Time
	lastUpdated time.Time
}

// ProcessPayload applies an in_app_messages payload. Payloads of other types are ignored.
func (c *RemoteDataClient) ProcessPayload(ctx context.Context, payload subsystems.RemoteDataPayload) error {
	if payload.Type != RemoteDataPayloadType {
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	manager, loggers := c.config.Manager, c.config.Loggers
	lastTimestamp := c.getTime(lastPayloadTimestampKey)
	lastMetadata := c.getValue(lastPayloadMetadataKey)
	metadataChanged := !payload.Metadata.Equal(lastMetadata)
	cutoff := c.NewUserCutoff()

	existing, err := c.remoteSchedules(ctx)
	if err != nil {
		return err
	}

	var toSchedule []MessageSchedule
	seen := make(map[string]bool)
	messages := payload.Data.GetByKey(RemoteDataPayloadType)
	for i := 0; i < messages.Count(); i++ {
		rm, ok := parseRemoteMessage(messages.GetByIndex(i))
		if !ok {
			loggers.Warnf("Ignoring invalid in-app message at index %d", i)
			continue
		}
		id := rm.schedule.Message.ID
		seen[id] = true

		if schedules, found := existing[id]; found {
			if !metadataChanged && !rm.lastUpdated.After(lastTimestamp) {
				continue
			}
			edits := remoteMessageEdits(rm, payload.Metadata)
			for _, s := range schedules {
				if _, err := manager.EditSchedule(ctx, s.ID, edits); err != nil {
					loggers.Warnf("Unable to update schedule %s of message %s: %s", s.ID, id, err)
				}
			}
			continue
		}

		if !lastTimestamp.IsZero() && !rm.created.After(lastTimestamp) {
			continue
		}
		if a := rm.schedule.Message.Audience; a != nil && a.NewUser != nil && *a.NewUser && rm.created.After(cutoff) {
			loggers.Debugf("Dropping message %s: created after this device stopped being a new user", id)
			continue
		}
		toSchedule = append(toSchedule, rm.schedule)
	}

	if len(toSchedule) > 0 {
		if _, err := manager.ScheduleMessages(ctx, toSchedule, payload.Metadata); err != nil {
			if errors.Is(err, pkautomation.ErrScheduleLimitReached) {
				loggers.Warnf("Unable to schedule %d in-app messages: %s", len(toSchedule), err)
			} else {
				return err
			}
		}
	}

	for id := range existing {
		if !seen[id] {
			if _, err := manager.CancelMessages(ctx, id); err != nil {
				loggers.Warnf("Unable to cancel message %s: %s", id, err)
			}
		}
	}

	c.setTime(lastPayloadTimestampKey, payload.Timestamp)
	c.setValue(lastPayloadMetadataKey, payload.Metadata)
	return nil
}

// remoteSchedules returns the schedules of remote-data messages that have not ended, by message ID.
func (c *RemoteDataClient) remoteSchedules(ctx context.Context) (map[string][]pkautomation.Schedule, error) {
	all, err := c.config.Manager.GetAllSchedules(ctx)
	if err != nil {
		return nil, err
	}
	ret := make(map[string][]pkautomation.Schedule)
	for _, s := range all {
		message := MessageFromValue(s.Info.Data)
		if message.Source != SourceRemoteData {
			continue
		}
		if s.State == pkautomation.StateCancelled {
			continue
		}
		ret[message.ID] = append(ret[message.ID], s)
	}
	return ret, nil
}

func remoteMessageEdits(rm remoteMessage, metadata ldvalue.Value) MessageEdits {
	info := rm.schedule.Info
	message := rm.schedule.Message
	return MessageEdits{
		ScheduleEdits: pkautomation.ScheduleEdits{
			Limit:           &info.Limit,
			Start:           &info.Start,
			End:             &info.End,
			Priority:        &info.Priority,
			Interval:        &info.Interval,
			EditGracePeriod: &info.EditGracePeriod,
			Metadata:        &metadata,
			Triggers:        info.Triggers,
		},
		Message: &message,
	}
}

// parseRemoteMessage parses one entry of the payload:
//
//	{"message": {...}, "created": "2024-01-02T03:04:05Z", "last_updated": "...", "triggers": [...],
//	 "limit": 1, "priority": 0, "start": "...", "end": "...", "delay": 0, "interval": 0,
//	 "edit_grace_period": 14}
//
// delay and interval are seconds, edit_grace_period is days.
func parseRemoteMessage(v ldvalue.Value) (remoteMessage, bool) {
	message := MessageFromValue(v.GetByKey("message"))
	if message.ID == "" {
		return remoteMessage{}, false
	}
	message.Source = SourceRemoteData
	triggersValue := v.GetByKey("triggers")
	triggers := make([]pkautomation.Trigger, 0, triggersValue.Count())
	for i := 0; i < triggersValue.Count(); i++ {
		triggers = append(triggers, pkautomation.TriggerFromValue(triggersValue.GetByIndex(i)))
	}
	info := pkautomation.ScheduleInfo{
		Triggers:        triggers,
		Limit:           v.GetByKey("limit").IntValue(),
		Priority:        v.GetByKey("priority").IntValue(),
		Start:           parseRemoteTime(v.GetByKey("start")),
		End:             parseRemoteTime(v.GetByKey("end")),
		Delay:           time.Duration(v.GetByKey("delay").Float64Value() * float64(time.Second)),
		Interval:        time.Duration(v.GetByKey("interval").Float64Value() * float64(time.Second)),
		EditGracePeriod: time.Duration(v.GetByKey("edit_grace_period").IntValue()) * 24 * time.Hour,
	}
	if info.Validate() != nil {
		return remoteMessage{}, false
	}
	return remoteMessage{
		schedule:    MessageSchedule{Message: message, Info: info},
		created:     parseRemoteTime(v.GetByKey("created")),
		lastUpdated: parseRemoteTime(v.GetByKey("last_updated")),
	}, true
}

var remoteTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"}

func parseRemoteTime(v ldvalue.Value) time.Time {
	if v.IsNumber() {
		return time.UnixMilli(int64(v.Float64Value()))
	}
	for _, layout := range remoteTimeLayouts {
		if t, err := time.Parse(layout, v.StringValue()); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (c *RemoteDataClient) getValue(key string) ldvalue.Value {
	if c.config.Store == nil {
		return ldvalue.Null()
	}
	v, _, err := c.config.Store.Get(key)
	if err != nil {
		c.config.Loggers.Warnf("Unable to read %s: %s", key, err)
		return ldvalue.Null()
	}
	return v
}

func (c *RemoteDataClient) setValue(key string, value ldvalue.Value) {
	if c.config.Store == nil {
		return
	}
	if err := c.config.Store.Set(key, value); err != nil {
		c.config.Loggers.Errorf("Unable to persist %s: %s", key, err)
	}
}

func (c *RemoteDataClient) getTime(key string) time.Time {
	v := c.getValue(key)
	if !v.IsNumber() {
		return time.Time{}
	}
	return time.UnixMilli(int64(ldtime.UnixMillisecondTime(v.Float64Value())))
}

func (c *RemoteDataClient) setTime(key string, t time.Time) {
	c.setValue(key, ldvalue.Float64(float64(ldtime.UnixMillisFromTime(t))))
}
