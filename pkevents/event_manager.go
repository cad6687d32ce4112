package pkevents

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/internal/retriable"
	"github.com/pushkit/go-client-sdk/subsystems"
)

const (
	// DefaultBatchDelay is the default value for EventsConfiguration.BatchDelay.
	DefaultBatchDelay = 15 * time.Second
	// DefaultInboxCapacity is the default value for EventsConfiguration.InboxCapacity.
	DefaultInboxCapacity = 1000
	// DefaultUploadRetries is the default value for EventsConfiguration.MaxRetries.
	DefaultUploadRetries = 3

	// LastSendTimeKey is the key-value store key holding the time of the last successful upload, in
	// Unix milliseconds.
	LastSendTimeKey = "pk.analytics.last_send_time"
)

// EventManager stores analytics events and uploads them in batches.
//
// All methods are asynchronous and safe for concurrent use; the work is done on a single goroutine
// that owns the event store.
type EventManager interface {
	// AddEvent stores an event and schedules an upload according to the event's priority.
	AddEvent(event Event, sessionID string)
	// ScheduleUpload asks for an upload after the delay for the given priority, or after the minimum
	// batch interval has elapsed since the last upload, whichever is later. If an upload is already
	// scheduled at least as soon, or is in flight, this does nothing.
	ScheduleUpload(priority Priority)
	// Flush asks for an upload as soon as possible, ignoring the minimum batch interval.
	Flush()
	// CancelUpload cancels a scheduled upload and any upload in flight. The store is left untouched.
	CancelUpload()
	// DeleteAllEvents cancels uploads and removes every stored event.
	DeleteAllEvents()
	// SetUploadsEnabled turns uploading on or off. Events are still stored while uploads are off.
	SetUploadsEnabled(enabled bool)
	// LastSendTime returns the time of the last successful upload, or the zero time.
	LastSendTime() time.Time
	// Close stops all activity and closes the event store. An upload in flight is cancelled; stored
	// events remain in the store.
	Close() error
}

// Delegate supplies request headers for event uploads.
type Delegate interface {
	// AnalyticsHeaders returns headers describing the device, added to each upload request.
	AnalyticsHeaders() http.Header
}

// EventsConfiguration contains the collaborators and options of the event manager.
type EventsConfiguration struct {
	// Store holds events until they are uploaded. If nil, an in-memory store is used. The manager
	// closes it when the manager is closed.
	Store EventStore
	// Sender delivers batches. It is required.
	Sender EventSender
	// Policy supplies the batch limits. If nil, a policy without a key-value store is used.
	Policy *BatchPolicy
	// KeyValueStore persists the last send time. It may be nil.
	KeyValueStore subsystems.KeyValueStore
	// Delegate supplies upload headers. It may be nil.
	Delegate Delegate
	// BatchDelay is how long a normal-priority event waits before an upload is attempted.
	BatchDelay time.Duration
	// InboxCapacity is the number of calls that can be queued for the manager's goroutine before
	// events start being dropped.
	InboxCapacity int
	// MaxRetries is the number of times a failed upload is retried before giving up until the next
	// scheduled attempt.
	MaxRetries int
	// RetryBackoff controls the delay between retries.
	RetryBackoff retriable.Backoff
	// UploadsDisabled starts the manager with uploads turned off.
	UploadsDisabled bool
	// Loggers is the destination for log output.
	Loggers ldlog.Loggers
}

type eventClock struct {
	now      func() time.Time
	newTimer func(time.Duration) (<-chan time.Time, func() bool)
}

func realClock() eventClock {
	return eventClock{
		now: time.Now,
		newTimer: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
}

type defaultEventManager struct {
	inboxCh       chan eventManagerMessage
	stoppedCh     chan struct{}
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	lastSendTime  atomic.Int64
	loggers       ldlog.Loggers
}

type eventDispatcher struct {
	config     EventsConfiguration
	clock      eventClock
	owner      *defaultEventManager
	pipeline   *retriable.Pipeline
	enabled    bool
	lastSend   time.Time
	timerCh    <-chan time.Time
	stopTimer  func() bool
	fireAt     time.Time
	inFlight   *retriable.Operation
	generation int
}

// Payload of the inboxCh channel.
type eventManagerMessage interface{}

type addEventMessage struct {
	event     Event
	sessionID string
}

type scheduleUploadMessage struct {
	priority Priority
	flush    bool
}

type cancelUploadMessage struct{}

type deleteAllEventsMessage struct{}

type setUploadsEnabledMessage struct {
	enabled bool
}

type uploadCompletedMessage struct {
	generation int
	ids        []string
	result     EventSenderResult
	err        error
}

type syncEventsMessage struct {
	replyCh chan struct{}
}

type shutdownEventsMessage struct {
	replyCh chan struct{}
}

// NewEventManager creates the standard EventManager and starts its goroutine.
func NewEventManager(config EventsConfiguration) EventManager {
	return newEventManager(config, realClock())
}

func newEventManager(config EventsConfiguration, clock eventClock) *defaultEventManager {
	if config.Store == nil {
		config.Store = NewInMemoryEventStore()
	}
	if config.Policy == nil {
		config.Policy = NewBatchPolicy(nil, config.Loggers)
	}
	if config.BatchDelay < 0 {
		config.BatchDelay = 0
	}
	if config.InboxCapacity <= 0 {
		config.InboxCapacity = DefaultInboxCapacity
	}
	if config.MaxRetries < 0 && config.MaxRetries != retriable.UnlimitedRetries {
		config.MaxRetries = 0
	}
	em := &defaultEventManager{
		inboxCh:   make(chan eventManagerMessage, config.InboxCapacity),
		stoppedCh: make(chan struct{}),
		loggers:   config.Loggers,
	}
	ed := &eventDispatcher{
		config:   config,
		clock:    clock,
		owner:    em,
		pipeline: retriable.NewPipeline(config.Loggers),
		enabled:  !config.UploadsDisabled,
	}
	ed.loadLastSendTime()
	go ed.runMainLoop()
	return em
}

func (em *defaultEventManager) AddEvent(event Event, sessionID string) {
	em.postNonBlockingMessageToInbox(addEventMessage{event: event, sessionID: sessionID})
}

func (em *defaultEventManager) ScheduleUpload(priority Priority) {
	em.postNonBlockingMessageToInbox(scheduleUploadMessage{priority: priority})
}

func (em *defaultEventManager) Flush() {
	em.postNonBlockingMessageToInbox(scheduleUploadMessage{priority: PriorityHigh, flush: true})
}

func (em *defaultEventManager) CancelUpload() {
	em.postMessageToInbox(cancelUploadMessage{})
}

func (em *defaultEventManager) DeleteAllEvents() {
	em.postMessageToInbox(deleteAllEventsMessage{})
}

func (em *defaultEventManager) SetUploadsEnabled(enabled bool) {
	em.postMessageToInbox(setUploadsEnabledMessage{enabled: enabled})
}

func (em *defaultEventManager) LastSendTime() time.Time {
	ms := em.lastSendTime.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (em *defaultEventManager) Close() error {
	em.closeOnce.Do(func() {
		m := shutdownEventsMessage{replyCh: make(chan struct{}, 1)}
		if em.postMessageToInbox(m) {
			em.awaitReply(m.replyCh)
		}
	})
	return nil
}

// sync waits until every message posted so far has been processed. Used in tests.
func (em *defaultEventManager) sync() {
	m := syncEventsMessage{replyCh: make(chan struct{}, 1)}
	if em.postMessageToInbox(m) {
		em.awaitReply(m.replyCh)
	}
}

func (em *defaultEventManager) awaitReply(replyCh <-chan struct{}) {
	select {
	case <-replyCh:
	case <-em.stoppedCh:
	}
}

func (em *defaultEventManager) postNonBlockingMessageToInbox(m eventManagerMessage) bool {
	select {
	case <-em.stoppedCh:
		return false
	default:
	}
	select {
	case em.inboxCh <- m:
		return true
	default:
	}
	// If the inbox is full, the manager's goroutine is badly backed up, most likely behind a slow
	// store. Blocking the caller could stall the application, so the event is dropped instead. The
	// warning is only logged once.
	em.inboxFullOnce.Do(func() {
		em.loggers.Warn("Events are being produced faster than they can be processed; some events will be dropped")
	})
	return false
}

// Control messages must not be dropped, so these block until there is room in the inbox.
func (em *defaultEventManager) postMessageToInbox(m eventManagerMessage) bool {
	select {
	case em.inboxCh <- m:
		return true
	case <-em.stoppedCh:
		return false
	}
}

func (ed *eventDispatcher) runMainLoop() {
	defer func() {
		if err := recover(); err != nil {
			ed.config.Loggers.Errorf("Unexpected panic in event manager goroutine: %+v", err)
			ed.shutdown()
		}
	}()

	if count, err := ed.config.Store.Count(); err == nil && count > 0 {
		ed.config.Loggers.Debugf("Found %d stored events", count)
		ed.scheduleUpload(PriorityNormal)
	}

	for {
		select {
		case message := <-ed.owner.inboxCh:
			switch m := message.(type) {
			case addEventMessage:
				ed.addEvent(m.event, m.sessionID)
			case scheduleUploadMessage:
				if m.flush {
					ed.flush()
				} else {
					ed.scheduleUpload(m.priority)
				}
			case cancelUploadMessage:
				ed.cancelUpload()
			case deleteAllEventsMessage:
				ed.cancelUpload()
				if err := ed.config.Store.DeleteAll(); err != nil {
					ed.config.Loggers.Errorf("Unable to delete stored events: %s", err)
				}
			case setUploadsEnabledMessage:
				ed.setUploadsEnabled(m.enabled)
			case uploadCompletedMessage:
				ed.handleUploadCompleted(m)
			case syncEventsMessage:
				m.replyCh <- struct{}{}
			case shutdownEventsMessage:
				ed.shutdown()
				m.replyCh <- struct{}{}
				return
			}
		case <-ed.timerCh:
			ed.timerCh, ed.stopTimer = nil, nil
			ed.startUpload()
		}
	}
}

func (ed *eventDispatcher) shutdown() {
	ed.stopUploadTimer()
	ed.pipeline.Close()
	if err := ed.config.Store.Close(); err != nil {
		ed.config.Loggers.Warnf("Unable to close event store: %s", err)
	}
	close(ed.owner.stoppedCh)
}

func (ed *eventDispatcher) addEvent(event Event, sessionID string) {
	stored, err := ToStoredEvent(event, sessionID)
	if err != nil {
		ed.config.Loggers.Errorf("Dropping event: %s", err)
		return
	}
	limits := ed.config.Policy.Current()
	if stored.Size > limits.MaxTotalStoreSizeBytes {
		ed.config.Loggers.Warnf("Dropping %s event of %d bytes: %s", event.Type, stored.Size, ErrStoreFull)
		return
	}
	if stored.Size > limits.MaxBatchSizeBytes {
		ed.config.Loggers.Warnf("Dropping %s event of %d bytes: %s", event.Type, stored.Size, ErrEventTooLarge)
		return
	}
	pruned, err := ed.config.Store.Prune(limits.MaxTotalStoreSizeBytes - stored.Size)
	if err != nil {
		ed.config.Loggers.Errorf("Unable to prune event store; dropping %s event: %s", event.Type, err)
		return
	}
	if pruned > 0 {
		ed.config.Loggers.Warnf("Event store is full; pruned %d events", pruned)
	}
	if err := ed.config.Store.Append(stored); err != nil {
		ed.config.Loggers.Errorf("Unable to store %s event: %s", event.Type, err)
		return
	}
	ed.scheduleUpload(event.Priority)
}

func (ed *eventDispatcher) uploadDelay(priority Priority) time.Duration {
	limits := ed.config.Policy.Current()
	var delay time.Duration
	switch priority {
	case PriorityHigh:
		delay = 0
	case PriorityLow:
		delay = limits.MaxUploadWait
	default:
		delay = ed.config.BatchDelay
	}
	if !ed.lastSend.IsZero() {
		cooldown := ed.lastSend.Add(limits.MinBatchInterval).Sub(ed.clock.now())
		if cooldown > delay {
			delay = cooldown
		}
	}
	return delay
}

func (ed *eventDispatcher) scheduleUpload(priority Priority) {
	if !ed.enabled || ed.inFlight != nil {
		return
	}
	ed.armUploadTimer(ed.uploadDelay(priority))
}

func (ed *eventDispatcher) flush() {
	if !ed.enabled || ed.inFlight != nil {
		return
	}
	ed.armUploadTimer(0)
}

// armUploadTimer schedules the upload after delay, unless it is already scheduled at least as soon.
// There is never more than one timer.
func (ed *eventDispatcher) armUploadTimer(delay time.Duration) {
	fireAt := ed.clock.now().Add(delay)
	if ed.timerCh != nil && !fireAt.Before(ed.fireAt) {
		return
	}
	ed.stopUploadTimer()
	ed.fireAt = fireAt
	ed.timerCh, ed.stopTimer = ed.clock.newTimer(delay)
	ed.config.Loggers.Debugf("Event upload scheduled in %s", delay)
}

func (ed *eventDispatcher) stopUploadTimer() {
	if ed.stopTimer != nil {
		ed.stopTimer()
	}
	ed.timerCh, ed.stopTimer = nil, nil
}

func (ed *eventDispatcher) startUpload() {
	if !ed.enabled || ed.inFlight != nil {
		return
	}
	limits := ed.config.Policy.Current()
	events, err := ed.config.Store.Snapshot(limits.MaxBatchSizeBytes)
	if err != nil {
		ed.config.Loggers.Errorf("Unable to read stored events: %s", err)
		ed.armUploadTimer(ed.retryInterval())
		return
	}
	if len(events) == 0 {
		return
	}

	body := buildBatchBody(events)
	var headers http.Header
	if ed.config.Delegate != nil {
		headers = ed.config.Delegate.AnalyticsHeaders()
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	var result EventSenderResult
	sender := ed.config.Sender
	op := ed.pipeline.Execute(retriable.Retriable{
		Name:       "upload events",
		MaxRetries: ed.config.MaxRetries,
		Backoff:    ed.config.RetryBackoff,
		Run: func(ctx context.Context) retriable.Result {
			result = sender.SendEventData(ctx, body, headers, len(events))
			switch {
			case result.Success:
				return retriable.Success
			case result.Recoverable():
				return retriable.Retry
			default:
				return retriable.Cancel
			}
		},
	})

	ed.generation++
	ed.inFlight = op
	generation := ed.generation
	go func() {
		<-op.Done()
		m := uploadCompletedMessage{generation: generation, ids: ids, result: result, err: op.Err()}
		select {
		case ed.owner.inboxCh <- m:
		case <-ed.owner.stoppedCh:
		}
	}()
}

func (ed *eventDispatcher) handleUploadCompleted(m uploadCompletedMessage) {
	if m.generation != ed.generation || ed.inFlight == nil {
		// The upload was cancelled. Even if the request went through, the events stay in the store
		// and will be uploaded again; delivery is at-least-once.
		return
	}
	ed.inFlight = nil

	if m.err != nil {
		ed.config.Loggers.Warnf("Upload of %d events failed (%s); will try again later", len(m.ids), m.err)
		ed.armUploadTimer(ed.retryInterval())
		return
	}

	if err := ed.config.Store.Delete(m.ids); err != nil {
		ed.config.Loggers.Errorf("Unable to delete uploaded events: %s", err)
	}
	ed.config.Loggers.Debugf("Uploaded %d events", len(m.ids))
	ed.setLastSendTime(ed.clock.now())
	ed.config.Policy.UpdateFromHeaders(m.result.Headers)
	if count, err := ed.config.Store.Count(); err == nil && count > 0 {
		ed.scheduleUpload(PriorityNormal)
	}
}

// retryInterval is the wait before the next attempt after a failed upload.
func (ed *eventDispatcher) retryInterval() time.Duration {
	interval := ed.config.Policy.Current().MinBatchInterval
	if ed.config.BatchDelay > interval {
		interval = ed.config.BatchDelay
	}
	return interval
}

func (ed *eventDispatcher) cancelUpload() {
	ed.stopUploadTimer()
	if ed.inFlight != nil {
		ed.inFlight.Cancel()
		ed.inFlight = nil
		ed.generation++
	}
}

func (ed *eventDispatcher) setUploadsEnabled(enabled bool) {
	if enabled == ed.enabled {
		return
	}
	ed.enabled = enabled
	if !enabled {
		ed.cancelUpload()
		return
	}
	if count, err := ed.config.Store.Count(); err == nil && count > 0 {
		ed.scheduleUpload(PriorityNormal)
	}
}

func (ed *eventDispatcher) loadLastSendTime() {
	if ed.config.KeyValueStore == nil {
		return
	}
	value, found, err := ed.config.KeyValueStore.Get(LastSendTimeKey)
	if err != nil {
		ed.config.Loggers.Warnf("Unable to read last event upload time: %s", err)
		return
	}
	if found && value.IsNumber() {
		ms := ldtime.UnixMillisecondTime(value.Float64Value())
		ed.lastSend = time.UnixMilli(int64(ms))
		ed.owner.lastSendTime.Store(int64(ms))
	}
}

func (ed *eventDispatcher) setLastSendTime(t time.Time) {
	ed.lastSend = t
	ms := ldtime.UnixMillisFromTime(t)
	ed.owner.lastSendTime.Store(int64(ms))
	if ed.config.KeyValueStore == nil {
		return
	}
	if err := ed.config.KeyValueStore.Set(LastSendTimeKey, ldvalue.Float64(float64(ms))); err != nil {
		ed.config.Loggers.Warnf("Unable to persist last event upload time: %s", err)
	}
}
