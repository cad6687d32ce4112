package pkinapp

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/internal/retriable"
	"github.com/pushkit/go-client-sdk/pkautomation"
)

// MessagingDelegate receives display callbacks. Its methods are called from worker goroutines.
type MessagingDelegate interface {
	MessageWillBeDisplayed(message Message, scheduleID string)
	MessageFinishedDisplaying(message Message, scheduleID string, resolution Resolution)
}

// MessageExtender may also be implemented by a MessagingDelegate to change a message before it is
// prepared.
type MessageExtender interface {
	ExtendMessage(message Message) Message
}

// MessageSchedule pairs a message with the schedule that displays it.
type MessageSchedule struct {
	Message Message
	// Info defines the schedule. Its Group and Data are replaced by the message ID and the message.
	Info pkautomation.ScheduleInfo
}

// MessageEdits changes a message schedule. A non-nil Message replaces the message.
type MessageEdits struct {
	pkautomation.ScheduleEdits
	Message *Message
}

// ManagerConfig contains the collaborators and options of a Manager.
type ManagerConfig struct {
	// Store holds the schedules. If nil, an in-memory store is used.
	Store pkautomation.ScheduleStore
	// ScheduleLimit defaults to pkautomation.DefaultScheduleLimit.
	ScheduleLimit int
	// AudienceChecker checks message audiences. If nil, every audience matches.
	AudienceChecker AudienceChecker
	// DisplayCoordinator defaults to a DefaultDisplayCoordinator with DisplayInterval.
	DisplayCoordinator DisplayCoordinator
	DisplayInterval    time.Duration
	AdapterFactories   map[DisplayType]AdapterFactory
	Recorder           EventRecorder
	PrepareRetries     int
	PrepareBackoff     retriable.Backoff
	Loggers            ldlog.Loggers
}

type preparedMessage struct {
	message Message
	adapter Adapter
}

// Manager schedules in-app messages and displays them through adapters.
type Manager struct {
	engine         *pkautomation.Engine
	config         ManagerConfig
	coordinator    DisplayCoordinator
	ownCoordinator *DefaultDisplayCoordinator
	availabilityCh <-chan bool
	factories      map[DisplayType]AdapterFactory
	prepared       map[string]preparedMessage
	delegate       MessagingDelegate
	enabled        bool
	paused         bool
	ctx            context.Context
	cancel         context.CancelFunc
	now            func() time.Time
	closeOnce      sync.Once
	lock           sync.RWMutex
}

// NewManager creates a Manager and its automation engine.
func NewManager(config ManagerConfig) *Manager {
	if config.Recorder == nil {
		config.Recorder = nullEventRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:    config,
		factories: make(map[DisplayType]AdapterFactory),
		prepared:  make(map[string]preparedMessage),
		enabled:   true,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
	for displayType, factory := range config.AdapterFactories {
		m.factories[displayType] = factory
	}
	m.coordinator = config.DisplayCoordinator
	if m.coordinator == nil {
		m.ownCoordinator = NewDefaultDisplayCoordinator(config.DisplayInterval)
		m.coordinator = m.ownCoordinator
	}
	m.engine = pkautomation.NewEngine(pkautomation.EngineConfig{
		Store:          config.Store,
		Delegate:       engineDelegate{m},
		ScheduleLimit:  config.ScheduleLimit,
		PrepareRetries: config.PrepareRetries,
		PrepareBackoff: config.PrepareBackoff,
		Loggers:        config.Loggers,
	})
	if notifier, ok := m.coordinator.(AvailabilityNotifier); ok {
		m.availabilityCh = notifier.AddAvailabilityListener()
		go func(ch <-chan bool) {
			for ready := range ch {
				if ready {
					m.engine.CheckPrepared()
				}
			}
		}(m.availabilityCh)
	}
	return m
}

// Engine returns the automation engine that runs the message schedules. Trigger events are fed to
// it with ProcessEvent.
func (m *Manager) Engine() *pkautomation.Engine {
	return m.engine
}

// ScheduleMessage schedules a message.
func (m *Manager) ScheduleMessage(ctx context.Context, ms MessageSchedule, metadata ldvalue.Value) (pkautomation.Schedule, error) {
	return m.engine.Schedule(ctx, messageScheduleInfo(ms), metadata)
}

// ScheduleMessages schedules several messages. Either all of them are scheduled or none are.
func (m *Manager) ScheduleMessages(ctx context.Context, all []MessageSchedule, metadata ldvalue.Value) ([]pkautomation.Schedule, error) {
	infos := make([]pkautomation.ScheduleInfo, 0, len(all))
	for _, ms := range all {
		infos = append(infos, messageScheduleInfo(ms))
	}
	return m.engine.ScheduleMultiple(ctx, infos, metadata)
}

// CancelSchedule cancels one message schedule.
func (m *Manager) CancelSchedule(ctx context.Context, scheduleID string) (pkautomation.Schedule, error) {
	return m.engine.Cancel(ctx, scheduleID)
}

// CancelMessages cancels every schedule of a message.
func (m *Manager) CancelMessages(ctx context.Context, messageID string) ([]pkautomation.Schedule, error) {
	return m.engine.CancelGroup(ctx, messageID)
}

// GetSchedule returns a message schedule.
func (m *Manager) GetSchedule(ctx context.Context, scheduleID string) (pkautomation.Schedule, error) {
	return m.engine.Get(ctx, scheduleID)
}

// GetSchedules returns the schedules of a message.
func (m *Manager) GetSchedules(ctx context.Context, messageID string) ([]pkautomation.Schedule, error) {
	return m.engine.GetGroup(ctx, messageID)
}

// GetAllSchedules returns every message schedule, including ended ones within their grace period.
func (m *Manager) GetAllSchedules(ctx context.Context) ([]pkautomation.Schedule, error) {
	return m.engine.GetAll(ctx)
}

// EditSchedule changes a message schedule.
func (m *Manager) EditSchedule(ctx context.Context, scheduleID string, edits MessageEdits) (pkautomation.Schedule, error) {
	scheduleEdits := edits.ScheduleEdits
	if edits.Message != nil {
		data := MessageAsValue(*edits.Message)
		scheduleEdits.Data = &data
	}
	return m.engine.Edit(ctx, scheduleID, scheduleEdits)
}

// SetAdapterFactory registers the factory for a display type, replacing any previous one. A nil
// factory removes it.
func (m *Manager) SetAdapterFactory(displayType DisplayType, factory AdapterFactory) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if factory == nil {
		delete(m.factories, displayType)
	} else {
		m.factories[displayType] = factory
	}
}

// SetDelegate sets the messaging delegate. It may be nil.
func (m *Manager) SetDelegate(delegate MessagingDelegate) {
	m.lock.Lock()
	m.delegate = delegate
	m.lock.Unlock()
}

// SetEnabled turns message display on or off. Schedules keep triggering and preparing while
// disabled; prepared messages wait.
func (m *Manager) SetEnabled(enabled bool) {
	m.lock.Lock()
	m.enabled = enabled
	m.lock.Unlock()
	m.updateEnginePaused()
}

// IsEnabled returns the value set by SetEnabled.
func (m *Manager) IsEnabled() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.enabled
}

// SetPaused pauses or resumes message display.
func (m *Manager) SetPaused(paused bool) {
	m.lock.Lock()
	m.paused = paused
	m.lock.Unlock()
	m.updateEnginePaused()
}

// IsPaused returns the value set by SetPaused.
func (m *Manager) IsPaused() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.paused
}

// SetDisplayInterval changes the interval of the default display coordinator. It has no effect on
// a custom coordinator.
func (m *Manager) SetDisplayInterval(interval time.Duration) {
	if c, ok := m.coordinator.(*DefaultDisplayCoordinator); ok {
		c.SetDisplayInterval(interval)
	}
}

// Close stops the manager and its engine. Messages being displayed see their context cancelled.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		_ = m.engine.Close()
		if notifier, ok := m.coordinator.(AvailabilityNotifier); ok {
			notifier.RemoveAvailabilityListener(m.availabilityCh)
		}
		if m.ownCoordinator != nil {
			m.ownCoordinator.Close()
		}
	})
	return nil
}

func (m *Manager) updateEnginePaused() {
	m.lock.RLock()
	pause := !m.enabled || m.paused
	m.lock.RUnlock()
	if pause {
		m.engine.Pause()
	} else {
		m.engine.Resume()
	}
}

func (m *Manager) factory(displayType DisplayType) AdapterFactory {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.factories[displayType]
}

func (m *Manager) currentDelegate() MessagingDelegate {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.delegate
}

func (m *Manager) getPrepared(scheduleID string) (preparedMessage, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	p, ok := m.prepared[scheduleID]
	return p, ok
}

func (m *Manager) takePrepared(scheduleID string) (preparedMessage, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	p, ok := m.prepared[scheduleID]
	delete(m.prepared, scheduleID)
	return p, ok
}

func messageScheduleInfo(ms MessageSchedule) pkautomation.ScheduleInfo {
	info := ms.Info
	info.Group = ms.Message.ID
	info.Data = MessageAsValue(ms.Message)
	return info
}

// engineDelegate keeps the pkautomation.Delegate methods off the Manager's own API.
type engineDelegate struct {
	m *Manager
}

func (d engineDelegate) PrepareSchedule(ctx context.Context, s pkautomation.Schedule) pkautomation.PrepareResult {
	m := d.m
	loggers := m.config.Loggers
	message := MessageFromValue(s.Info.Data)
	if extender, ok := m.currentDelegate().(MessageExtender); ok {
		message = extender.ExtendMessage(message)
	}

	if message.Audience != nil && m.config.AudienceChecker != nil {
		matched, err := m.config.AudienceChecker.Check(ctx, *message.Audience)
		if err != nil {
			loggers.Warnf("Unable to check audience of message %s: %s", message.ID, err)
			return pkautomation.PrepareRetry
		}
		if !matched {
			loggers.Debugf("Message %s is not for this device (%s)", message.ID, message.Audience.MissBehavior)
			return message.Audience.missResult()
		}
	}

	factory := m.factory(message.DisplayType)
	if factory == nil {
		loggers.Warnf("No adapter for display type %q of message %s", message.DisplayType, message.ID)
		return pkautomation.PrepareSkip
	}
	adapter, err := factory.CreateAdapter(message)
	if err != nil {
		loggers.Warnf("Unable to create adapter for message %s: %s", message.ID, err)
		return pkautomation.PrepareSkip
	}

	switch adapter.Prepare(ctx) {
	case AdapterPrepareSuccess:
		m.lock.Lock()
		m.prepared[s.ID] = preparedMessage{message: message, adapter: adapter}
		m.lock.Unlock()
		return pkautomation.PrepareContinue
	case AdapterPrepareRetry:
		return pkautomation.PrepareRetry
	case AdapterPrepareInvalidate:
		return pkautomation.PrepareInvalidate
	default:
		return pkautomation.PrepareCancel
	}
}

// IsReadyToExecute claims the display coordinator when it returns true; the engine then executes
// the schedule right away.
func (d engineDelegate) IsReadyToExecute(s pkautomation.Schedule) bool {
	p, ok := d.m.getPrepared(s.ID)
	if !ok || !d.m.coordinator.IsReady() || !p.adapter.IsReadyToDisplay() {
		return false
	}
	d.m.coordinator.DidBeginDisplaying(p.message)
	return true
}

func (d engineDelegate) ExecuteSchedule(s pkautomation.Schedule, done func()) {
	m := d.m
	p, ok := m.takePrepared(s.ID)
	if !ok {
		// Cancelled since IsReadyToExecute claimed the coordinator.
		m.coordinator.DidFinishDisplaying(MessageFromValue(s.Info.Data))
		done()
		return
	}
	m.config.Recorder.RecordEvent(newDisplayEvent(p.message, s.ID))
	if delegate := m.currentDelegate(); delegate != nil {
		delegate.MessageWillBeDisplayed(p.message, s.ID)
	}
	started := m.now()
	var once sync.Once
	p.adapter.Display(m.ctx, func(resolution Resolution) {
		once.Do(func() {
			m.coordinator.DidFinishDisplaying(p.message)
			m.config.Recorder.RecordEvent(newResolutionEvent(p.message, s.ID, resolution, m.now().Sub(started)))
			if delegate := m.currentDelegate(); delegate != nil {
				delegate.MessageFinishedDisplaying(p.message, s.ID, resolution)
			}
			done()
		})
	})
}

func (d engineDelegate) OnScheduleExpired(s pkautomation.Schedule) {
	d.m.takePrepared(s.ID)
	message := MessageFromValue(s.Info.Data)
	d.m.config.Recorder.RecordEvent(newResolutionEvent(message, s.ID, Resolution{Type: ResolutionExpired}, 0))
}

func (d engineDelegate) OnScheduleCancelled(s pkautomation.Schedule) {
	d.m.takePrepared(s.ID)
}
