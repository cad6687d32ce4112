package pkactions

import (
	"context"
	"sort"
	"sync"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// PausedKey is the data store key under which Manager.SetPaused persists its setting.
const PausedKey = "pk.actions.paused"

// ActionSchedule pairs a set of actions with the schedule that runs them.
type ActionSchedule struct {
	// Actions maps action names to their values.
	Actions map[string]ldvalue.Value
	// Info defines the schedule. Its Data is replaced by the actions.
	Info pkautomation.ScheduleInfo
}

// ManagerConfig contains the collaborators and options of a Manager.
type ManagerConfig struct {
	// Store holds the schedules. If nil, an in-memory store is used. It must not be shared with
	// another engine.
	Store pkautomation.ScheduleStore
	// Registry holds the action handlers. If nil, an empty registry is created.
	Registry *Registry
	// DataStore, if not nil, persists the paused setting.
	DataStore     subsystems.KeyValueStore
	ScheduleLimit int
	Loggers       ldlog.Loggers
}

// Manager schedules sets of actions and runs them when their schedules execute.
type Manager struct {
	engine    *pkautomation.Engine
	registry  *Registry
	dataStore subsystems.KeyValueStore
	loggers   ldlog.Loggers
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	lock      sync.RWMutex
	paused    bool
}

// NewManager creates a Manager and its automation engine. Stored schedules resume; if the data
// store says the manager was paused, it starts paused.
func NewManager(config ManagerConfig) *Manager {
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		registry:  config.Registry,
		dataStore: config.DataStore,
		loggers:   config.Loggers,
		ctx:       ctx,
		cancel:    cancel,
	}
	m.engine = pkautomation.NewEngine(pkautomation.EngineConfig{
		Store:         config.Store,
		Delegate:      engineDelegate{m},
		ScheduleLimit: config.ScheduleLimit,
		Loggers:       config.Loggers,
	})
	if m.loadPaused() {
		m.paused = true
		m.engine.Pause()
	}
	return m
}

// Engine returns the automation engine that runs the action schedules. Trigger events are fed to
// it with ProcessEvent.
func (m *Manager) Engine() *pkautomation.Engine {
	return m.engine
}

// Registry returns the registry that actions are looked up in.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Schedule schedules a set of actions.
func (m *Manager) Schedule(ctx context.Context, as ActionSchedule, metadata ldvalue.Value) (pkautomation.Schedule, error) {
	return m.engine.Schedule(ctx, actionScheduleInfo(as), metadata)
}

// ScheduleMultiple schedules several sets of actions. Either all of them are scheduled or none are.
func (m *Manager) ScheduleMultiple(ctx context.Context, all []ActionSchedule, metadata ldvalue.Value) ([]pkautomation.Schedule, error) {
	infos := make([]pkautomation.ScheduleInfo, 0, len(all))
	for _, as := range all {
		infos = append(infos, actionScheduleInfo(as))
	}
	return m.engine.ScheduleMultiple(ctx, infos, metadata)
}

// Cancel cancels one schedule.
func (m *Manager) Cancel(ctx context.Context, scheduleID string) (pkautomation.Schedule, error) {
	return m.engine.Cancel(ctx, scheduleID)
}

// CancelGroup cancels every schedule of a group.
func (m *Manager) CancelGroup(ctx context.Context, group string) ([]pkautomation.Schedule, error) {
	return m.engine.CancelGroup(ctx, group)
}

// Get returns a schedule.
func (m *Manager) Get(ctx context.Context, scheduleID string) (pkautomation.Schedule, error) {
	return m.engine.Get(ctx, scheduleID)
}

// GetGroup returns the schedules of a group.
func (m *Manager) GetGroup(ctx context.Context, group string) ([]pkautomation.Schedule, error) {
	return m.engine.GetGroup(ctx, group)
}

// GetAll returns every action schedule, including ended ones within their grace period.
func (m *Manager) GetAll(ctx context.Context) ([]pkautomation.Schedule, error) {
	return m.engine.GetAll(ctx)
}

// Edit changes a schedule. Non-nil actions replace the schedule's actions.
func (m *Manager) Edit(ctx context.Context, scheduleID string, edits pkautomation.ScheduleEdits, actions map[string]ldvalue.Value) (pkautomation.Schedule, error) {
	if actions != nil {
		data := actionsAsValue(actions)
		edits.Data = &data
	}
	return m.engine.Edit(ctx, scheduleID, edits)
}

// SetPaused pauses or resumes execution. Schedules keep triggering while paused; triggered
// schedules wait. The setting is persisted if the manager has a data store.
func (m *Manager) SetPaused(paused bool) {
	m.lock.Lock()
	changed := m.paused != paused
	m.paused = paused
	m.lock.Unlock()
	if !changed {
		return
	}
	if paused {
		m.engine.Pause()
	} else {
		m.engine.Resume()
	}
	if m.dataStore != nil {
		if err := m.dataStore.Set(PausedKey, ldvalue.Bool(paused)); err != nil {
			m.loggers.Errorf("Unable to persist action automation paused setting: %s", err)
		}
	}
}

// IsPaused returns the value set by SetPaused.
func (m *Manager) IsPaused() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.paused
}

// Close stops the manager and its engine. Actions being performed see their context cancelled.
// The schedule store is not closed.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		_ = m.engine.Close()
	})
	return nil
}

func (m *Manager) loadPaused() bool {
	if m.dataStore == nil {
		return false
	}
	value, _, err := m.dataStore.Get(PausedKey)
	if err != nil {
		m.loggers.Warnf("Unable to read action automation paused setting: %s", err)
		return false
	}
	return value.BoolValue()
}

func actionScheduleInfo(as ActionSchedule) pkautomation.ScheduleInfo {
	info := as.Info
	info.Data = actionsAsValue(as.Actions)
	return info
}

func actionsAsValue(actions map[string]ldvalue.Value) ldvalue.Value {
	b := ldvalue.ObjectBuild()
	for name, value := range actions {
		b.Set(name, value)
	}
	return b.Build()
}

// engineDelegate keeps the pkautomation.Delegate methods off the Manager's own API.
type engineDelegate struct {
	m *Manager
}

func (d engineDelegate) PrepareSchedule(_ context.Context, s pkautomation.Schedule) pkautomation.PrepareResult {
	if s.Info.Data.Type() != ldvalue.ObjectType || s.Info.Data.Count() == 0 {
		d.m.loggers.Warnf("Action schedule %s has no actions; cancelling it", s.ID)
		return pkautomation.PrepareCancel
	}
	return pkautomation.PrepareContinue
}

func (d engineDelegate) IsReadyToExecute(pkautomation.Schedule) bool {
	return true
}

// ExecuteSchedule performs the actions in name order. A failed action is logged and does not stop
// the others.
func (d engineDelegate) ExecuteSchedule(s pkautomation.Schedule, done func()) {
	defer done()
	m := d.m
	names := s.Info.Data.Keys(nil)
	sort.Strings(names)
	for _, name := range names {
		if m.ctx.Err() != nil {
			return
		}
		err := m.registry.Run(m.ctx, name, Arguments{
			Value:      s.Info.Data.GetByKey(name),
			Situation:  SituationAutomation,
			Metadata:   s.Metadata,
			ScheduleID: s.ID,
		})
		if err != nil {
			m.loggers.Warnf("Schedule %s: %s", s.ID, err)
		}
	}
}

func (d engineDelegate) OnScheduleExpired(s pkautomation.Schedule) {
	d.m.loggers.Debugf("Action schedule %s expired", s.ID)
}

func (d engineDelegate) OnScheduleCancelled(s pkautomation.Schedule) {
	d.m.loggers.Debugf("Action schedule %s cancelled", s.ID)
}
