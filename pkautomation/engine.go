package pkautomation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/internal"
	"github.com/pushkit/go-client-sdk/internal/retriable"
)

// PrepareResult is the delegate's verdict on preparing a triggered schedule.
type PrepareResult int

const (
	// PrepareContinue means the schedule is ready to wait for execution.
	PrepareContinue PrepareResult = iota
	// PrepareSkip sends the schedule back to idle without counting an execution.
	PrepareSkip
	// PreparePenalize counts an execution without executing.
	PreparePenalize
	// PrepareCancel cancels the schedule.
	PrepareCancel
	// PrepareRetry asks for preparation to be attempted again after a backoff delay.
	PrepareRetry
	// PrepareInvalidate restarts preparation from the beginning, for instance because data it
	// depended on changed.
	PrepareInvalidate
)

func (r PrepareResult) String() string {
	switch r {
	case PrepareContinue:
		return "continue"
	case PrepareSkip:
		return "skip"
	case PreparePenalize:
		return "penalize"
	case PrepareCancel:
		return "cancel"
	case PrepareRetry:
		return "retry"
	case PrepareInvalidate:
		return "invalidate"
	default:
		return "unknown"
	}
}

// Delegate prepares and executes schedules on behalf of the engine.
//
// IsReadyToExecute is called on the engine's queue and must return quickly; when it returns true
// the schedule is executed right away. The other methods are called from worker goroutines, so
// they may call back into the engine.
type Delegate interface {
	PrepareSchedule(ctx context.Context, schedule Schedule) PrepareResult
	IsReadyToExecute(schedule Schedule) bool
	// ExecuteSchedule starts execution. done must be called exactly once when execution is over.
	ExecuteSchedule(schedule Schedule, done func())
	OnScheduleExpired(schedule Schedule)
	OnScheduleCancelled(schedule Schedule)
}

// DefaultPrepareRetries is the default value of EngineConfig.PrepareRetries.
const DefaultPrepareRetries = 3

// EngineConfig contains the collaborators and options of an Engine.
type EngineConfig struct {
	// Store holds the schedules. If nil, an in-memory store is used.
	Store ScheduleStore
	// Delegate is required.
	Delegate Delegate
	// ScheduleLimit defaults to DefaultScheduleLimit.
	ScheduleLimit int
	// PrepareRetries is the number of retries a preparation gets before it goes to the back of the
	// preparation queue. Defaults to DefaultPrepareRetries.
	PrepareRetries int
	// PrepareBackoff controls the delay between preparation retries.
	PrepareBackoff retriable.Backoff
	// MaxWorkers limits concurrent delegate calls. Defaults to internal.DefaultMaxWorkers.
	MaxWorkers int
	Loggers    ldlog.Loggers
}

type engineClock struct {
	now       func() time.Time
	afterFunc func(time.Duration, func()) (stop func() bool)
}

func realEngineClock() engineClock {
	return engineClock{
		now: time.Now,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
}

// Engine runs the schedule state machine.
//
// All schedule state is owned by one serial queue. Preparation runs through a retriable pipeline
// and execution on a worker pool; their outcomes are dispatched back onto the queue.
type Engine struct {
	config    EngineConfig
	clock     engineClock
	queue     *internal.SerialQueue
	workers   *internal.WorkerPool
	pipeline  *retriable.Pipeline
	listeners *internal.Broadcaster[StateChange]
	closeOnce sync.Once

	// Fields below are only used on the queue.
	paused     bool
	foreground bool
	preparing  map[string]*retriable.Operation
	stopTimer  func() bool
}

// NewEngine creates an Engine and resumes any stored schedules.
func NewEngine(config EngineConfig) *Engine {
	return newEngine(config, realEngineClock())
}

func newEngine(config EngineConfig, clock engineClock) *Engine {
	if config.Store == nil {
		config.Store = NewInMemoryScheduleStore()
	}
	if config.ScheduleLimit <= 0 {
		config.ScheduleLimit = DefaultScheduleLimit
	}
	if config.PrepareRetries == 0 {
		config.PrepareRetries = DefaultPrepareRetries
	}
	e := &Engine{
		config:    config,
		clock:     clock,
		queue:     internal.NewSerialQueue("automation engine", config.Loggers),
		workers:   internal.NewWorkerPool(config.MaxWorkers, config.Loggers),
		pipeline:  retriable.NewPipeline(config.Loggers),
		listeners: internal.NewBroadcaster[StateChange](),
		preparing: make(map[string]*retriable.Operation),
	}
	e.queue.Dispatch(e.restore)
	return e
}

// Schedule adds a schedule.
func (e *Engine) Schedule(ctx context.Context, info ScheduleInfo, metadata ldvalue.Value) (Schedule, error) {
	var ret []Schedule
	var err error
	if syncErr := e.sync(ctx, func() { ret, err = e.schedule([]ScheduleInfo{info}, metadata) }); syncErr != nil {
		return Schedule{}, syncErr
	}
	if err != nil {
		return Schedule{}, err
	}
	return ret[0], nil
}

// ScheduleMultiple adds several schedules. Either all of them are added or none are.
func (e *Engine) ScheduleMultiple(ctx context.Context, infos []ScheduleInfo, metadata ldvalue.Value) ([]Schedule, error) {
	var ret []Schedule
	var err error
	if syncErr := e.sync(ctx, func() { ret, err = e.schedule(infos, metadata) }); syncErr != nil {
		return nil, syncErr
	}
	return ret, err
}

// Cancel cancels a schedule. A schedule that is already finished, expired or cancelled is returned
// unchanged.
func (e *Engine) Cancel(ctx context.Context, id string) (Schedule, error) {
	var ret Schedule
	var err error
	syncErr := e.sync(ctx, func() {
		s, ok := e.get(id)
		if !ok {
			err = ErrScheduleNotFound
			return
		}
		e.cancelSchedule(&s)
		e.checkTimers()
		ret = s
	})
	if syncErr != nil {
		return Schedule{}, syncErr
	}
	return ret, err
}

// CancelGroup cancels every schedule of a group and returns them.
func (e *Engine) CancelGroup(ctx context.Context, group string) ([]Schedule, error) {
	var ret []Schedule
	var err error
	syncErr := e.sync(ctx, func() {
		var schedules []Schedule
		if schedules, err = e.config.Store.GetByGroup(group); err == nil {
			ret = e.cancelAll(schedules)
		}
	})
	if syncErr != nil {
		return nil, syncErr
	}
	return ret, err
}

// CancelAll cancels every schedule and returns them.
func (e *Engine) CancelAll(ctx context.Context) ([]Schedule, error) {
	var ret []Schedule
	var err error
	syncErr := e.sync(ctx, func() {
		var schedules []Schedule
		if schedules, err = e.config.Store.GetAll(); err == nil {
			ret = e.cancelAll(schedules)
		}
	})
	if syncErr != nil {
		return nil, syncErr
	}
	return ret, err
}

// Get returns a schedule by ID, including one that is finished, expired or cancelled but still
// within its edit grace period.
func (e *Engine) Get(ctx context.Context, id string) (Schedule, error) {
	var ret Schedule
	var err error
	syncErr := e.sync(ctx, func() {
		var found bool
		ret, found, err = e.config.Store.Get(id)
		if err == nil && !found {
			err = ErrScheduleNotFound
		}
	})
	if syncErr != nil {
		return Schedule{}, syncErr
	}
	return ret, err
}

// GetGroup returns the schedules of a group.
func (e *Engine) GetGroup(ctx context.Context, group string) ([]Schedule, error) {
	var ret []Schedule
	var err error
	if syncErr := e.sync(ctx, func() { ret, err = e.config.Store.GetByGroup(group) }); syncErr != nil {
		return nil, syncErr
	}
	return ret, err
}

// GetAll returns every schedule.
func (e *Engine) GetAll(ctx context.Context) ([]Schedule, error) {
	var ret []Schedule
	var err error
	if syncErr := e.sync(ctx, func() { ret, err = e.config.Store.GetAll() }); syncErr != nil {
		return nil, syncErr
	}
	return ret, err
}

// Edit changes a schedule in place without changing its state, except that an edit which leaves
// an active schedule already ended or at its limit cancels it, and an edit which makes a finished
// or expired schedule valid again returns it to idle. Trigger progress is reset.
func (e *Engine) Edit(ctx context.Context, id string, edits ScheduleEdits) (Schedule, error) {
	var ret Schedule
	var err error
	syncErr := e.sync(ctx, func() {
		s, ok := e.get(id)
		if !ok {
			err = ErrScheduleNotFound
			return
		}
		ret, err = e.edit(s, edits)
	})
	if syncErr != nil {
		return Schedule{}, syncErr
	}
	return ret, err
}

// ProcessEvent feeds an occurrence to the triggers of every idle schedule. It does not wait.
func (e *Engine) ProcessEvent(event TriggerEvent) {
	e.queue.Dispatch(func() { e.processEvent(event) })
}

// Pause stops prepared schedules from executing until Resume is called.
func (e *Engine) Pause() {
	e.queue.Dispatch(func() { e.paused = true })
}

// Resume undoes Pause.
func (e *Engine) Resume() {
	e.queue.Dispatch(func() {
		e.paused = false
		e.checkPrepared()
	})
}

// CheckPrepared asks the delegate again whether prepared schedules are ready to execute. Delegates
// call it when something that made them answer false has changed.
func (e *Engine) CheckPrepared() {
	e.queue.Dispatch(e.checkPrepared)
}

// AddStateListener returns a channel that receives every schedule state change.
func (e *Engine) AddStateListener() <-chan StateChange {
	return e.listeners.AddListener()
}

// RemoveStateListener unsubscribes and closes a channel returned by AddStateListener.
func (e *Engine) RemoveStateListener(ch <-chan StateChange) {
	e.listeners.RemoveListener(ch)
}

// Close stops the engine. Preparations in progress are cancelled; stored schedules are kept.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.queue.Close()
		if e.stopTimer != nil {
			e.stopTimer()
		}
		e.pipeline.Close()
		e.workers.Close()
		e.listeners.Close()
	})
	return nil
}

func (e *Engine) sync(ctx context.Context, task func()) error {
	err := e.queue.DispatchSync(ctx, task)
	if errors.Is(err, internal.ErrQueueClosed) {
		return ErrEngineClosed
	}
	return err
}

func (e *Engine) restore() {
	schedules, err := e.config.Store.GetAll()
	if err != nil {
		e.config.Loggers.Errorf("Unable to load schedules: %s", err)
		return
	}
	for _, s := range schedules {
		// Whatever preparation produced did not survive the restart.
		if s.State == StatePrepared || s.State == StateExecuting {
			e.setState(&s, StateTriggered)
			e.put(s)
			e.startPrepare(s)
		}
	}
	e.checkTimers()
}

func (e *Engine) schedule(infos []ScheduleInfo, metadata ldvalue.Value) ([]Schedule, error) {
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			return nil, err
		}
	}
	count, err := e.config.Store.Count()
	if err != nil {
		return nil, err
	}
	if count+len(infos) > e.config.ScheduleLimit {
		return nil, ErrScheduleLimitReached
	}
	now := e.clock.now()
	schedules := make([]Schedule, 0, len(infos))
	for _, info := range infos {
		s := Schedule{
			ID:             uuid.NewString(),
			Info:           info,
			Metadata:       metadata,
			State:          StateIdle,
			StateChangedAt: now,
			CreatedAt:      now,
		}
		s = s.Clone()
		s.resetProgress()
		schedules = append(schedules, s)
	}
	if err := e.config.Store.Put(schedules...); err != nil {
		return nil, err
	}
	if e.foreground {
		// An active session trigger counts the session that is already in progress.
		e.evaluate(schedules, ForegroundEvent(), func(t Trigger) bool { return t.Type == TriggerActiveSession })
	}
	e.checkTimers()
	ret := make([]Schedule, 0, len(schedules))
	for _, s := range schedules {
		if current, ok := e.get(s.ID); ok {
			ret = append(ret, current)
		}
	}
	return ret, nil
}

func (e *Engine) edit(s Schedule, edits ScheduleEdits) (Schedule, error) {
	edits.applyTo(&s)
	if err := s.Info.Validate(); err != nil {
		return Schedule{}, err
	}
	now := e.clock.now()
	invalid := s.Info.hasEndedAt(now) || s.ExecutionCount >= s.Info.EffectiveLimit()
	switch {
	case s.State.IsTerminal():
		if s.State != StateCancelled && !invalid {
			e.setState(&s, StateIdle)
		}
		e.put(s)
	case invalid:
		e.put(s)
		e.cancelSchedule(&s)
	default:
		e.put(s)
	}
	e.checkTimers()
	return s, nil
}

func (e *Engine) processEvent(event TriggerEvent) {
	switch event.Type {
	case TriggerForeground:
		e.foreground = true
	case TriggerBackground:
		e.foreground = false
	}
	schedules, err := e.config.Store.GetAll()
	if err != nil {
		e.config.Loggers.Errorf("Unable to load schedules: %s", err)
		return
	}
	e.evaluate(schedules, event, nil)
}

// evaluate applies an event to the triggers of idle, active schedules. Since it runs on the queue,
// no two events can both observe the same progress.
func (e *Engine) evaluate(schedules []Schedule, event TriggerEvent, filter func(Trigger) bool) {
	now := e.clock.now()
	for _, s := range schedules {
		if s.State != StateIdle || !s.Info.isActiveAt(now) {
			continue
		}
		matched, fired := false, false
		for i, t := range s.Info.Triggers {
			if filter != nil && !filter(t) {
				continue
			}
			inc, ok := t.increment(event)
			if !ok {
				continue
			}
			matched = true
			s.Info.Triggers[i].Progress += inc
			if s.Info.Triggers[i].Progress >= t.Goal {
				fired = true
				break
			}
		}
		if !matched {
			continue
		}
		if !fired {
			e.put(s)
			continue
		}
		s.resetProgress()
		e.setState(&s, StateTriggered)
		e.put(s)
		if s.Info.Delay > 0 {
			e.checkTimers()
		} else {
			e.startPrepare(s)
		}
	}
}

func (e *Engine) startPrepare(s Schedule) {
	id := s.ID
	if _, already := e.preparing[id]; already {
		return
	}
	var result PrepareResult
	store, delegate := e.config.Store, e.config.Delegate
	op := e.pipeline.Execute(retriable.Retriable{
		Name:       "prepare schedule " + id,
		MaxRetries: e.config.PrepareRetries,
		Backoff:    e.config.PrepareBackoff,
		Run: func(ctx context.Context) retriable.Result {
			current, found, err := store.Get(id)
			if err != nil || !found {
				result = PrepareSkip
				return retriable.Success
			}
			result = delegate.PrepareSchedule(ctx, current)
			switch result {
			case PrepareRetry:
				return retriable.Retry
			case PrepareInvalidate:
				return retriable.Invalidate
			default:
				return retriable.Success
			}
		},
	})
	e.preparing[id] = op
	go func() {
		<-op.Done()
		e.queue.Dispatch(func() { e.handlePrepared(id, op, result) })
	}()
}

func (e *Engine) handlePrepared(id string, op *retriable.Operation, result PrepareResult) {
	if e.preparing[id] != op {
		return
	}
	delete(e.preparing, id)
	s, ok := e.get(id)
	if !ok || s.State != StateTriggered {
		return
	}
	switch err := op.Err(); {
	case errors.Is(err, retriable.ErrRetriesExhausted):
		e.config.Loggers.Debugf("Preparation of schedule %s is still failing; requeueing it", id)
		e.startPrepare(s)
		return
	case errors.Is(err, retriable.ErrCancelled):
		return
	case err != nil:
		result = PrepareSkip
	}
	e.config.Loggers.Debugf("Schedule %s prepared: %s", id, result)
	switch result {
	case PrepareContinue:
		e.setState(&s, StatePrepared)
		e.put(s)
		e.checkPrepared()
	case PreparePenalize:
		e.finishExecution(&s)
	case PrepareCancel:
		e.cancelSchedule(&s)
		e.checkTimers()
	default:
		e.setState(&s, StateIdle)
		e.put(s)
	}
}

func (e *Engine) checkPrepared() {
	if e.paused {
		return
	}
	schedules, err := e.config.Store.GetAll()
	if err != nil {
		e.config.Loggers.Errorf("Unable to load schedules: %s", err)
		return
	}
	var prepared []Schedule
	for _, s := range schedules {
		if s.State == StatePrepared {
			prepared = append(prepared, s)
		}
	}
	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].Info.Priority < prepared[j].Info.Priority
	})
	now := e.clock.now()
	for _, s := range prepared {
		if s.Info.hasEndedAt(now) {
			e.expire(&s)
			continue
		}
		if e.config.Delegate.IsReadyToExecute(s) {
			e.execute(s)
		}
	}
}

func (e *Engine) execute(s Schedule) {
	e.setState(&s, StateExecuting)
	e.put(s)
	id := s.ID
	var once sync.Once
	done := func() {
		once.Do(func() {
			e.queue.Dispatch(func() { e.handleExecuted(id) })
		})
	}
	delegate := e.config.Delegate
	running := s.Clone()
	e.workers.Go(func(context.Context) {
		delegate.ExecuteSchedule(running, done)
	})
}

func (e *Engine) handleExecuted(id string) {
	s, ok := e.get(id)
	if !ok || s.State != StateExecuting {
		return
	}
	e.finishExecution(&s)
	e.checkPrepared()
}

func (e *Engine) finishExecution(s *Schedule) {
	s.ExecutionCount++
	switch {
	case s.ExecutionCount >= s.Info.EffectiveLimit():
		e.setState(s, StateFinished)
	case s.Info.hasEndedAt(e.clock.now()):
		e.expire(s)
		return
	case s.Info.Interval > 0:
		e.setState(s, StatePaused)
	default:
		e.setState(s, StateIdle)
	}
	e.put(*s)
	e.checkTimers()
}

func (e *Engine) cancelAll(schedules []Schedule) []Schedule {
	ret := make([]Schedule, 0, len(schedules))
	for _, s := range schedules {
		e.cancelSchedule(&s)
		ret = append(ret, s)
	}
	e.checkTimers()
	return ret
}

func (e *Engine) cancelSchedule(s *Schedule) {
	if s.State.IsTerminal() {
		return
	}
	e.stopPreparing(s.ID)
	s.resetProgress()
	e.setState(s, StateCancelled)
	e.put(*s)
	cancelled, delegate := s.Clone(), e.config.Delegate
	e.workers.Go(func(context.Context) { delegate.OnScheduleCancelled(cancelled) })
}

func (e *Engine) expire(s *Schedule) {
	e.stopPreparing(s.ID)
	e.setState(s, StateExpired)
	e.put(*s)
	expired, delegate := s.Clone(), e.config.Delegate
	e.workers.Go(func(context.Context) { delegate.OnScheduleExpired(expired) })
}

func (e *Engine) stopPreparing(id string) {
	if op, ok := e.preparing[id]; ok {
		op.Cancel()
		delete(e.preparing, id)
	}
}

// checkTimers applies every time-based transition that is due, then arms a single timer for the
// next one: delays of triggered schedules, intervals of paused ones, end dates, and the removal of
// terminal schedules after their grace period.
func (e *Engine) checkTimers() {
	if e.stopTimer != nil {
		e.stopTimer()
		e.stopTimer = nil
	}
	schedules, err := e.config.Store.GetAll()
	if err != nil {
		e.config.Loggers.Errorf("Unable to load schedules: %s", err)
		return
	}
	now := e.clock.now()
	var next time.Time
	due := func(at time.Time) bool {
		if !at.After(now) {
			return true
		}
		if next.IsZero() || at.Before(next) {
			next = at
		}
		return false
	}
	var toDelete []string
	for _, s := range schedules {
		if s.State.IsTerminal() {
			if due(s.StateChangedAt.Add(s.Info.EditGracePeriod)) {
				toDelete = append(toDelete, s.ID)
			}
			continue
		}
		if !s.Info.End.IsZero() && s.State != StateExecuting && due(s.Info.End) {
			e.expire(&s)
			if due(s.StateChangedAt.Add(s.Info.EditGracePeriod)) {
				toDelete = append(toDelete, s.ID)
			}
			continue
		}
		switch s.State {
		case StateTriggered:
			if _, preparing := e.preparing[s.ID]; !preparing && due(s.StateChangedAt.Add(s.Info.Delay)) {
				e.startPrepare(s)
			}
		case StatePaused:
			if due(s.StateChangedAt.Add(s.Info.Interval)) {
				e.setState(&s, StateIdle)
				e.put(s)
			}
		}
	}
	if len(toDelete) > 0 {
		if err := e.config.Store.Delete(toDelete...); err != nil {
			e.config.Loggers.Errorf("Unable to delete schedules: %s", err)
		}
	}
	if !next.IsZero() {
		e.stopTimer = e.clock.afterFunc(next.Sub(now), func() {
			e.queue.Dispatch(e.checkTimers)
		})
	}
}

func (e *Engine) setState(s *Schedule, state State) {
	previous := s.State
	s.State = state
	s.StateChangedAt = e.clock.now()
	if previous != state {
		e.config.Loggers.Debugf("Schedule %s: %s -> %s", s.ID, previous, state)
		e.listeners.Broadcast(StateChange{Schedule: s.Clone(), Previous: previous})
	}
}

func (e *Engine) get(id string) (Schedule, bool) {
	s, found, err := e.config.Store.Get(id)
	if err != nil {
		e.config.Loggers.Errorf("Unable to load schedule %s: %s", id, err)
		return Schedule{}, false
	}
	return s, found
}

func (e *Engine) put(s Schedule) {
	if err := e.config.Store.Put(s); err != nil {
		e.config.Loggers.Errorf("Unable to store schedule %s: %s", s.ID, err)
	}
}
