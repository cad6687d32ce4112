package pkautomation

import (
	"errors"
	"fmt"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// State is the lifecycle state of a schedule.
type State int

const (
	// StateIdle means the schedule is waiting for its triggers.
	StateIdle State = iota
	// StateTriggered means a trigger reached its goal; the schedule is waiting out its delay or
	// being prepared.
	StateTriggered
	// StatePrepared means preparation succeeded and the schedule is waiting to execute.
	StatePrepared
	// StateExecuting means the delegate is executing the schedule.
	StateExecuting
	// StatePaused means the schedule executed and is waiting out its interval before going back to
	// StateIdle.
	StatePaused
	// StateFinished means the schedule reached its execution limit.
	StateFinished
	// StateExpired means the schedule's end date passed.
	StateExpired
	// StateCancelled means the schedule was cancelled.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StatePrepared:
		return "prepared"
	case StateExecuting:
		return "executing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for StateFinished, StateExpired and StateCancelled. A terminal schedule
// never triggers again; it is kept for its edit grace period and then deleted.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateExpired || s == StateCancelled
}

// DefaultScheduleLimit is the default maximum number of schedules the engine holds.
const DefaultScheduleLimit = 1000

var (
	// ErrScheduleNotFound is returned when no schedule has the given ID.
	ErrScheduleNotFound = errors.New("schedule not found")
	// ErrScheduleLimitReached is returned when scheduling would exceed the schedule limit.
	ErrScheduleLimitReached = errors.New("schedule limit reached")
	// ErrEngineClosed is returned by engine operations after Close.
	ErrEngineClosed = errors.New("automation engine has been closed")
	// ErrInvalidSchedule is returned when a ScheduleInfo has no triggers or an end date before its
	// start date.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// ScheduleInfo defines when a schedule fires and what it carries.
type ScheduleInfo struct {
	// Group ties related schedules together, such as every schedule of one in-app message.
	Group string
	// Triggers are the conditions that fire the schedule. Any one reaching its goal is enough.
	Triggers []Trigger
	// Delay is how long a triggered schedule waits before it is prepared.
	Delay time.Duration
	// Start and End bound the period in which triggers count. Zero values mean unbounded.
	Start time.Time
	End   time.Time
	// Limit is the number of executions after which the schedule finishes. Zero means 1.
	Limit int
	// Priority orders prepared schedules competing to execute; lower values go first.
	Priority int
	// Interval is how long the schedule stays paused after each execution.
	Interval time.Duration
	// EditGracePeriod is how long a finished, expired or cancelled schedule is kept so that an edit
	// can bring it back.
	EditGracePeriod time.Duration
	// Data is the schedule's payload, interpreted by the delegate.
	Data ldvalue.Value
}

// EffectiveLimit returns Limit, or 1 if Limit is not positive.
func (i ScheduleInfo) EffectiveLimit() int {
	if i.Limit <= 0 {
		return 1
	}
	return i.Limit
}

// Validate returns ErrInvalidSchedule if the info cannot be scheduled.
func (i ScheduleInfo) Validate() error {
	if len(i.Triggers) == 0 {
		return fmt.Errorf("%w: no triggers", ErrInvalidSchedule)
	}
	for _, t := range i.Triggers {
		if t.Goal <= 0 {
			return fmt.Errorf("%w: trigger goal must be positive", ErrInvalidSchedule)
		}
	}
	if !i.Start.IsZero() && !i.End.IsZero() && i.End.Before(i.Start) {
		return fmt.Errorf("%w: end is before start", ErrInvalidSchedule)
	}
	return nil
}

func (i ScheduleInfo) isActiveAt(t time.Time) bool {
	if !i.Start.IsZero() && t.Before(i.Start) {
		return false
	}
	return !i.hasEndedAt(t)
}

func (i ScheduleInfo) hasEndedAt(t time.Time) bool {
	return !i.End.IsZero() && !t.Before(i.End)
}

// Schedule is a scheduled ScheduleInfo plus its runtime state.
type Schedule struct {
	ID             string
	Info           ScheduleInfo
	Metadata       ldvalue.Value
	State          State
	ExecutionCount int
	StateChangedAt time.Time
	CreatedAt      time.Time
}

// Clone returns a copy that shares no mutable data with s.
func (s Schedule) Clone() Schedule {
	ret := s
	ret.Info.Triggers = make([]Trigger, len(s.Info.Triggers))
	for i, t := range s.Info.Triggers {
		ret.Info.Triggers[i] = t.clone()
	}
	return ret
}

func (s *Schedule) resetProgress() {
	for i := range s.Info.Triggers {
		s.Info.Triggers[i].Progress = 0
	}
}

// ScheduleEdits changes fields of an existing schedule. Nil fields are left alone.
type ScheduleEdits struct {
	Limit           *int
	Start           *time.Time
	End             *time.Time
	Priority        *int
	Interval        *time.Duration
	EditGracePeriod *time.Duration
	Data            *ldvalue.Value
	Metadata        *ldvalue.Value
	Triggers        []Trigger
}

func (e ScheduleEdits) applyTo(s *Schedule) {
	if e.Limit != nil {
		s.Info.Limit = *e.Limit
	}
	if e.Start != nil {
		s.Info.Start = *e.Start
	}
	if e.End != nil {
		s.Info.End = *e.End
	}
	if e.Priority != nil {
		s.Info.Priority = *e.Priority
	}
	if e.Interval != nil {
		s.Info.Interval = *e.Interval
	}
	if e.EditGracePeriod != nil {
		s.Info.EditGracePeriod = *e.EditGracePeriod
	}
	if e.Data != nil {
		s.Info.Data = *e.Data
	}
	if e.Metadata != nil {
		s.Metadata = *e.Metadata
	}
	if e.Triggers != nil {
		s.Info.Triggers = make([]Trigger, len(e.Triggers))
		for i, t := range e.Triggers {
			s.Info.Triggers[i] = t.clone()
		}
	}
	s.resetProgress()
}

// StateChange is broadcast to state listeners whenever a schedule changes state.
type StateChange struct {
	Schedule Schedule
	Previous State
}
