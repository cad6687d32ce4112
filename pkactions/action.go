package pkactions

import (
	"context"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Situation says why an action is being performed.
type Situation string

const (
	// SituationManualInvocation is used by Registry.Run when the caller does not give a situation.
	SituationManualInvocation Situation = "manual_invocation"
	// SituationAutomation is used for actions performed by an action schedule.
	SituationAutomation Situation = "automation"
)

// Arguments are passed to a Handler.
type Arguments struct {
	Value     ldvalue.Value
	Situation Situation
	// Metadata is the metadata of the schedule that ran the action, or null.
	Metadata ldvalue.Value
	// ScheduleID is empty unless Situation is SituationAutomation.
	ScheduleID string
}

// Handler performs an action.
type Handler interface {
	Perform(ctx context.Context, args Arguments) error
}

// ArgumentsAcceptor may also be implemented by a Handler to reject arguments before Perform is
// called.
type ArgumentsAcceptor interface {
	AcceptsArguments(args Arguments) bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args Arguments) error

// Perform calls f.
func (f HandlerFunc) Perform(ctx context.Context, args Arguments) error {
	return f(ctx, args)
}
