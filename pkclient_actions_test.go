package pkclient

import (
	"context"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/internal/sharedtest"
	"github.com/pushkit/go-client-sdk/pkactions"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkcomponents"
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/pktaggroups"
)

func withRecordingAction(performed chan<- pkactions.Arguments, names ...string) func(*Config) {
	return func(c *Config) {
		c.ActionAutomation = pkcomponents.ActionAutomation().Action(
			pkactions.HandlerFunc(func(_ context.Context, args pkactions.Arguments) error {
				performed <- args
				return nil
			}), names...)
	}
}

func scheduleTestActions(t *testing.T, client *Client, trigger pkautomation.Trigger, actions map[string]ldvalue.Value) pkautomation.Schedule {
	s, err := client.Actions().Schedule(context.Background(), pkactions.ActionSchedule{
		Actions: actions,
		Info:    pkautomation.ScheduleInfo{Triggers: []pkautomation.Trigger{trigger}, EditGracePeriod: time.Hour},
	}, ldvalue.Null())
	require.NoError(t, err)
	return s
}

func TestLifecycleTriggersRunActions(t *testing.T) {
	performed := make(chan pkactions.Arguments, 10)
	clientTestWithConfig(withRecordingAction(performed, "record_action"), func(p clientTestParams) {
		s := scheduleTestActions(t, p.client, pkautomation.Trigger{Type: pkautomation.TriggerForeground, Goal: 1},
			map[string]ldvalue.Value{"record_action": ldvalue.String("hi")})

		p.client.OnForeground()
		args := th.RequireValue(t, performed, waitTimeout)
		assert.Equal(t, ldvalue.String("hi"), args.Value)
		assert.Equal(t, s.ID, args.ScheduleID)
		assert.Equal(t, pkactions.SituationAutomation, args.Situation)
	})
}

func TestAutomationIsTheActionEngine(t *testing.T) {
	clientTest(func(p clientTestParams) {
		s := scheduleTestActions(t, p.client, pkautomation.Trigger{Type: pkautomation.TriggerAppInit, Goal: 1},
			map[string]ldvalue.Value{AddTagsActionName: ldvalue.String("a")})

		got, err := p.client.Automation().Get(context.Background(), s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, got.ID)
		_, err = p.client.InAppMessaging().GetSchedule(context.Background(), s.ID)
		assert.ErrorIs(t, err, pkautomation.ErrScheduleNotFound)
	})
}

func TestBuiltInActionsYieldToApplicationActions(t *testing.T) {
	performed := make(chan pkactions.Arguments, 10)
	clientTestWithConfig(withRecordingAction(performed, "^+t"), func(p clientTestParams) {
		require.NoError(t, p.client.RunAction(context.Background(), "^+t", ldvalue.String("x")))
		args := th.RequireValue(t, performed, waitTimeout)
		assert.Equal(t, pkactions.SituationManualInvocation, args.Situation)
		assert.Empty(t, p.client.DeviceTags())

		require.NoError(t, p.client.RunAction(context.Background(), AddTagsActionName, ldvalue.String("x")))
		assert.Equal(t, []string{"x"}, p.client.DeviceTags())
	})
}

func TestTagActionsChangeDeviceTags(t *testing.T) {
	clientTest(func(p clientTestParams) {
		ctx := context.Background()
		p.client.SetDeviceTags("a", "b")
		require.NoError(t, p.client.RunAction(ctx, AddTagsActionName, ldvalue.ArrayOf(ldvalue.String("b"), ldvalue.String("c"))))
		assert.Equal(t, []string{"a", "b", "c"}, p.client.DeviceTags())
		require.NoError(t, p.client.RunAction(ctx, "^-t", ldvalue.String("a")))
		assert.Equal(t, []string{"b", "c"}, p.client.DeviceTags())

		assert.ErrorIs(t, p.client.RunAction(ctx, AddTagsActionName, ldvalue.Int(1)), pkactions.ErrArgumentsRejected)
		assert.ErrorIs(t, p.client.RunAction(ctx, AddTagsActionName, ldvalue.ArrayOf()), pkactions.ErrArgumentsRejected)
	})
}

func TestTagActionsEditTagGroups(t *testing.T) {
	clientTest(func(p clientTestParams) {
		value := ldvalue.Parse([]byte(`{"channel": {"interests": ["cats", "dogs"]}}`))
		require.NoError(t, p.client.RunAction(context.Background(), AddTagsActionName, value))

		m, ok := p.client.PendingTagGroupMutation(pktaggroups.ChannelType)
		require.True(t, ok)
		assert.Equal(t, pktaggroups.TagGroups{"interests": {"cats", "dogs"}}, m.Add)
		_, ok = p.client.PendingTagGroupMutation(pktaggroups.NamedUserType)
		assert.False(t, ok)

		bad := ldvalue.Parse([]byte(`{"device": {"interests": ["cats"]}}`))
		assert.ErrorIs(t, p.client.RunAction(context.Background(), AddTagsActionName, bad), pkactions.ErrArgumentsRejected)
	})
}

func TestCustomEventActionTracksEvent(t *testing.T) {
	clientTest(func(p clientTestParams) {
		value := ldvalue.Parse([]byte(`{"event_name": "purchase", "event_value": 5}`))
		require.NoError(t, p.client.RunAction(context.Background(), AddCustomEventActionName, value))

		e, ok := p.eventManager.requireEventOfType(pkevents.CustomEventType)
		require.True(t, ok, "no custom event")
		assert.Equal(t, "purchase", e.event.Data.GetByKey("event_name").StringValue())
		assert.Equal(t, 5, e.event.Data.GetByKey("event_value").IntValue())

		err := p.client.RunAction(context.Background(), "^+ce", ldvalue.ObjectBuild().Build())
		assert.ErrorIs(t, err, pkactions.ErrArgumentsRejected)
	})
}

func TestActionAutomationBuildErrorIsReturned(t *testing.T) {
	store := sharedtest.NewMockKeyValueStore()
	p := clientTestParams{eventManager: newRecordingEventManager(), dataStore: store}
	config := makeTestConfig(&p)
	config.ActionAutomation = pkcomponents.ActionAutomation().Action(pkactions.HandlerFunc(nil))
	client, err := MakeCustomClient(testAppKey, config, 0)
	assert.Nil(t, client)
	assert.ErrorIs(t, err, pkactions.ErrNoActionNames)
	assert.True(t, p.eventManager.isClosed())
	assert.True(t, store.IsClosed())
}
