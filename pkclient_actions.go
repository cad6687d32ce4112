package pkclient

import (
	"context"
	"errors"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkactions"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkcomponents"
)

// Names of the built-in actions. Each has a short alias.
const (
	AddTagsActionName        = "add_tags_action"
	RemoveTagsActionName     = "remove_tags_action"
	AddCustomEventActionName = "add_custom_event_action"
)

var errInvalidTagsValue = errors.New("tags must be a string, an array of strings or an object of tag groups")

func (c *Client) setUpActionAutomation(config Config, clientContext *clientContextImpl) error {
	factory := config.ActionAutomation
	if factory == nil {
		factory = pkcomponents.ActionAutomation()
	}
	managerConfig, err := factory.Build(clientContext)
	if err != nil {
		return err
	}
	c.registerBuiltInActions(managerConfig.Registry)
	c.actionStore = managerConfig.Store
	c.actions = pkactions.NewManager(managerConfig)
	return nil
}

// registerBuiltInActions adds the built-in actions under every name the application has not taken.
func (c *Client) registerBuiltInActions(registry *pkactions.Registry) {
	builtIns := []struct {
		handler pkactions.Handler
		names   []string
	}{
		{tagsAction{client: c, add: true}, []string{AddTagsActionName, "^+t"}},
		{tagsAction{client: c}, []string{RemoveTagsActionName, "^-t"}},
		{customEventAction{client: c}, []string{AddCustomEventActionName, "^+ce"}},
	}
	for _, b := range builtIns {
		for _, name := range b.names {
			if _, taken := registry.Lookup(name); !taken {
				_ = registry.Register(b.handler, name)
			}
		}
	}
}

// Actions returns the action automation manager. Its registry also runs actions on request.
func (c *Client) Actions() *pkactions.Manager {
	return c.actions
}

// RunAction performs a registered action right away.
func (c *Client) RunAction(ctx context.Context, name string, value ldvalue.Value) error {
	return c.actions.Registry().Run(ctx, name, pkactions.Arguments{Value: value})
}

// processTrigger feeds an event to both automation engines.
func (c *Client) processTrigger(event pkautomation.TriggerEvent) {
	c.inApp.Engine().ProcessEvent(event)
	c.actions.Engine().ProcessEvent(event)
}

// tagsAction adds or removes tags. A string or an array of strings changes the device tags; an
// object of the form {"channel": {"group": ["tag"]}, "named_user": {...}} changes tag groups.
type tagsAction struct {
	client *Client
	add    bool
}

func (a tagsAction) AcceptsArguments(args pkactions.Arguments) bool {
	_, _, ok := parseTags(args.Value)
	return ok
}

func (a tagsAction) Perform(_ context.Context, args pkactions.Arguments) error {
	tags, groups, ok := parseTags(args.Value)
	if !ok {
		return errInvalidTagsValue
	}
	if len(tags) > 0 {
		a.client.changeDeviceTags(tags, a.add)
	}
	for key, editor := range map[string]*TagGroupsEditor{
		"channel":    a.client.EditChannelTags(),
		"named_user": a.client.EditNamedUserTags(),
	} {
		for group, groupTags := range groups[key] {
			if a.add {
				editor.AddTags(group, groupTags...)
			} else {
				editor.RemoveTags(group, groupTags...)
			}
		}
		editor.Apply()
	}
	return nil
}

func parseTags(v ldvalue.Value) (tags []string, groups map[string]map[string][]string, ok bool) {
	switch v.Type() {
	case ldvalue.StringType:
		return []string{v.StringValue()}, nil, v.StringValue() != ""
	case ldvalue.ArrayType:
		tags, ok = stringArray(v)
		return tags, nil, ok && len(tags) > 0
	case ldvalue.ObjectType:
		groups = make(map[string]map[string][]string)
		for _, key := range v.Keys(nil) {
			if key != "channel" && key != "named_user" {
				return nil, nil, false
			}
			byGroup := v.GetByKey(key)
			if byGroup.Type() != ldvalue.ObjectType {
				return nil, nil, false
			}
			groups[key] = make(map[string][]string)
			for _, group := range byGroup.Keys(nil) {
				groupTags, ok := stringArray(byGroup.GetByKey(group))
				if !ok {
					return nil, nil, false
				}
				groups[key][group] = groupTags
			}
		}
		return nil, groups, len(groups) > 0
	default:
		return nil, nil, false
	}
}

func stringArray(v ldvalue.Value) ([]string, bool) {
	if v.Type() != ldvalue.ArrayType {
		return nil, false
	}
	ret := make([]string, 0, v.Count())
	for i := 0; i < v.Count(); i++ {
		item := v.GetByIndex(i)
		if item.Type() != ldvalue.StringType {
			return nil, false
		}
		ret = append(ret, item.StringValue())
	}
	return ret, true
}

// customEventAction tracks a custom event described by an object with "event_name" and optional
// "event_value" and "properties".
type customEventAction struct {
	client *Client
}

func (a customEventAction) AcceptsArguments(args pkactions.Arguments) bool {
	name := args.Value.GetByKey("event_name")
	return name.Type() == ldvalue.StringType && name.StringValue() != ""
}

func (a customEventAction) Perform(_ context.Context, args pkactions.Arguments) error {
	v := args.Value
	return a.client.TrackCustomEvent(v.GetByKey("event_name").StringValue(), v.GetByKey("event_value"),
		v.GetByKey("properties"))
}
