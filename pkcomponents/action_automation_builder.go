package pkcomponents

import (
	"fmt"

	"github.com/pushkit/go-client-sdk/pkactions"
	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/subsystems"
)

type actionRegistration struct {
	handler pkactions.Handler
	names   []string
}

// ActionAutomationBuilder provides methods for configuring action automation.
//
// See ActionAutomation for usage.
type ActionAutomationBuilder struct {
	scheduleLimit int
	actions       []actionRegistration
	scheduleStore subsystems.ComponentConfigurer[pkautomation.ScheduleStore]
}

// ActionAutomation returns a configuration builder for action automation: schedules that perform
// named actions when their triggers fire.
//
// The client registers a few built-in actions; handlers added with Action take precedence over
// them. Store the builder in Config.ActionAutomation:
//
//	config := pkclient.Config{
//	    ActionAutomation: pkcomponents.ActionAutomation().
//	        Action(openURL, "open_url_action", "^u").
//	        ScheduleStore(pksqlite.ActionScheduleStore().Path("pushkit.db")),
//	}
func ActionAutomation() *ActionAutomationBuilder {
	return &ActionAutomationBuilder{scheduleLimit: DefaultScheduleLimit}
}

// ScheduleLimit sets the maximum number of action schedules that may exist at once.
//
// The default value is DefaultScheduleLimit; the minimum is 1.
func (b *ActionAutomationBuilder) ScheduleLimit(limit int) *ActionAutomationBuilder {
	if limit < 1 {
		limit = 1
	}
	b.scheduleLimit = limit
	return b
}

// Action registers a handler under one or more names. A later registration of the same name
// replaces an earlier one.
func (b *ActionAutomationBuilder) Action(handler pkactions.Handler, names ...string) *ActionAutomationBuilder {
	b.actions = append(b.actions, actionRegistration{handler: handler, names: append([]string(nil), names...)})
	return b
}

// ScheduleStore sets the store that holds action schedules. It must not be the store used for
// in-app message schedules.
//
// The default is InMemoryScheduleStore(). Use pksqlite.ActionScheduleStore() to keep schedules
// across restarts.
func (b *ActionAutomationBuilder) ScheduleStore(
	storeConfigurer subsystems.ComponentConfigurer[pkautomation.ScheduleStore],
) *ActionAutomationBuilder {
	b.scheduleStore = storeConfigurer
	return b
}

// Build is called by the SDK to collect the action automation configuration. Each call returns a
// new registry.
func (b *ActionAutomationBuilder) Build(context subsystems.ClientContext) (pkactions.ManagerConfig, error) {
	loggers := context.GetLogging().Loggers
	loggers.SetPrefix("ActionAutomation:")

	registry := pkactions.NewRegistry()
	for _, a := range b.actions {
		if err := registry.Register(a.handler, a.names...); err != nil {
			return pkactions.ManagerConfig{}, err
		}
	}

	storeConfigurer := b.scheduleStore
	if storeConfigurer == nil {
		storeConfigurer = InMemoryScheduleStore()
	}
	store, err := storeConfigurer.Build(context)
	if err != nil {
		return pkactions.ManagerConfig{}, fmt.Errorf("creating action schedule store: %w", err)
	}

	return pkactions.ManagerConfig{
		Store:         store,
		Registry:      registry,
		DataStore:     context.GetDataStore(),
		ScheduleLimit: b.scheduleLimit,
		Loggers:       loggers,
	}, nil
}
