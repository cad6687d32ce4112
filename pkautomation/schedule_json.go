package pkautomation

import (
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldtime"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Schedules are persisted, and triggers arrive in remote data, as JSON objects. Times are Unix
// milliseconds and durations are milliseconds; zero values are omitted.

// ScheduleAsValue returns the persisted form of a schedule.
func ScheduleAsValue(s Schedule) ldvalue.Value {
	b := ldvalue.ObjectBuild().
		Set("id", ldvalue.String(s.ID)).
		Set("info", ScheduleInfoAsValue(s.Info)).
		Set("state", ldvalue.String(s.State.String())).
		Set("execution_count", ldvalue.Int(s.ExecutionCount))
	if !s.Metadata.IsNull() {
		b.Set("metadata", s.Metadata)
	}
	setTime(b, "state_changed_at", s.StateChangedAt)
	setTime(b, "created_at", s.CreatedAt)
	return b.Build()
}

// ScheduleFromValue parses the persisted form of a schedule.
func ScheduleFromValue(v ldvalue.Value) Schedule {
	return Schedule{
		ID:             v.GetByKey("id").StringValue(),
		Info:           ScheduleInfoFromValue(v.GetByKey("info")),
		Metadata:       v.GetByKey("metadata"),
		State:          parseState(v.GetByKey("state").StringValue()),
		ExecutionCount: v.GetByKey("execution_count").IntValue(),
		StateChangedAt: getTime(v, "state_changed_at"),
		CreatedAt:      getTime(v, "created_at"),
	}
}

// ScheduleInfoAsValue returns the JSON form of a ScheduleInfo.
func ScheduleInfoAsValue(info ScheduleInfo) ldvalue.Value {
	triggers := ldvalue.ArrayBuildWithCapacity(len(info.Triggers))
	for _, t := range info.Triggers {
		triggers.Add(TriggerAsValue(t))
	}
	b := ldvalue.ObjectBuild().
		Set("triggers", triggers.Build()).
		Set("limit", ldvalue.Int(info.Limit)).
		Set("priority", ldvalue.Int(info.Priority))
	if info.Group != "" {
		b.Set("group", ldvalue.String(info.Group))
	}
	setDuration(b, "delay", info.Delay)
	setDuration(b, "interval", info.Interval)
	setDuration(b, "edit_grace_period", info.EditGracePeriod)
	setTime(b, "start", info.Start)
	setTime(b, "end", info.End)
	if !info.Data.IsNull() {
		b.Set("data", info.Data)
	}
	return b.Build()
}

// ScheduleInfoFromValue parses the JSON form of a ScheduleInfo.
func ScheduleInfoFromValue(v ldvalue.Value) ScheduleInfo {
	triggersValue := v.GetByKey("triggers")
	triggers := make([]Trigger, 0, triggersValue.Count())
	for i := 0; i < triggersValue.Count(); i++ {
		triggers = append(triggers, TriggerFromValue(triggersValue.GetByIndex(i)))
	}
	return ScheduleInfo{
		Group:           v.GetByKey("group").StringValue(),
		Triggers:        triggers,
		Delay:           getDuration(v, "delay"),
		Start:           getTime(v, "start"),
		End:             getTime(v, "end"),
		Limit:           v.GetByKey("limit").IntValue(),
		Priority:        v.GetByKey("priority").IntValue(),
		Interval:        getDuration(v, "interval"),
		EditGracePeriod: getDuration(v, "edit_grace_period"),
		Data:            v.GetByKey("data"),
	}
}

// TriggerAsValue returns the JSON form of a trigger: {"type", "goal", "progress", "predicate"}.
func TriggerAsValue(t Trigger) ldvalue.Value {
	b := ldvalue.ObjectBuild().
		Set("type", ldvalue.String(string(t.Type))).
		Set("goal", ldvalue.Float64(t.Goal))
	if t.Progress != 0 {
		b.Set("progress", ldvalue.Float64(t.Progress))
	}
	if p := t.Predicate; p != nil {
		pb := ldvalue.ObjectBuild()
		setString(pb, "event_name", p.EventName)
		setString(pb, "region_id", p.RegionID)
		setString(pb, "screen", p.Screen)
		setString(pb, "version_range", p.VersionRange)
		if p.Properties.Type() == ldvalue.ObjectType {
			pb.Set("properties", p.Properties)
		}
		b.Set("predicate", pb.Build())
	}
	return b.Build()
}

// TriggerFromValue parses the JSON form of a trigger.
func TriggerFromValue(v ldvalue.Value) Trigger {
	t := Trigger{
		Type:     TriggerType(v.GetByKey("type").StringValue()),
		Goal:     v.GetByKey("goal").Float64Value(),
		Progress: v.GetByKey("progress").Float64Value(),
	}
	if p, ok := v.TryGetByKey("predicate"); ok && p.Type() == ldvalue.ObjectType {
		t.Predicate = &TriggerPredicate{
			EventName:    p.GetByKey("event_name").StringValue(),
			Properties:   p.GetByKey("properties"),
			RegionID:     p.GetByKey("region_id").StringValue(),
			Screen:       p.GetByKey("screen").StringValue(),
			VersionRange: p.GetByKey("version_range").StringValue(),
		}
	}
	return t
}

func parseState(s string) State {
	for st := StateIdle; st <= StateCancelled; st++ {
		if st.String() == s {
			return st
		}
	}
	return StateIdle
}

func setString(b *ldvalue.ObjectBuilder, key, value string) {
	if value != "" {
		b.Set(key, ldvalue.String(value))
	}
}

func setTime(b *ldvalue.ObjectBuilder, key string, t time.Time) {
	if !t.IsZero() {
		b.Set(key, ldvalue.Float64(float64(ldtime.UnixMillisFromTime(t))))
	}
}

func getTime(v ldvalue.Value, key string) time.Time {
	ms := v.GetByKey(key)
	if !ms.IsNumber() {
		return time.Time{}
	}
	return time.UnixMilli(int64(ldtime.UnixMillisecondTime(ms.Float64Value())))
}

func setDuration(b *ldvalue.ObjectBuilder, key string, d time.Duration) {
	if d != 0 {
		b.Set(key, ldvalue.Float64(float64(d.Milliseconds())))
	}
}

func getDuration(v ldvalue.Value, key string) time.Duration {
	return time.Duration(v.GetByKey(key).Float64Value()) * time.Millisecond
}
