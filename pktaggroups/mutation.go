package pktaggroups

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Mutation is a tag-group edit. Within one mutation, Set is applied first, then Add, then Remove.
//
// A group present in Set with no tags clears that group.
type Mutation struct {
	Add    TagGroups
	Remove TagGroups
	Set    TagGroups
}

// AddTagsMutation creates a mutation that adds tags to a group.
func AddTagsMutation(group string, tags ...string) Mutation {
	return Mutation{Add: TagGroups{group: normalizeTags(tags)}}
}

// RemoveTagsMutation creates a mutation that removes tags from a group.
func RemoveTagsMutation(group string, tags ...string) Mutation {
	return Mutation{Remove: TagGroups{group: normalizeTags(tags)}}
}

// SetTagsMutation creates a mutation that replaces the tags of a group.
func SetTagsMutation(group string, tags ...string) Mutation {
	return Mutation{Set: TagGroups{group: normalizeTags(tags)}}
}

// IsEmpty returns true if applying the mutation would never change anything.
func (m Mutation) IsEmpty() bool {
	return len(m.Set) == 0 && m.Add.IsEmpty() && m.Remove.IsEmpty()
}

// Equal returns true if both mutations have the same effect in the same form.
func (m Mutation) Equal(other Mutation) bool {
	return nonEmptyGroups(m.Add).Equal(nonEmptyGroups(other.Add)) &&
		nonEmptyGroups(m.Remove).Equal(nonEmptyGroups(other.Remove)) &&
		m.Set.Equal(other.Set)
}

// Apply returns the result of applying the mutation to a copy of tg.
func (m Mutation) Apply(tg TagGroups) TagGroups {
	ret := tg.Clone()
	for group, tags := range m.Set {
		ret[group] = normalizeTags(tags)
	}
	for group, tags := range m.Add {
		if len(tags) > 0 {
			ret[group] = unionTags(ret[group], tags)
		}
	}
	for group, tags := range m.Remove {
		if existing, ok := ret[group]; ok {
			ret[group] = subtractTags(existing, tags)
		}
	}
	return ret
}

// AsValue returns the request payload form: {"add": {...}, "remove": {...}, "set": {...}}, with
// empty parts omitted.
func (m Mutation) AsValue() ldvalue.Value {
	b := ldvalue.ObjectBuild()
	if add := nonEmptyGroups(m.Add); len(add) > 0 {
		b.Set("add", add.AsValue())
	}
	if remove := nonEmptyGroups(m.Remove); len(remove) > 0 {
		b.Set("remove", remove.AsValue())
	}
	if len(m.Set) > 0 {
		b.Set("set", m.Set.AsValue())
	}
	return b.Build()
}

// MutationFromValue parses the payload form produced by AsValue.
func MutationFromValue(value ldvalue.Value) Mutation {
	var m Mutation
	if v, ok := value.TryGetByKey("add"); ok {
		m.Add = TagGroupsFromValue(v)
	}
	if v, ok := value.TryGetByKey("remove"); ok {
		m.Remove = TagGroupsFromValue(v)
	}
	if v, ok := value.TryGetByKey("set"); ok {
		m.Set = TagGroupsFromValue(v)
	}
	return m
}

// CollapseMutations merges mutations, in order, into the single mutation with the same net effect.
// It returns nil if the net effect is nothing.
//
// A set replaces any earlier add or remove for its group. An add or remove of a group that has
// been set edits the set instead. An add cancels an earlier remove of the same tags, and the
// other way around. Collapsing the result again returns it unchanged.
func CollapseMutations(mutations []Mutation) []Mutation {
	add, remove, set := make(TagGroups), make(TagGroups), make(TagGroups)
	for _, m := range mutations {
		for group, tags := range m.Set {
			set[group] = normalizeTags(tags)
			delete(add, group)
			delete(remove, group)
		}
		for group, tags := range m.Add {
			if existing, ok := set[group]; ok {
				set[group] = unionTags(existing, tags)
				continue
			}
			add[group] = unionTags(add[group], tags)
			remove[group] = subtractTags(remove[group], tags)
		}
		for group, tags := range m.Remove {
			if existing, ok := set[group]; ok {
				set[group] = subtractTags(existing, tags)
				continue
			}
			remove[group] = unionTags(remove[group], tags)
			add[group] = subtractTags(add[group], tags)
		}
	}
	collapsed := Mutation{Add: nonEmptyGroups(add), Remove: nonEmptyGroups(remove), Set: set}
	if len(collapsed.Add) == 0 {
		collapsed.Add = nil
	}
	if len(collapsed.Remove) == 0 {
		collapsed.Remove = nil
	}
	if len(collapsed.Set) == 0 {
		collapsed.Set = nil
	}
	if collapsed.IsEmpty() {
		return nil
	}
	return []Mutation{collapsed}
}

func nonEmptyGroups(tg TagGroups) TagGroups {
	ret := make(TagGroups, len(tg))
	for group, tags := range tg {
		if len(tags) > 0 {
			ret[group] = tags
		}
	}
	return ret
}
