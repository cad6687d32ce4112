package pkinapp

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/slices"

	"github.com/pushkit/go-client-sdk/pktaggroups"
)

// SelectorType is the kind of a TagSelector node.
type SelectorType string

// Selector node kinds.
const (
	SelectorTag SelectorType = "tag"
	SelectorAnd SelectorType = "and"
	SelectorOr  SelectorType = "or"
	SelectorNot SelectorType = "not"
)

// TagSelector is a boolean expression over tags. A tag without a group is matched against the
// device tags; a tag with a group is matched against the device's tag groups, which are looked up
// from the server.
type TagSelector struct {
	Type      SelectorType
	Tag       string
	Group     string
	Selectors []TagSelector
}

// Tag creates a selector matching a device tag.
func Tag(tag string) TagSelector { return TagSelector{Type: SelectorTag, Tag: tag} }

// GroupTag creates a selector matching a tag in a tag group.
func GroupTag(group, tag string) TagSelector {
	return TagSelector{Type: SelectorTag, Tag: tag, Group: group}
}

// And creates a selector matching when every child matches.
func And(selectors ...TagSelector) TagSelector {
	return TagSelector{Type: SelectorAnd, Selectors: selectors}
}

// Or creates a selector matching when any child matches.
func Or(selectors ...TagSelector) TagSelector {
	return TagSelector{Type: SelectorOr, Selectors: selectors}
}

// Not creates a selector inverting its child.
func Not(selector TagSelector) TagSelector {
	return TagSelector{Type: SelectorNot, Selectors: []TagSelector{selector}}
}

// Apply evaluates the selector.
func (s TagSelector) Apply(deviceTags []string, tagGroups pktaggroups.TagGroups) bool {
	switch s.Type {
	case SelectorTag:
		if s.Group != "" {
			return tagGroups.Contains(s.Group, s.Tag)
		}
		return slices.Contains(deviceTags, s.Tag)
	case SelectorAnd:
		for _, child := range s.Selectors {
			if !child.Apply(deviceTags, tagGroups) {
				return false
			}
		}
		return true
	case SelectorOr:
		for _, child := range s.Selectors {
			if child.Apply(deviceTags, tagGroups) {
				return true
			}
		}
		return false
	case SelectorNot:
		return len(s.Selectors) == 1 && !s.Selectors[0].Apply(deviceTags, tagGroups)
	default:
		return false
	}
}

// TagGroups returns every group tag the selector refers to.
func (s TagSelector) TagGroups() pktaggroups.TagGroups {
	groups := map[string][]string{}
	s.collectGroups(groups)
	return pktaggroups.NewTagGroups(groups)
}

func (s TagSelector) collectGroups(into map[string][]string) {
	if s.Type == SelectorTag && s.Group != "" {
		into[s.Group] = append(into[s.Group], s.Tag)
	}
	for _, child := range s.Selectors {
		child.collectGroups(into)
	}
}

// AsValue returns the JSON form: {"tag": t, "group": g}, {"and": [...]}, {"or": [...]} or
// {"not": {...}}.
func (s TagSelector) AsValue() ldvalue.Value {
	switch s.Type {
	case SelectorTag:
		b := ldvalue.ObjectBuild().Set("tag", ldvalue.String(s.Tag))
		if s.Group != "" {
			b.Set("group", ldvalue.String(s.Group))
		}
		return b.Build()
	case SelectorNot:
		if len(s.Selectors) == 1 {
			return ldvalue.ObjectBuild().Set("not", s.Selectors[0].AsValue()).Build()
		}
		return ldvalue.Null()
	case SelectorAnd, SelectorOr:
		children := ldvalue.ArrayBuildWithCapacity(len(s.Selectors))
		for _, child := range s.Selectors {
			children.Add(child.AsValue())
		}
		return ldvalue.ObjectBuild().Set(string(s.Type), children.Build()).Build()
	default:
		return ldvalue.Null()
	}
}

// TagSelectorFromValue parses the JSON form of a selector. The second return value is false if the
// value is not a valid selector.
func TagSelectorFromValue(v ldvalue.Value) (TagSelector, bool) {
	if tag, ok := v.TryGetByKey("tag"); ok && tag.IsString() {
		return TagSelector{Type: SelectorTag, Tag: tag.StringValue(), Group: v.GetByKey("group").StringValue()}, true
	}
	if child, ok := v.TryGetByKey("not"); ok {
		parsed, valid := TagSelectorFromValue(child)
		if !valid {
			return TagSelector{}, false
		}
		return Not(parsed), true
	}
	for _, t := range []SelectorType{SelectorAnd, SelectorOr} {
		children, ok := v.TryGetByKey(string(t))
		if !ok {
			continue
		}
		if children.Type() != ldvalue.ArrayType {
			return TagSelector{}, false
		}
		ret := TagSelector{Type: t}
		for i := 0; i < children.Count(); i++ {
			parsed, valid := TagSelectorFromValue(children.GetByIndex(i))
			if !valid {
				return TagSelector{}, false
			}
			ret.Selectors = append(ret.Selectors, parsed)
		}
		return ret, true
	}
	return TagSelector{}, false
}
