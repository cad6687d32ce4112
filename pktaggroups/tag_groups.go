package pktaggroups

import (
	"sort"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/slices"
)

// Type identifies which identity a set of tag groups belongs to.
type Type int

const (
	// ChannelType is for tags attached to the device's channel.
	ChannelType Type = iota
	// NamedUserType is for tags attached to the named user associated with the channel.
	NamedUserType
)

// AllTypes lists every Type, in the order pending mutations are uploaded.
var AllTypes = []Type{ChannelType, NamedUserType} //nolint:gochecknoglobals

func (t Type) String() string {
	switch t {
	case ChannelType:
		return "channel"
	case NamedUserType:
		return "named_user"
	default:
		return "unknown"
	}
}

// TagGroups maps group names to tags. Tags within a group have set semantics; the functions in
// this package keep each slice sorted and free of duplicates.
type TagGroups map[string][]string

// NewTagGroups returns a normalized copy of the given map.
func NewTagGroups(groups map[string][]string) TagGroups {
	ret := make(TagGroups, len(groups))
	for group, tags := range groups {
		ret[group] = normalizeTags(tags)
	}
	return ret
}

// Clone returns a deep copy.
func (tg TagGroups) Clone() TagGroups {
	ret := make(TagGroups, len(tg))
	for group, tags := range tg {
		ret[group] = slices.Clone(tags)
	}
	return ret
}

// Contains returns true if the group is present and holds the tag.
func (tg TagGroups) Contains(group, tag string) bool {
	_, found := slices.BinarySearch(tg[group], tag)
	return found
}

// ContainsAll returns true if every tag of every group in other is present in tg.
func (tg TagGroups) ContainsAll(other TagGroups) bool {
	for group, tags := range other {
		for _, tag := range tags {
			if !tg.Contains(group, tag) {
				return false
			}
		}
	}
	return true
}

// Intersect returns the tags of tg that are also in requested. Groups that end up empty are
// included only if they were requested.
func (tg TagGroups) Intersect(requested TagGroups) TagGroups {
	ret := make(TagGroups, len(requested))
	for group, tags := range requested {
		var kept []string
		for _, tag := range tags {
			if tg.Contains(group, tag) {
				kept = append(kept, tag)
			}
		}
		ret[group] = normalizeTags(kept)
	}
	return ret
}

// Equal returns true if both contain the same groups with the same tags.
func (tg TagGroups) Equal(other TagGroups) bool {
	if len(tg) != len(other) {
		return false
	}
	for group, tags := range tg {
		otherTags, ok := other[group]
		if !ok || !slices.Equal(tags, otherTags) {
			return false
		}
	}
	return true
}

// IsEmpty returns true if there are no tags in any group.
func (tg TagGroups) IsEmpty() bool {
	for _, tags := range tg {
		if len(tags) > 0 {
			return false
		}
	}
	return true
}

// CacheKey returns a stable string representation, suitable as a map or cache key.
func (tg TagGroups) CacheKey() string {
	groups := make([]string, 0, len(tg))
	for group := range tg {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	var b strings.Builder
	for _, group := range groups {
		b.WriteString(group)
		b.WriteByte('=')
		b.WriteString(strings.Join(tg[group], ","))
		b.WriteByte(';')
	}
	return b.String()
}

// AsValue returns the JSON object form, {"group": ["tag", ...]}.
func (tg TagGroups) AsValue() ldvalue.Value {
	groups := make([]string, 0, len(tg))
	for group := range tg {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	b := ldvalue.ObjectBuildWithCapacity(len(tg))
	for _, group := range groups {
		arr := ldvalue.ArrayBuildWithCapacity(len(tg[group]))
		for _, tag := range tg[group] {
			arr.Add(ldvalue.String(tag))
		}
		b.Set(group, arr.Build())
	}
	return b.Build()
}

// TagGroupsFromValue parses the JSON object form. Values that are not arrays of strings are
// ignored.
func TagGroupsFromValue(value ldvalue.Value) TagGroups {
	ret := make(TagGroups)
	if value.Type() != ldvalue.ObjectType {
		return ret
	}
	for _, group := range value.Keys(nil) {
		tagsValue := value.GetByKey(group)
		if tagsValue.Type() != ldvalue.ArrayType {
			continue
		}
		tags := make([]string, 0, tagsValue.Count())
		for i := 0; i < tagsValue.Count(); i++ {
			if tag := tagsValue.GetByIndex(i); tag.IsString() {
				tags = append(tags, tag.StringValue())
			}
		}
		ret[group] = normalizeTags(tags)
	}
	return ret
}

func normalizeTags(tags []string) []string {
	ret := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			ret = append(ret, tag)
		}
	}
	slices.Sort(ret)
	return slices.Compact(ret)
}

func unionTags(a, b []string) []string {
	return normalizeTags(append(slices.Clone(a), b...))
}

func subtractTags(a, b []string) []string {
	ret := make([]string, 0, len(a))
	for _, tag := range a {
		if !slices.Contains(b, tag) {
			ret = append(ret, tag)
		}
	}
	return ret
}
