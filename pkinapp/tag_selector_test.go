package pkinapp

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/pktaggroups"
)

func TestTagSelectorApply(t *testing.T) {
	deviceTags := []string{"vip", "beta"}
	groups := pktaggroups.NewTagGroups(map[string][]string{"loyalty": {"gold"}})

	for _, p := range []struct {
		name     string
		selector TagSelector
		expected bool
	}{
		{"device tag", Tag("vip"), true},
		{"missing device tag", Tag("churned"), false},
		{"group tag", GroupTag("loyalty", "gold"), true},
		{"group tag in other group", GroupTag("other", "gold"), false},
		{"and", And(Tag("vip"), GroupTag("loyalty", "gold")), true},
		{"and with a miss", And(Tag("vip"), Tag("churned")), false},
		{"or", Or(Tag("churned"), Tag("beta")), true},
		{"not", Not(Tag("churned")), true},
		{"nested", Not(Or(Tag("churned"), And(Tag("vip"), Tag("beta")))), false},
	} {
		t.Run(p.name, func(t *testing.T) {
			assert.Equal(t, p.expected, p.selector.Apply(deviceTags, groups))
		})
	}
}

func TestTagSelectorJSON(t *testing.T) {
	selector := And(Tag("vip"), Not(GroupTag("loyalty", "gold")), Or(Tag("a"), Tag("b")))
	expected := `{"and":[{"tag":"vip"},{"not":{"tag":"gold","group":"loyalty"}},{"or":[{"tag":"a"},{"tag":"b"}]}]}`
	assert.JSONEq(t, expected, selector.AsValue().JSONString())

	parsed, ok := TagSelectorFromValue(ldvalue.Parse([]byte(expected)))
	require.True(t, ok)
	assert.Equal(t, selector, parsed)

	_, ok = TagSelectorFromValue(ldvalue.Parse([]byte(`{"and":"nope"}`)))
	assert.False(t, ok)
	_, ok = TagSelectorFromValue(ldvalue.Parse([]byte(`{"xor":[]}`)))
	assert.False(t, ok)
}

func TestTagSelectorTagGroups(t *testing.T) {
	selector := Or(GroupTag("g1", "b"), Not(GroupTag("g1", "a")), Tag("device"), GroupTag("g2", "c"))
	assert.Equal(t, pktaggroups.NewTagGroups(map[string][]string{"g1": {"a", "b"}, "g2": {"c"}}), selector.TagGroups())
	assert.True(t, Tag("device").TagGroups().IsEmpty())
}
