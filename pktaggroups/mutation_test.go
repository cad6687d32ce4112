package pktaggroups

import (
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTagGroupsNormalizes(t *testing.T) {
	tg := NewTagGroups(map[string][]string{"g": {"b", "a", "b", " ", "c "}})
	assert.Equal(t, []string{"a", "b", "c"}, tg["g"])
}

func TestMutationApply(t *testing.T) {
	base := NewTagGroups(map[string][]string{"g1": {"a", "b"}, "g2": {"x"}})

	result := AddTagsMutation("g1", "c").Apply(base)
	assert.Equal(t, []string{"a", "b", "c"}, result["g1"])
	assert.Equal(t, []string{"a", "b"}, base["g1"], "original must not change")

	result = RemoveTagsMutation("g1", "a", "zzz").Apply(base)
	assert.Equal(t, []string{"b"}, result["g1"])

	result = SetTagsMutation("g2", "y", "z").Apply(base)
	assert.Equal(t, []string{"y", "z"}, result["g2"])

	result = SetTagsMutation("g2").Apply(base)
	assert.Empty(t, result["g2"])

	result = RemoveTagsMutation("missing", "a").Apply(base)
	_, present := result["missing"]
	assert.False(t, present)
}

func TestMutationValueForm(t *testing.T) {
	m := Mutation{
		Add:    TagGroups{"g1": {"a"}},
		Remove: TagGroups{"g2": {"b"}, "empty": {}},
		Set:    TagGroups{"g3": {"c", "d"}},
	}
	expected := ldvalue.Parse([]byte(`{"add":{"g1":["a"]},"remove":{"g2":["b"]},"set":{"g3":["c","d"]}}`))
	assert.True(t, expected.Equal(m.AsValue()), m.AsValue().JSONString())

	parsed := MutationFromValue(m.AsValue())
	assert.True(t, parsed.Equal(m))
}

func TestCollapseMutations(t *testing.T) {
	for _, tc := range []struct {
		name     string
		input    []Mutation
		expected []Mutation
	}{
		{"empty", nil, nil},
		{
			"adds are merged",
			[]Mutation{AddTagsMutation("g", "a"), AddTagsMutation("g", "b")},
			[]Mutation{AddTagsMutation("g", "a", "b")},
		},
		{
			"add after remove cancels the remove",
			[]Mutation{RemoveTagsMutation("g", "a", "b"), AddTagsMutation("g", "a")},
			[]Mutation{{Add: TagGroups{"g": {"a"}}, Remove: TagGroups{"g": {"b"}}}},
		},
		{
			"remove after add cancels the add",
			[]Mutation{AddTagsMutation("g", "a", "b"), RemoveTagsMutation("g", "a")},
			[]Mutation{{Add: TagGroups{"g": {"b"}}, Remove: TagGroups{"g": {"a"}}}},
		},
		{
			"set replaces earlier edits",
			[]Mutation{AddTagsMutation("g", "a"), RemoveTagsMutation("g", "b"), SetTagsMutation("g", "c")},
			[]Mutation{SetTagsMutation("g", "c")},
		},
		{
			"edits after set change the set",
			[]Mutation{SetTagsMutation("g", "a", "b"), AddTagsMutation("g", "c"), RemoveTagsMutation("g", "a")},
			[]Mutation{SetTagsMutation("g", "b", "c")},
		},
		{
			"set of nothing is kept",
			[]Mutation{AddTagsMutation("g", "a"), SetTagsMutation("g")},
			[]Mutation{SetTagsMutation("g")},
		},
		{
			"groups are independent",
			[]Mutation{AddTagsMutation("g1", "a"), SetTagsMutation("g2", "b")},
			[]Mutation{{Add: TagGroups{"g1": {"a"}}, Set: TagGroups{"g2": {"b"}}}},
		},
		{
			"empty mutations collapse to nothing",
			[]Mutation{AddTagsMutation("g"), RemoveTagsMutation("g")},
			nil,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := CollapseMutations(tc.input)
			require.Len(t, result, len(tc.expected))
			for i := range result {
				assert.True(t, tc.expected[i].Equal(result[i]), result[i].AsValue().JSONString())
			}
		})
	}
}

func TestCollapseIsIdempotent(t *testing.T) {
	input := []Mutation{
		AddTagsMutation("g1", "a", "b"),
		RemoveTagsMutation("g1", "b", "c"),
		SetTagsMutation("g2", "x"),
		AddTagsMutation("g2", "y"),
		RemoveTagsMutation("g3", "z"),
		AddTagsMutation("g3", "w"),
	}
	once := CollapseMutations(input)
	twice := CollapseMutations(once)
	require.Len(t, once, 1)
	require.Len(t, twice, 1)
	assert.True(t, once[0].Equal(twice[0]))
}

func TestCollapsedMutationHasSameEffect(t *testing.T) {
	base := NewTagGroups(map[string][]string{"g1": {"a", "c"}, "g2": {"q"}, "g3": {"z"}})
	input := []Mutation{
		AddTagsMutation("g1", "a", "b"),
		RemoveTagsMutation("g1", "b", "c"),
		SetTagsMutation("g2", "x"),
		AddTagsMutation("g2", "y"),
		RemoveTagsMutation("g3", "z"),
		AddTagsMutation("g3", "w", "z"),
	}
	sequential := base
	for _, m := range input {
		sequential = m.Apply(sequential)
	}
	collapsed := CollapseMutations(input)[0].Apply(base)
	assert.True(t, sequential.Equal(collapsed), "%v != %v", sequential, collapsed)
}

func TestTagGroupsIntersect(t *testing.T) {
	tg := NewTagGroups(map[string][]string{"g1": {"a", "b"}, "g2": {"c"}})
	result := tg.Intersect(TagGroups{"g1": {"a", "x"}, "g3": {"y"}})
	assert.Equal(t, TagGroups{"g1": {"a"}, "g3": {}}, result)
}

func TestTagGroupsContainsAll(t *testing.T) {
	tg := NewTagGroups(map[string][]string{"g1": {"a", "b"}})
	assert.True(t, tg.ContainsAll(TagGroups{"g1": {"b"}}))
	assert.False(t, tg.ContainsAll(TagGroups{"g1": {"c"}}))
	assert.False(t, tg.ContainsAll(TagGroups{"g2": {"a"}}))
	assert.True(t, tg.ContainsAll(TagGroups{}))
}

func TestTagGroupsFromValueIgnoresBadData(t *testing.T) {
	tg := TagGroupsFromValue(ldvalue.Parse([]byte(`{"g1":["b","a",3],"g2":"x"}`)))
	assert.Equal(t, TagGroups{"g1": {"a", "b"}}, tg)
	assert.Empty(t, TagGroupsFromValue(ldvalue.String("x")))
}
