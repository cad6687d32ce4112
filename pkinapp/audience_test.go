package pkinapp

import (
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pktaggroups"
)

type mockTagLookup struct {
	tags      pktaggroups.TagGroups
	err       error
	requested []pktaggroups.TagGroups
}

func (l *mockTagLookup) GetTags(_ context.Context, requested pktaggroups.TagGroups) (pktaggroups.TagGroups, error) {
	l.requested = append(l.requested, requested)
	if l.err != nil {
		return nil, l.err
	}
	return l.tags.Intersect(requested), nil
}

func boolPtr(b bool) *bool { return &b }

func TestDefaultAudienceChecker(t *testing.T) {
	env := Environment{
		IsNewUser:          true,
		NotificationsOptIn: false,
		Locale:             "en_US",
		AppVersion:         "2.3.1",
		DeviceTags:         []string{"vip"},
	}
	lookup := &mockTagLookup{tags: pktaggroups.NewTagGroups(map[string][]string{"loyalty": {"gold"}})}
	checker := DefaultAudienceChecker{Environment: func() Environment { return env }, TagLookup: lookup}

	gold := GroupTag("loyalty", "gold")
	silver := GroupTag("loyalty", "silver")
	vip := Tag("vip")

	for _, p := range []struct {
		name     string
		audience Audience
		expected bool
	}{
		{"empty audience", Audience{}, true},
		{"new user", Audience{NewUser: boolPtr(true)}, true},
		{"not new user", Audience{NewUser: boolPtr(false)}, false},
		{"notifications opt in", Audience{NotificationsOptIn: boolPtr(true)}, false},
		{"language", Audience{LanguageIDs: []string{"fr", "en"}}, true},
		{"exact locale", Audience{LanguageIDs: []string{"en-us"}}, true},
		{"other country", Audience{LanguageIDs: []string{"en-GB"}}, false},
		{"version in range", Audience{VersionRange: ">=2.0.0 <3.0.0"}, true},
		{"version out of range", Audience{VersionRange: ">=3.0.0"}, false},
		{"device tag", Audience{TagSelector: &vip}, true},
		{"group tag", Audience{TagSelector: &gold}, true},
		{"missing group tag", Audience{TagSelector: &silver}, false},
	} {
		t.Run(p.name, func(t *testing.T) {
			matched, err := checker.Check(context.Background(), p.audience)
			require.NoError(t, err)
			assert.Equal(t, p.expected, matched)
		})
	}
}

func TestAudienceCheckerOnlyLooksUpWhenGroupsAreNeeded(t *testing.T) {
	lookup := &mockTagLookup{}
	checker := DefaultAudienceChecker{Environment: func() Environment { return Environment{} }, TagLookup: lookup}
	selector := Not(Tag("vip"))
	matched, err := checker.Check(context.Background(), Audience{TagSelector: &selector})
	require.NoError(t, err)
	assert.True(t, matched)
	assert.Len(t, lookup.requested, 0)
}

func TestAudienceCheckerLookupError(t *testing.T) {
	fakeErr := errors.New("sorry")
	checker := DefaultAudienceChecker{
		Environment: func() Environment { return Environment{} },
		TagLookup:   &mockTagLookup{err: fakeErr},
	}
	selector := GroupTag("g", "t")
	_, err := checker.Check(context.Background(), Audience{TagSelector: &selector})
	assert.Equal(t, fakeErr, err)

	checker.TagLookup = nil
	_, err = checker.Check(context.Background(), Audience{TagSelector: &selector})
	assert.Equal(t, ErrNoTagLookup, err)
}

func TestAudienceJSON(t *testing.T) {
	selector := And(Tag("a"), GroupTag("g", "b"))
	a := Audience{
		NewUser:       boolPtr(true),
		LocationOptIn: boolPtr(false),
		LanguageIDs:   []string{"en", "fr-CA"},
		TagSelector:   &selector,
		VersionRange:  ">=1.0.0",
		MissBehavior:  MissPenalize,
	}
	parsed := AudienceFromValue(AudienceAsValue(a))
	assert.Equal(t, a, parsed)

	defaults := AudienceFromValue(ldvalue.Parse([]byte(`{"miss_behavior": "explode"}`)))
	assert.Equal(t, MissSkip, defaults.MissBehavior)
	assert.Nil(t, defaults.NewUser)
}

func TestMissBehaviorResults(t *testing.T) {
	assert.Equal(t, pkautomation.PrepareSkip, Audience{}.missResult())
	assert.Equal(t, pkautomation.PrepareCancel, Audience{MissBehavior: MissCancel}.missResult())
	assert.Equal(t, pkautomation.PreparePenalize, Audience{MissBehavior: MissPenalize}.missResult())
}

func TestMessageJSON(t *testing.T) {
	m := Message{
		ID:             "m1",
		Name:           "Welcome",
		DisplayType:    DisplayModal,
		DisplayContent: ldvalue.ObjectBuild().Set("body", ldvalue.String("hi")).Build(),
		Audience:       &Audience{MissBehavior: MissCancel},
		Source:         SourceRemoteData,
	}
	parsed := MessageFromValue(MessageAsValue(m))
	assert.Equal(t, m.ID, parsed.ID)
	assert.Equal(t, m.Name, parsed.Name)
	assert.Equal(t, m.DisplayType, parsed.DisplayType)
	assert.True(t, m.DisplayContent.Equal(parsed.DisplayContent))
	assert.Equal(t, m.Source, parsed.Source)
	require.NotNil(t, parsed.Audience)
	assert.Equal(t, MissCancel, parsed.Audience.MissBehavior)

	assert.Equal(t, SourceAppDefined, MessageFromValue(ldvalue.Parse([]byte(`{"message_id":"x"}`))).Source)
}
