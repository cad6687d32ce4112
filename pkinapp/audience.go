package pkinapp

import (
	"context"
	"errors"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pktaggroups"
)

// MissBehavior is what happens to a triggered schedule whose audience does not match.
type MissBehavior string

const (
	// MissSkip leaves the schedule to trigger again later. It is the default.
	MissSkip MissBehavior = "skip"
	// MissCancel cancels the schedule.
	MissCancel MissBehavior = "cancel"
	// MissPenalize counts an execution without displaying the message.
	MissPenalize MissBehavior = "penalize"
)

// Audience restricts which devices display a message. Nil and empty fields are not checked.
type Audience struct {
	NewUser            *bool
	NotificationsOptIn *bool
	LocationOptIn      *bool
	// LanguageIDs are locale identifiers such as "en" or "fr-CA". "en" matches every English locale.
	LanguageIDs []string
	TagSelector *TagSelector
	// VersionRange is a semver range the app version must satisfy.
	VersionRange string
	MissBehavior MissBehavior
}

func (a Audience) missResult() pkautomation.PrepareResult {
	switch a.MissBehavior {
	case MissCancel:
		return pkautomation.PrepareCancel
	case MissPenalize:
		return pkautomation.PreparePenalize
	default:
		return pkautomation.PrepareSkip
	}
}

// AudienceAsValue returns the JSON form of an audience.
func AudienceAsValue(a Audience) ldvalue.Value {
	b := ldvalue.ObjectBuild()
	setBool := func(key string, v *bool) {
		if v != nil {
			b.Set(key, ldvalue.Bool(*v))
		}
	}
	setBool("new_user", a.NewUser)
	setBool("notification_opt_in", a.NotificationsOptIn)
	setBool("location_opt_in", a.LocationOptIn)
	if len(a.LanguageIDs) > 0 {
		ids := ldvalue.ArrayBuildWithCapacity(len(a.LanguageIDs))
		for _, id := range a.LanguageIDs {
			ids.Add(ldvalue.String(id))
		}
		b.Set("locale", ids.Build())
	}
	if a.TagSelector != nil {
		b.Set("tags", a.TagSelector.AsValue())
	}
	if a.VersionRange != "" {
		b.Set("app_version", ldvalue.String(a.VersionRange))
	}
	if a.MissBehavior != "" {
		b.Set("miss_behavior", ldvalue.String(string(a.MissBehavior)))
	}
	return b.Build()
}

// AudienceFromValue parses the JSON form of an audience. Unknown miss behaviors become MissSkip.
func AudienceFromValue(v ldvalue.Value) Audience {
	getBool := func(key string) *bool {
		if b, ok := v.TryGetByKey(key); ok && b.Type() == ldvalue.BoolType {
			value := b.BoolValue()
			return &value
		}
		return nil
	}
	a := Audience{
		NewUser:            getBool("new_user"),
		NotificationsOptIn: getBool("notification_opt_in"),
		LocationOptIn:      getBool("location_opt_in"),
		VersionRange:       v.GetByKey("app_version").StringValue(),
	}
	locales := v.GetByKey("locale")
	for i := 0; i < locales.Count(); i++ {
		if id := locales.GetByIndex(i).StringValue(); id != "" {
			a.LanguageIDs = append(a.LanguageIDs, id)
		}
	}
	if tags, ok := v.TryGetByKey("tags"); ok {
		if selector, valid := TagSelectorFromValue(tags); valid {
			a.TagSelector = &selector
		}
	}
	switch mb := MissBehavior(v.GetByKey("miss_behavior").StringValue()); mb {
	case MissCancel, MissPenalize:
		a.MissBehavior = mb
	default:
		a.MissBehavior = MissSkip
	}
	return a
}

// Environment describes the device for audience checks.
type Environment struct {
	IsNewUser          bool
	NotificationsOptIn bool
	LocationOptIn      bool
	Locale             string
	AppVersion         string
	DeviceTags         []string
}

// TagLookup fetches the device's tag groups. pktaggroups.LookupManager implements it.
type TagLookup interface {
	GetTags(ctx context.Context, requested pktaggroups.TagGroups) (pktaggroups.TagGroups, error)
}

// AudienceChecker decides whether the device is in an audience. An error means the answer could
// not be determined yet.
type AudienceChecker interface {
	Check(ctx context.Context, audience Audience) (bool, error)
}

// ErrNoTagLookup is returned when an audience needs tag groups but no TagLookup is configured.
var ErrNoTagLookup = errors.New("audience requires tag groups but no tag lookup is configured")

// DefaultAudienceChecker checks audiences against an Environment.
type DefaultAudienceChecker struct {
	// Environment returns the current device state. It is required.
	Environment func() Environment
	// TagLookup is used for selectors that refer to tag groups. It may be nil.
	TagLookup TagLookup
}

// Check implements AudienceChecker.
func (c DefaultAudienceChecker) Check(ctx context.Context, audience Audience) (bool, error) {
	env := c.Environment()
	for _, check := range []struct {
		want *bool
		have bool
	}{
		{audience.NewUser, env.IsNewUser},
		{audience.NotificationsOptIn, env.NotificationsOptIn},
		{audience.LocationOptIn, env.LocationOptIn},
	} {
		if check.want != nil && *check.want != check.have {
			return false, nil
		}
	}
	if len(audience.LanguageIDs) > 0 && !localeMatches(env.Locale, audience.LanguageIDs) {
		return false, nil
	}
	if audience.VersionRange != "" && !pkautomation.VersionInRange(env.AppVersion, audience.VersionRange) {
		return false, nil
	}
	if audience.TagSelector == nil {
		return true, nil
	}
	var tagGroups pktaggroups.TagGroups
	if requested := audience.TagSelector.TagGroups(); !requested.IsEmpty() {
		if c.TagLookup == nil {
			return false, ErrNoTagLookup
		}
		var err error
		if tagGroups, err = c.TagLookup.GetTags(ctx, requested); err != nil {
			return false, err
		}
	}
	return audience.TagSelector.Apply(env.DeviceTags, tagGroups), nil
}

func localeMatches(locale string, ids []string) bool {
	normalized := normalizeLocale(locale)
	language, _, _ := strings.Cut(normalized, "-")
	for _, id := range ids {
		id = normalizeLocale(id)
		if id == normalized || (!strings.Contains(id, "-") && id == language) {
			return true
		}
	}
	return false
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}
