package interfaces

// ApplicationInfo allows configuration of application metadata.
//
// If you want to set non-default values for any of these fields, set the ApplicationInfo field
// in the SDK's Config struct.
type ApplicationInfo struct {
	// ApplicationID identifies the host application. It is sent with every event upload.
	ApplicationID string

	// ApplicationVersion is the host application's version. It is matched against version
	// triggers and against the app-version range of in-app message audiences, so it should be a
	// semantic version string such as "2.4.1".
	ApplicationVersion string

	// Locale is a BCP 47 language tag such as "en-US". It is used for remote data requests and
	// audience language checks.
	Locale string
}

// LanguageCode returns the language part of Locale, for instance "en" for "en-US".
func (a ApplicationInfo) LanguageCode() string {
	for i, ch := range a.Locale {
		if ch == '-' || ch == '_' {
			return a.Locale[:i]
		}
	}
	return a.Locale
}

// CountryCode returns the region part of Locale, or an empty string if there is none.
func (a ApplicationInfo) CountryCode() string {
	for i, ch := range a.Locale {
		if ch == '-' || ch == '_' {
			return a.Locale[i+1:]
		}
	}
	return ""
}
