package sharedtest

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/pushkit/go-client-sdk/interfaces"
	"github.com/pushkit/go-client-sdk/subsystems"
)

// TestAppKey is the application key used in test client contexts.
const TestAppKey = "test-app-key"

// NewSimpleTestContext returns a basic implementation of subsystems.ClientContext for use in test code.
func NewSimpleTestContext(appKey string) subsystems.BasicClientContext {
	return NewTestContext(appKey, nil, nil)
}

// NewTestContext returns a basic implementation of subsystems.ClientContext for use in test code. Nil
// parameters select defaults: the default HTTP client, and disabled loggers.
func NewTestContext(
	appKey string,
	optHTTPConfig *subsystems.HTTPConfiguration,
	optLoggingConfig *subsystems.LoggingConfiguration,
) subsystems.BasicClientContext {
	ret := subsystems.BasicClientContext{
		AppKey:          appKey,
		ApplicationInfo: interfaces.ApplicationInfo{ApplicationVersion: "1.0.0", Locale: "en-US"},
		DataStore:       NewMockKeyValueStore(),
	}
	if optHTTPConfig != nil {
		ret.HTTP = *optHTTPConfig
	}
	if optLoggingConfig != nil {
		ret.Logging = *optLoggingConfig
	} else {
		ret.Logging.Loggers = ldlog.NewDisabledLoggers()
	}
	return ret
}
