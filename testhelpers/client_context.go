package testhelpers

import (
	"os"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"

	"github.com/pushkit/go-client-sdk/subsystems"
)

// NewSimpleClientContext returns a subsystems.ClientContext for testing a custom component, with the
// default HTTP configuration, disabled logging, and no data store.
func NewSimpleClientContext(appKey string) subsystems.BasicClientContext {
	return subsystems.BasicClientContext{
		AppKey:  appKey,
		Logging: subsystems.LoggingConfiguration{Loggers: ldlog.NewDisabledLoggers()},
	}
}

// TestCanFail is the subset of test interfaces, such as *testing.T, needed by WithMockLoggingContext.
type TestCanFail interface {
	Failed() bool
}

// WithMockLoggingContext runs an action with a ClientContext that writes to a MockLog. At the end of
// the action's scope, the captured output is dumped to the console only if there has been a test
// failure.
func WithMockLoggingContext(t TestCanFail, action func(subsystems.ClientContext)) {
	mockLog := ldlogtest.NewMockLog()
	context := NewSimpleClientContext("")
	context.Logging.Loggers = mockLog.Loggers
	defer func() {
		if t.Failed() {
			mockLog.Dump(os.Stdout)
		}
	}()
	action(context)
}
