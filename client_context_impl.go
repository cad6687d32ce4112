package pkclient

import (
	"github.com/pushkit/go-client-sdk/pkevents"
	"github.com/pushkit/go-client-sdk/subsystems"
)

type clientContextImpl struct {
	subsystems.BasicClientContext
	// Used internally to give the analytics component access to the client's headers.
	analyticsDelegate pkevents.Delegate
}

// This method is accessed by the Analytics builder by checking for a private interface.
func (c *clientContextImpl) GetAnalyticsDelegate() pkevents.Delegate {
	return c.analyticsDelegate
}
