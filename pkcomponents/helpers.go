package pkcomponents

import (
	"github.com/pushkit/go-client-sdk/pkevents"
)

// This interface is implemented only by the SDK's own ClientContext implementation.
type hasAnalyticsDelegate interface {
	GetAnalyticsDelegate() pkevents.Delegate
}
