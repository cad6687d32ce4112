// Package pkcomponents provides the configurable factories for the SDK's components.
//
// Each factory is a ComponentConfigurer: store it in the matching field of pkclient.Config and
// the client builds the component when it starts. For example:
//
//	config := pkclient.Config{
//	    Analytics:      pkcomponents.Analytics().BatchDelay(5 * time.Second),
//	    InAppMessaging: pkcomponents.InAppMessaging().DisplayInterval(30 * time.Second),
//	    Logging:        pkcomponents.Logging().MinLevel(ldlog.Warn),
//	}
package pkcomponents
