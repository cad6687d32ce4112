// Package pkclient is the main package for the pushkit client SDK.
//
// This package contains the types and methods for the SDK client ([Client]) and its overall
// configuration ([Config]).
//
// Subpackages in the same repository provide additional functionality for specific features of the
// client. Most applications that need to change any configuration settings will use the package
// pkcomponents.
//
// The client records analytics events and uploads them in batches, keeps tag-group edits queued
// until they can be uploaded, and runs in-app message schedules delivered by remote data:
//
//	client, err := pkclient.MakeClient("my-app-key", 5*time.Second)
//	if err != nil {
//	    log.Printf("pushkit client did not finish starting: %s", err)
//	}
//	defer client.Close()
//
//	client.OnAppInit()
//	client.OnForeground()
//	client.TrackScreen("home")
//	_ = client.TrackCustomEvent("purchase", ldvalue.Float64(9.99), ldvalue.Null())
//
// In-app messages are displayed through adapters registered per display type; see the pkinapp
// package and pkcomponents.InAppMessaging().
package pkclient
