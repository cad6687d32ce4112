// Package pkinapp implements in-app messaging on top of the automation engine.
//
// A Message is scheduled as an automation schedule whose group is the message ID. When the schedule
// triggers, the Manager checks the message's audience, asks the adapter registered for the
// message's display type to prepare it, and displays it when both the adapter and the display
// coordinator are ready. Messages defined remotely are synchronized by a RemoteDataClient.
package pkinapp
