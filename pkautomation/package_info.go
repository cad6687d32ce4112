// Package pkautomation contains the automation engine: a store of schedules and the state machine
// that moves each schedule from waiting for its triggers, through preparation, to execution.
//
// What a schedule does when it executes is up to the engine's Delegate; the in-app messaging
// package is the main one.
package pkautomation
