// Package pkactions runs named actions, either on request or from automation schedules.
//
// A Registry maps action names to Handlers. A Manager owns an automation engine of its own whose
// schedules carry a set of actions; when one of them executes, each action is looked up in the
// registry and performed with its value as arguments.
package pkactions
