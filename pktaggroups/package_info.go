// Package pktaggroups tracks tag-group edits made on the device, uploads them, and looks up the
// tag groups the server holds for the channel.
//
// Edits are recorded as Mutation values in a MutationHistory, which persists them in the
// client's key-value store until they are sent. Sent mutations are kept for a while afterward, so
// that a lookup response which predates them can be corrected locally.
package pktaggroups
