// Package pkevents contains the analytics event pipeline: the event model, the durable event store
// contract, the server-adjustable batch policy, the HTTP event sender and the event manager that
// batches stored events and uploads them.
//
// Application code normally does not use this package directly; events are recorded through
// pkclient.Client, and the pipeline is configured with pkcomponents.Analytics().
package pkevents
