// Package retriable runs chains of retryable asynchronous work one chain at a time.
//
// A Retriable is a single unit of work with its own retry budget and backoff. A Pipeline accepts
// chains of Retriables and executes them strictly sequentially: one chain at a time in submission
// order, and within a chain one Retriable at a time in order. A terminal result or an exhausted
// retry budget aborts the remainder of the chain. Steps that already completed are not rolled back.
package retriable
