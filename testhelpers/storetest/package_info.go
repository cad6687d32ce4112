// Package storetest contains the standard test suites for durable store implementations: key-value
// data stores, analytics event stores and automation schedule stores.
//
// If you are writing your own database integration, use these test suites to ensure that it is being
// fully tested in the same way that all of the built-in ones are tested.
package storetest
