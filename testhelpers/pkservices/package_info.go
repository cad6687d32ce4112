// Package pkservices provides HTTP handlers that simulate the behavior of PushKit service endpoints.
//
// This is mainly intended for use in the SDK's unit tests. It could also be useful in testing
// applications that use the SDK, if it is desirable to use real HTTP rather than other kinds of
// test fixtures.
package pkservices
