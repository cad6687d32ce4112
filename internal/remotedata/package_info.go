// Package remotedata is an internal package containing the polling remote data source and the
// dispatcher that fans payloads out to their consumers by type.
package remotedata
