// Package internal contains SDK implementation details that are shared between packages,
// but are not exposed to application code. The retriable, remotedata and endpoints subpackages
// contain implementation components specific to their areas of functionality.
package internal
