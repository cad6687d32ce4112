// Package pkhttp provides helpers for the HTTP transport used by SDK components.
//
// Applications normally configure these options through pkcomponents.HTTPConfiguration(); the
// package is exported for hosts that build their own clients for custom components.
package pkhttp
