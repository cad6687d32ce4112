// Package interfaces contains types that are shared between the SDK client and application code.
//
// You will not need to refer to these types in your code unless you are overriding default
// configuration or creating a plug-in component.
package interfaces
