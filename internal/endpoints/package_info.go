// Package endpoints contains the default service URIs and request paths used by SDK components.
package endpoints
