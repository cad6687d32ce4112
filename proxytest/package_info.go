// Package proxytest contains tests of HTTP proxy support that need separate test runs.
package proxytest
