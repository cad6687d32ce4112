// Package pkfilewatch lets the file data source of package pkfiledata reload its files when they
// change, using file system notifications. It is a separate package so that applications which do
// not reload files do not depend on fsnotify.
package pkfilewatch
