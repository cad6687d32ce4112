// Package pksqlite provides SQLite-backed implementations of the SDK's durable stores: the
// key-value data store, the analytics event store and the automation schedule store.
//
// The stores use the pure-Go modernc.org/sqlite driver, so no CGO is required. Stores configured
// with the same database path share one connection:
//
//	config := pkclient.Config{
//	    DataStore: pksqlite.DataStore().Path("/var/lib/myapp/pushkit.db"),
//	    Analytics: pkcomponents.Analytics().EventStore(pksqlite.EventStore().Path("/var/lib/myapp/pushkit.db")),
//	}
package pksqlite
