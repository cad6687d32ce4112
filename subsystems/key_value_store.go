package subsystems

import (
	"io"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// KeyValueStore is the durable preference store used by SDK components for small persisted
// values: batch-policy overrides, tag-group history, remote data bookkeeping.
//
// No transactional guarantees are assumed across keys. Implementations must be safe for
// concurrent use.
type KeyValueStore interface {
	io.Closer

	// Get returns the value stored under key. The second return value is false if there is no
	// such key; in that case the returned value is ldvalue.Null().
	Get(key string) (ldvalue.Value, bool, error)

	// Set stores a value, replacing any previous value for the key.
	Set(key string, value ldvalue.Value) error

	// Remove deletes the key. Removing a key that does not exist is not an error.
	Remove(key string) error
}
