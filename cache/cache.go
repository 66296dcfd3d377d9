// Package cache provides the persistent device-local key-value namespace
// the sync engine works against. Values are opaque serialized records; the
// engine decides what lives under which key.
package cache

// Store is the local cache contract: get, set, enumerate keys, and a full
// flush. Selecting a new permit clears the whole namespace, so no section
// data can leak across permits.
type Store interface {
	// Get returns the value for key and whether the key exists.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Keys returns every key currently present, in unspecified order.
	Keys() ([]string, error)
	Clear() error
}
