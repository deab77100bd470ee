// Package storage defines the persistence capability the verification engine
// reaches through the host trampoline, plus composition helpers.
//
// Values are opaque blobs owned by the engine; this package assigns them no
// format.
package storage

// Storage is a minimal key/value cache.
//
// Contract:
//   - Get MUST return ErrNotFound when the key is absent.
//   - Set MUST replace any prior value for key.
//   - Clear MUST remove every key the store holds.
//   - Keys MUST be non-empty; implementations return ErrInvalidKey otherwise.
//   - Returned slices are owned by the caller.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Clear() error
}

// Closer is implemented by stores that hold resources.
type Closer interface {
	Close() error
}
