package storage

import "errors"

var (
	ErrNotFound   = errors.New("storage: not found")
	ErrInvalidKey = errors.New("storage: invalid key")
	ErrNoBackends = errors.New("storage: no backends configured")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// CheckKey returns ErrInvalidKey for an empty key.
func CheckKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
