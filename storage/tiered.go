package storage

import (
	"errors"
	"fmt"
)

// Tier associates a Storage with a stable backend name.
type Tier struct {
	Name  string
	Store Storage
}

// Tiered provides deterministic, ordered fallback across several stores.
//
// Reads try tiers in slice order and return the first hit. A value found in a
// later tier is not copied into earlier ones. Writes and Clear go to every
// tier; every tier is attempted and the errors are joined.
type Tiered struct {
	Tiers []Tier
}

var _ Storage = Tiered{}

func (t Tiered) Get(key string) ([]byte, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	for _, tier := range t.Tiers {
		if tier.Store == nil {
			continue
		}
		b, err := tier.Store.Get(key)
		if err == nil {
			return b, nil
		}
		if IsNotFound(err) {
			continue
		}
		return nil, fmt.Errorf("storage: tier %q: %w", tier.Name, err)
	}
	return nil, ErrNotFound
}

func (t Tiered) Set(key string, value []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	return t.each(func(s Storage) error { return s.Set(key, value) })
}

func (t Tiered) Clear() error {
	return t.each(func(s Storage) error { return s.Clear() })
}

// Close closes every tier that implements Closer.
func (t Tiered) Close() error {
	var errs []error
	for _, tier := range t.Tiers {
		if c, ok := tier.Store.(Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("storage: tier %q: %w", tier.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (t Tiered) each(fn func(Storage) error) error {
	if len(t.Tiers) == 0 {
		return ErrNoBackends
	}
	var errs []error
	for _, tier := range t.Tiers {
		if tier.Store == nil {
			return fmt.Errorf("storage: nil store for tier %q", tier.Name)
		}
		if err := fn(tier.Store); err != nil {
			errs = append(errs, fmt.Errorf("storage: tier %q: %w", tier.Name, err))
		}
	}
	return errors.Join(errs...)
}
