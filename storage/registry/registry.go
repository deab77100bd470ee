// Package registry is the build-time registry of storage backends.
//
// Backends register themselves in init():
//
//	registry.MustRegister(registry.Backend{ ... })
//
// A binary enables a backend by importing its package (often as a blank
// import). Flags are registered on a pflag.FlagSet so cobra commands can
// expose every backend's options in a single parse.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/pflag"

	"xdao.co/in3/storage"
)

type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// RegisterFlags adds backend-specific flags to fs.
	// It must be safe to call exactly once per FlagSet.
	RegisterFlags func(fs *pflag.FlagSet)

	// Open constructs the store from values parsed into the flags registered
	// by RegisterFlags. It returns an optional close function.
	Open func() (storage.Storage, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("registry: backend name is required")
	}
	if b.RegisterFlags == nil {
		return fmt.Errorf("registry: backend %q missing RegisterFlags", b.Name)
	}
	if b.Open == nil {
		return fmt.Errorf("registry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("registry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("registry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// RegisterFlags registers flags for all backends matching usage.
func RegisterFlags(fs *pflag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

// Open opens the named backend if it exists and matches usage.
func Open(name string, usage Usage) (storage.Storage, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("registry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("registry: backend %q not supported in this binary", name)
	}
	return b.Open()
}

// OpenTiered opens each named backend in order and layers them with
// storage.Tiered. A single name returns that backend directly.
func OpenTiered(names []string, usage Usage) (storage.Storage, func() error, error) {
	if len(names) == 0 {
		return nil, nil, storage.ErrNoBackends
	}
	seen := make(map[string]struct{}, len(names))
	tiers := make([]storage.Tier, 0, len(names))
	closers := make([]func() error, 0, len(names))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, name := range names {
		if _, dup := seen[name]; dup {
			_ = closeAll()
			return nil, nil, fmt.Errorf("registry: duplicate backend %q", name)
		}
		seen[name] = struct{}{}
		s, closeFn, err := Open(name, usage)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		tiers = append(tiers, storage.Tier{Name: name, Store: s})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}

	if len(tiers) == 1 {
		return tiers[0].Store, closeAll, nil
	}
	return storage.Tiered{Tiers: tiers}, closeAll, nil
}
