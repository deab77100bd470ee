// Package memory is a bounded in-process Storage backed by an LRU cache.
package memory

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"

	"xdao.co/in3/storage"
)

// DefaultSize is the number of keys kept when New is given a non-positive size.
const DefaultSize = 1024

// Store evicts the least recently used key once Size keys are held.
type Store struct {
	cache *lru.Cache[string, []byte]
}

var _ storage.Storage = (*Store)(nil)

func New(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: c}, nil
}

func (s *Store) Get(key string) ([]byte, error) {
	if err := storage.CheckKey(key); err != nil {
		return nil, err
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Store) Set(key string, value []byte) error {
	if err := storage.CheckKey(key); err != nil {
		return err
	}
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	s.cache.Add(key, v)
	return nil
}

func (s *Store) Clear() error {
	s.cache.Purge()
	return nil
}

// Len returns the number of keys held.
func (s *Store) Len() int { return s.cache.Len() }
