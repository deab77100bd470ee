// Package leveldb is a persistent Storage on goleveldb.
package leveldb

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbstorage "github.com/syndtr/goleveldb/leveldb/storage"

	"xdao.co/in3/storage"
)

// Store keeps every key in one LevelDB database.
type Store struct {
	db *leveldb.DB
}

var _ storage.Storage = (*Store)(nil)

// Open opens (or creates) the database at dir.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("leveldb: directory is required")
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a database that lives only in memory.
func OpenMemory() (*Store, error) {
	db, err := leveldb.Open(ldbstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) ([]byte, error) {
	if err := storage.CheckKey(key); err != nil {
		return nil, err
	}
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (s *Store) Set(key string, value []byte) error {
	if err := storage.CheckKey(key); err != nil {
		return err
	}
	return s.db.Put([]byte(key), value, nil)
}

// Clear deletes every key in a single batch.
func (s *Store) Clear() error {
	it := s.db.NewIterator(nil, nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *Store) Close() error { return s.db.Close() }
