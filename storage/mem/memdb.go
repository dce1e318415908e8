// Package mem implements an ephemeral, in-process storage.Store backed by
// a plain Go map. It is the zero-configuration default backend, used
// throughout the trie package's own tests.
package mem

import (
	"sync"

	"github.com/merkletrie/mpt/storage"
)

// Database is an in-memory key-value store. Writes are visible
// immediately; Commit is a no-op since there is no separate durable
// medium to flush to.
type Database struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New returns an empty in-memory store.
func New() *Database {
	return &Database{values: make(map[string][]byte)}
}

func (db *Database) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.values[string(key)]
	return ok, nil
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.values[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.CopyBytes(v), nil
}

func (db *Database) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.values[string(key)] = storage.CopyBytes(value)
	return nil
}

func (db *Database) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.values, string(key))
	return nil
}

// Commit is a no-op: the in-memory store has no separate durable medium
// to flush writes to.
func (db *Database) Commit() error {
	return nil
}

// Len returns the number of entries currently stored. Test-only helper.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.values)
}

// NewBatch returns a write-only batch buffering writes until Write is
// called.
func (db *Database) NewBatch() storage.Batch {
	return &batch{db: db}
}

type keyval struct {
	key    string
	value  []byte
	delete bool
}

type batch struct {
	db      *Database
	pending []keyval
	size    int
}

func (b *batch) Put(key, value []byte) error {
	b.pending = append(b.pending, keyval{key: string(key), value: storage.CopyBytes(value)})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.pending = append(b.pending, keyval{key: string(key), delete: true})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int { return b.size }

func (b *batch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, kv := range b.pending {
		if kv.delete {
			delete(b.db.values, kv.key)
		} else {
			b.db.values[kv.key] = kv.value
		}
	}
	return nil
}

func (b *batch) Reset() {
	b.pending = b.pending[:0]
	b.size = 0
}
