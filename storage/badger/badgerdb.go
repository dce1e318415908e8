// Package badger implements a storage.Store backed by BadgerDB, for
// callers that want the trie's nodes to survive process restarts.
package badger

import (
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/merkletrie/mpt/storage"
)

// Database is a BadgerDB-backed key-value store.
type Database struct {
	db *badgerdb.DB
}

// New opens (creating if absent) a BadgerDB database at path.
func New(path string) (*Database, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", path, err)
	}
	return &Database{db: db}, nil
}

// Close releases the underlying database handle.
func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Has(key []byte) (bool, error) {
	err := db.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (db *Database) Get(key []byte) ([]byte, error) {
	var val []byte
	err := db.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	return val, err
}

func (db *Database) Put(key, value []byte) error {
	return db.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
}

func (db *Database) Delete(key []byte) error {
	return db.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(key)
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Commit flushes Badger's write-ahead log to disk. Individual Put/Delete
// calls already run in their own committed transactions, so Commit's role
// here is only to force durability of the underlying value log.
func (db *Database) Commit() error {
	return db.db.Sync()
}
