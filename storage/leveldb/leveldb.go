// Package leveldb implements a storage.Store backed by goleveldb, mirroring
// the muxdb-over-goleveldb persistence layer vechain-thor builds its trie
// storage on.
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/merkletrie/mpt/storage"
)

// Database is a goleveldb-backed key-value store.
type Database struct {
	db *leveldb.DB
}

// New opens (creating if absent) a goleveldb database at path.
func New(path string) (*Database, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close releases the underlying database handle.
func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(key, nil)
}

func (db *Database) Get(key []byte) ([]byte, error) {
	val, err := db.db.Get(key, nil)
	if errors.IsNotFound(err) {
		return nil, storage.ErrNotFound
	}
	return val, err
}

func (db *Database) Put(key, value []byte) error {
	return db.db.Put(key, value, nil)
}

func (db *Database) Delete(key []byte) error {
	err := db.db.Delete(key, nil)
	if errors.IsNotFound(err) {
		return nil
	}
	return err
}

// Commit forces goleveldb to compact its full keyspace, flushing buffered
// writes out of the memtable and write-ahead journal.
func (db *Database) Commit() error {
	return db.db.CompactRange(util.Range{})
}
