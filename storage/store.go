// Package storage defines the backing key-value store contract the trie
// engine persists through, along with a batching extension for
// implementations that benefit from buffered writes.
package storage

import "errors"

var (
	// ErrNotFound is returned by Get when the requested key is absent.
	ErrNotFound = errors.New("storage: key not found")

	// ErrClosed reports an operation on a store that has already been
	// closed. No store in this module returns it: storage/mem has no
	// Close, and storage/badger and storage/leveldb return their
	// database's own error when used after Close.
	ErrClosed = errors.New("storage: closed")
)

// Store is the backing store contract spec'd for the trie: a byte-keyed,
// byte-valued map with an explicit commit boundary. Keys passed to Get,
// Put, and Delete are 32-byte digests.
type Store interface {
	// Has reports whether key is present.
	Has(key []byte) (bool, error)

	// Get retrieves the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Put stores value under key.
	Put(key, value []byte) error

	// Delete removes key, if present. Deleting an absent key is not an
	// error.
	Delete(key []byte) error

	// Commit durably persists all writes made since the last commit.
	Commit() error
}

// Batch is a write-only buffer that applies as a unit when Write is
// called. A batch is not safe for concurrent use.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error

	// ValueSize reports the number of bytes queued for writing.
	ValueSize() int

	// Write flushes the batch to its parent store.
	Write() error

	// Reset clears the batch for reuse.
	Reset()
}

// Batcher is implemented by stores that support buffered batch writes.
type Batcher interface {
	NewBatch() Batch
}

// CopyBytes returns a copy of b, or nil if b is nil. Store implementations
// use this to avoid aliasing caller-owned slices.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
