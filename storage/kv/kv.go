package kv

import (
	"errors"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrReadOnly is returned when a read-only transaction attempts an update operation
	ErrReadOnly = errors.New("transaction is read-only")
	// ErrEmptyKey is returned when a caller tries to put a nil or empty key
	ErrEmptyKey = errors.New("key must not be empty")
)

// Store is a transactional store of buckets
type Store interface {
	// Begin starts a transaction. writable should be
	// true for read-write transactions and false for read-only
	// transactions. It must return ErrClosed if the store
	// was closed.
	Begin(writable bool) (Transaction, error)
	// Close closes the store. Close must not return until
	// all writable transactions have committed or rolled back.
	Close() error
	// Delete closes then deletes this store and all its contents.
	Delete() error
}

// Transaction is a transaction for a store. It must only be
// used by one goroutine at a time.
type Transaction interface {
	// Bucket returns the named bucket or nil if it does not exist
	Bucket(name []byte) Bucket
	// CreateBucketIfNotExists returns the named bucket, creating it
	// first if necessary. It must return ErrReadOnly for read-only
	// transactions.
	CreateBucketIfNotExists(name []byte) (Bucket, error)
	// ForEach calls fn with the name of every bucket in
	// ascending lexicographical order.
	ForEach(fn func(name []byte) error) error
	// Commit commits the transaction
	Commit() error
	// Rollback rolls back the transaction
	Rollback() error
}

// Bucket is a sorted map of keys to values
type Bucket interface {
	// Get gets a key. It must return nil if the key does not exist.
	// The returned slice is only valid for the life of the transaction.
	Get(key []byte) []byte
	// Put creates or replaces a key
	Put(key []byte, value []byte) error
	// Cursor returns a cursor for iterating over the
	// keys of the bucket in order
	Cursor() Cursor
}

// Cursor iterates over the keys of a bucket. Each method returns
// nil, nil once it moves past either end of the bucket.
type Cursor interface {
	First() (key []byte, value []byte)
	Last() (key []byte, value []byte)
	Next() (key []byte, value []byte)
	Prev() (key []byte, value []byte)
	Seek(seek []byte) (key []byte, value []byte)
}

// Update runs fn inside a writable transaction, committing if
// fn returns nil and rolling back otherwise.
func Update(store Store, fn func(transaction Transaction) error) error {
	transaction, err := store.Begin(true)

	if err != nil {
		return err
	}

	if err := fn(transaction); err != nil {
		transaction.Rollback()

		return err
	}

	return transaction.Commit()
}

// View runs fn inside a read-only transaction
func View(store Store, fn func(transaction Transaction) error) error {
	transaction, err := store.Begin(false)

	if err != nil {
		return err
	}

	defer transaction.Rollback()

	return fn(transaction)
}
