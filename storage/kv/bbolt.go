package kv

import (
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"
)

// BBoltStoreConfig configures a BBoltStore
type BBoltStoreConfig struct {
	Path string
}

var _ Store = (*BBoltStore)(nil)

// BBoltStore is a Store backed by a bbolt database file
type BBoltStore struct {
	db *bolt.DB
}

// NewBBoltStore opens, creating if necessary, the bbolt
// database at config.Path
func NewBBoltStore(config BBoltStoreConfig) (*BBoltStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %s", config.Path, err.Error())
	}

	return &BBoltStore{db: db}, nil
}

// Begin implements Store.Begin
func (store *BBoltStore) Begin(writable bool) (Transaction, error) {
	transaction, err := store.db.Begin(writable)

	if err == bolt.ErrDatabaseNotOpen {
		return nil, ErrClosed
	}

	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %s", err.Error())
	}

	return &BBoltTransaction{transaction: transaction}, nil
}

// Close implements Store.Close
func (store *BBoltStore) Close() error {
	return store.db.Close()
}

// Delete implements Store.Delete
func (store *BBoltStore) Delete() error {
	path := store.db.Path()

	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %s", err.Error())
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %s", path, err.Error())
	}

	return nil
}

var _ Transaction = (*BBoltTransaction)(nil)

// BBoltTransaction implements Transaction
type BBoltTransaction struct {
	transaction *bolt.Tx
}

// Bucket implements Transaction.Bucket
func (transaction *BBoltTransaction) Bucket(name []byte) Bucket {
	bucket := transaction.transaction.Bucket(name)

	if bucket == nil {
		return nil
	}

	return &BBoltBucket{bucket: bucket}
}

// CreateBucketIfNotExists implements Transaction.CreateBucketIfNotExists
func (transaction *BBoltTransaction) CreateBucketIfNotExists(name []byte) (Bucket, error) {
	if !transaction.transaction.Writable() {
		return nil, ErrReadOnly
	}

	bucket, err := transaction.transaction.CreateBucketIfNotExists(name)

	if err != nil {
		return nil, fmt.Errorf("could not create bucket: %s", err.Error())
	}

	return &BBoltBucket{bucket: bucket}, nil
}

// ForEach implements Transaction.ForEach
func (transaction *BBoltTransaction) ForEach(fn func(name []byte) error) error {
	return transaction.transaction.ForEach(func(name []byte, b *bolt.Bucket) error {
		return fn(name)
	})
}

// Commit implements Transaction.Commit
func (transaction *BBoltTransaction) Commit() error {
	return transaction.transaction.Commit()
}

// Rollback implements Transaction.Rollback
func (transaction *BBoltTransaction) Rollback() error {
	return transaction.transaction.Rollback()
}

var _ Bucket = (*BBoltBucket)(nil)

// BBoltBucket implements Bucket
type BBoltBucket struct {
	bucket *bolt.Bucket
}

// Get implements Bucket.Get
func (bucket *BBoltBucket) Get(key []byte) []byte {
	return bucket.bucket.Get(key)
}

// Put implements Bucket.Put
func (bucket *BBoltBucket) Put(key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	if !bucket.bucket.Writable() {
		return ErrReadOnly
	}

	return bucket.bucket.Put(key, value)
}

// Cursor implements Bucket.Cursor
func (bucket *BBoltBucket) Cursor() Cursor {
	return &BBoltCursor{cursor: bucket.bucket.Cursor()}
}

var _ Cursor = (*BBoltCursor)(nil)

// BBoltCursor implements Cursor
type BBoltCursor struct {
	cursor *bolt.Cursor
}

// First implements Cursor.First
func (cursor *BBoltCursor) First() (key []byte, value []byte) {
	return cursor.cursor.First()
}

// Last implements Cursor.Last
func (cursor *BBoltCursor) Last() (key []byte, value []byte) {
	return cursor.cursor.Last()
}

// Next implements Cursor.Next
func (cursor *BBoltCursor) Next() (key []byte, value []byte) {
	return cursor.cursor.Next()
}

// Prev implements Cursor.Prev
func (cursor *BBoltCursor) Prev() (key []byte, value []byte) {
	return cursor.cursor.Prev()
}

// Seek implements Cursor.Seek
func (cursor *BBoltCursor) Seek(seek []byte) (key []byte, value []byte) {
	return cursor.cursor.Seek(seek)
}
