package kv

import (
	"bytes"
	"sort"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

func compareBytes(a, b interface{}) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}

func clone(b []byte) []byte {
	return append([]byte{}, b...)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store. Writable transactions are
// serialized and work on a copy-on-write view of the buckets
// they touch, read-only transactions see the buckets as they
// were when the transaction began.
type MemoryStore struct {
	writer  sync.Mutex
	mu      sync.RWMutex
	buckets map[string]*treemap.Map
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: map[string]*treemap.Map{}}
}

// Begin implements Store.Begin
func (store *MemoryStore) Begin(writable bool) (Transaction, error) {
	if writable {
		store.writer.Lock()
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		if writable {
			store.writer.Unlock()
		}

		return nil, ErrClosed
	}

	buckets := make(map[string]*treemap.Map, len(store.buckets))

	for name, bucket := range store.buckets {
		buckets[name] = bucket
	}

	return &MemoryTransaction{
		store:    store,
		writable: writable,
		buckets:  buckets,
		copied:   map[string]bool{},
	}, nil
}

// Close implements Store.Close
func (store *MemoryStore) Close() error {
	store.writer.Lock()
	defer store.writer.Unlock()

	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true

	return nil
}

// Delete implements Store.Delete
func (store *MemoryStore) Delete() error {
	if err := store.Close(); err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	store.buckets = map[string]*treemap.Map{}

	return nil
}

var _ Transaction = (*MemoryTransaction)(nil)

// MemoryTransaction implements Transaction
type MemoryTransaction struct {
	store    *MemoryStore
	writable bool
	done     bool
	buckets  map[string]*treemap.Map
	copied   map[string]bool
}

// Bucket implements Transaction.Bucket
func (transaction *MemoryTransaction) Bucket(name []byte) Bucket {
	m, ok := transaction.buckets[string(name)]

	if !ok {
		return nil
	}

	if transaction.writable && !transaction.copied[string(name)] {
		m = copyMap(m)
		transaction.buckets[string(name)] = m
		transaction.copied[string(name)] = true
	}

	return &MemoryBucket{m: m, writable: transaction.writable}
}

// CreateBucketIfNotExists implements Transaction.CreateBucketIfNotExists
func (transaction *MemoryTransaction) CreateBucketIfNotExists(name []byte) (Bucket, error) {
	if !transaction.writable {
		return nil, ErrReadOnly
	}

	if len(name) == 0 {
		return nil, ErrEmptyKey
	}

	if _, ok := transaction.buckets[string(name)]; !ok {
		transaction.buckets[string(name)] = treemap.NewWith(compareBytes)
		transaction.copied[string(name)] = true
	}

	return transaction.Bucket(name), nil
}

// ForEach implements Transaction.ForEach
func (transaction *MemoryTransaction) ForEach(fn func(name []byte) error) error {
	names := make([]string, 0, len(transaction.buckets))

	for name := range transaction.buckets {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if err := fn([]byte(name)); err != nil {
			return err
		}
	}

	return nil
}

// Commit implements Transaction.Commit
func (transaction *MemoryTransaction) Commit() error {
	if transaction.done {
		return ErrClosed
	}

	transaction.done = true

	if !transaction.writable {
		return nil
	}

	defer transaction.store.writer.Unlock()

	transaction.store.mu.Lock()
	defer transaction.store.mu.Unlock()

	transaction.store.buckets = transaction.buckets

	return nil
}

// Rollback implements Transaction.Rollback
func (transaction *MemoryTransaction) Rollback() error {
	if transaction.done {
		return nil
	}

	transaction.done = true

	if transaction.writable {
		transaction.store.writer.Unlock()
	}

	return nil
}

func copyMap(m *treemap.Map) *treemap.Map {
	c := treemap.NewWith(compareBytes)
	iter := m.Iterator()

	for iter.Next() {
		c.Put(iter.Key(), iter.Value())
	}

	return c
}

var _ Bucket = (*MemoryBucket)(nil)

// MemoryBucket implements Bucket
type MemoryBucket struct {
	m        *treemap.Map
	writable bool
}

// Get implements Bucket.Get
func (bucket *MemoryBucket) Get(key []byte) []byte {
	v, ok := bucket.m.Get(key)

	if !ok {
		return nil
	}

	return v.([]byte)
}

// Put implements Bucket.Put
func (bucket *MemoryBucket) Put(key []byte, value []byte) error {
	if !bucket.writable {
		return ErrReadOnly
	}

	if len(key) == 0 {
		return ErrEmptyKey
	}

	bucket.m.Put(clone(key), clone(value))

	return nil
}

// Cursor implements Bucket.Cursor
func (bucket *MemoryBucket) Cursor() Cursor {
	keys := bucket.m.Keys()
	cursor := &MemoryCursor{keys: make([][]byte, len(keys)), values: make([][]byte, len(keys)), position: -1}

	for i, key := range keys {
		value, _ := bucket.m.Get(key)
		cursor.keys[i] = key.([]byte)
		cursor.values[i] = value.([]byte)
	}

	return cursor
}

var _ Cursor = (*MemoryCursor)(nil)

// MemoryCursor implements Cursor over the keys
// present in a bucket when the cursor was created
type MemoryCursor struct {
	keys     [][]byte
	values   [][]byte
	position int
}

func (cursor *MemoryCursor) at(position int) ([]byte, []byte) {
	if position < 0 {
		cursor.position = -1

		return nil, nil
	}

	if position >= len(cursor.keys) {
		cursor.position = len(cursor.keys)

		return nil, nil
	}

	cursor.position = position

	return cursor.keys[position], cursor.values[position]
}

// First implements Cursor.First
func (cursor *MemoryCursor) First() (key []byte, value []byte) {
	return cursor.at(0)
}

// Last implements Cursor.Last
func (cursor *MemoryCursor) Last() (key []byte, value []byte) {
	return cursor.at(len(cursor.keys) - 1)
}

// Next implements Cursor.Next
func (cursor *MemoryCursor) Next() (key []byte, value []byte) {
	return cursor.at(cursor.position + 1)
}

// Prev implements Cursor.Prev
func (cursor *MemoryCursor) Prev() (key []byte, value []byte) {
	return cursor.at(cursor.position - 1)
}

// Seek implements Cursor.Seek
func (cursor *MemoryCursor) Seek(seek []byte) (key []byte, value []byte) {
	return cursor.at(sort.Search(len(cursor.keys), func(i int) bool {
		return bytes.Compare(cursor.keys[i], seek) >= 0
	}))
}
