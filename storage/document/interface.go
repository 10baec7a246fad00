package document

import (
	"context"
	"errors"
)

var (
	// ErrClosed indicates that the datastore was closed
	ErrClosed = errors.New("datastore was closed")
	// ErrNoSuchCollection is returned when an operation targets a
	// collection that has not been created
	ErrNoSuchCollection = errors.New("collection does not exist")
	// ErrNotAnObject is returned when a document is not a JSON object
	ErrNotAnObject = errors.New("document must be a JSON object")
)

// Key is the physical key of a document within a collection.
// Upserting to an existing key replaces the document stored there.
type Key string

// Document is a JSON object
type Document []byte

// Datastore is a set of named collections
type Datastore interface {
	// ListCollections returns the names of all collections
	// in ascending lexicographical order.
	ListCollections(ctx context.Context) ([]string, error)
	// CreateCollection creates the named collection. It has no
	// effect if the collection already exists.
	CreateCollection(ctx context.Context, name string) error
	// Collection returns a handle for the named collection. It
	// does not guarantee the collection exists and must not
	// return nil.
	Collection(name string) Collection
	// Close closes the datastore. Operations started after
	// Close returns must return ErrClosed.
	Close() error
}

// Collection is a named set of documents
type Collection interface {
	// Name returns the collection name
	Name() string
	// Upsert creates or replaces the document at key. It returns
	// false if the datastore accepted the call but did not store
	// the document. The write is atomic: readers observe either
	// the old document or the new one, never a merge of the two.
	// It must return ErrNoSuchCollection if the collection does
	// not exist and ErrNotAnObject if doc is not a JSON object.
	Upsert(ctx context.Context, key Key, doc Document) (bool, error)
	// Search returns the documents matching query. A search of
	// a collection that does not exist returns ErrNoSuchCollection.
	Search(ctx context.Context, query Query) (Iterator, error)
}

// Iterator iterates over search results. It must only
// be used by one goroutine at a time.
type Iterator interface {
	// Next advances the iterator to the next document.
	// A fresh iterator must call Next once to advance
	// to the first document. Next returns false if there
	// is no next document or if it encounters an error.
	Next() bool
	// Document returns the current document
	Document() Document
	// Error returns the error, if any.
	Error() error
	// Close releases resources held by the iterator
	Close() error
}

// OrderBy sorts results by a field
type OrderBy struct {
	Field string
	Desc  bool
}

// Query selects documents from a collection.
// Documents matching every predicate in Filter
// are sorted by OrderBy, ties broken by key, and
// truncated to Limit results. Limit <= 0 means
// no limit. Without OrderBy results come back in
// key order.
type Query struct {
	// Prefix restricts the search to keys starting with
	// Prefix. Datastores use it to seek past unrelated
	// documents instead of scanning the whole collection.
	Prefix  Key
	Filter  Filter
	OrderBy []OrderBy
	Limit   int
}

// Validate checks that every field referenced by
// the query is a valid field name and that every
// filter value is a supported type.
func (query Query) Validate() error {
	if err := query.Filter.Validate(); err != nil {
		return err
	}

	for _, orderBy := range query.OrderBy {
		if err := ValidateField(orderBy.Field); err != nil {
			return err
		}
	}

	return nil
}

// SliceIterator is an Iterator over an in-memory
// list of documents
type SliceIterator struct {
	documents []Document
	position  int
}

// NewSliceIterator creates a SliceIterator
func NewSliceIterator(documents []Document) *SliceIterator {
	return &SliceIterator{documents: documents, position: -1}
}

// Next implements Iterator.Next
func (iter *SliceIterator) Next() bool {
	if iter.position+1 >= len(iter.documents) {
		iter.position = len(iter.documents)

		return false
	}

	iter.position++

	return true
}

// Document implements Iterator.Document
func (iter *SliceIterator) Document() Document {
	if iter.position < 0 || iter.position >= len(iter.documents) {
		return nil
	}

	return iter.documents[iter.position]
}

// Error implements Iterator.Error
func (iter *SliceIterator) Error() error {
	return nil
}

// Close implements Iterator.Close
func (iter *SliceIterator) Close() error {
	return nil
}

// All drains an iterator and closes it
func All(iter Iterator) ([]Document, error) {
	defer iter.Close()

	documents := []Document{}

	for iter.Next() {
		documents = append(documents, iter.Document())
	}

	if iter.Error() != nil {
		return nil, iter.Error()
	}

	return documents, nil
}
