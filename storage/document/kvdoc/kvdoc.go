// Package kvdoc implements a document datastore on top of
// a kv store. Each collection is a bucket mapping document
// keys to JSON documents. Searches seek to the query's key
// prefix, scan forward while keys share it and run the
// documents through a filter, sort and limit pipeline.
package kvdoc

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jrife/confstore/storage/document"
	"github.com/jrife/confstore/storage/kv"
	"github.com/jrife/confstore/utils/log"
	"github.com/jrife/confstore/utils/stream"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DatastoreConfig contains configuration
// for a datastore
type DatastoreConfig struct {
	Logger *zap.Logger
	Store  kv.Store
}

var _ document.Datastore = (*Datastore)(nil)

// Datastore implements document.Datastore
type Datastore struct {
	logger *zap.Logger
	store  kv.Store
}

// New creates a Datastore backed by a kv store. Closing
// the datastore closes the kv store.
func New(config DatastoreConfig) *Datastore {
	datastore := &Datastore{logger: config.Logger, store: config.Store}

	if datastore.logger == nil {
		datastore.logger = zap.L()
	}

	return datastore
}

// ListCollections implements document.Datastore.ListCollections
func (datastore *Datastore) ListCollections(ctx context.Context) ([]string, error) {
	names := []string{}

	err := kv.View(datastore.store, func(transaction kv.Transaction) error {
		return transaction.ForEach(func(name []byte) error {
			names = append(names, string(name))

			return nil
		})
	})

	if err != nil {
		return nil, wrapError("could not list buckets", err)
	}

	return names, nil
}

// CreateCollection implements document.Datastore.CreateCollection
func (datastore *Datastore) CreateCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("collection name must not be empty")
	}

	err := kv.Update(datastore.store, func(transaction kv.Transaction) error {
		_, err := transaction.CreateBucketIfNotExists([]byte(name))

		return err
	})

	if err != nil {
		return wrapError(fmt.Sprintf("could not create bucket %s", name), err)
	}

	return nil
}

// Collection implements document.Datastore.Collection
func (datastore *Datastore) Collection(name string) document.Collection {
	return &collection{
		datastore: datastore,
		name:      name,
	}
}

// Close implements document.Datastore.Close
func (datastore *Datastore) Close() error {
	return datastore.store.Close()
}

type collection struct {
	datastore *Datastore
	name      string
}

// Name implements document.Collection.Name
func (collection *collection) Name() string {
	return collection.name
}

// Upsert implements document.Collection.Upsert
func (collection *collection) Upsert(ctx context.Context, key document.Key, doc document.Document) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key must not be empty")
	}

	if _, err := document.Fields(doc); err != nil {
		return false, err
	}

	err := kv.Update(collection.datastore.store, func(transaction kv.Transaction) error {
		bucket := transaction.Bucket([]byte(collection.name))

		if bucket == nil {
			return document.ErrNoSuchCollection
		}

		return bucket.Put([]byte(key), doc)
	})

	if err != nil {
		return false, wrapError(fmt.Sprintf("could not put document %s", key), err)
	}

	return true, nil
}

type record struct {
	key    []byte
	doc    document.Document
	fields map[string]interface{}
}

func (r *record) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddByteString("key", r.key)
	enc.AddInt("size", len(r.doc))

	return nil
}

// Search implements document.Collection.Search
func (collection *collection) Search(ctx context.Context, query document.Query) (document.Iterator, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	logger := collection.requestLogger(ctx)
	documents := []document.Document{}
	skipped := 0

	err := kv.View(collection.datastore.store, func(transaction kv.Transaction) error {
		bucket := transaction.Bucket([]byte(collection.name))

		if bucket == nil {
			return document.ErrNoSuchCollection
		}

		matches := stream.Filter(match(query.Filter))(scan(bucket.Cursor(), []byte(query.Prefix)))
		results := stream.Pipeline(
			matches,
			sort(query.OrderBy, query.Limit),
			stream.Limit(query.Limit),
			stream.Log(logger),
		)

		for results.Next() {
			documents = append(documents, results.Value().(*record).doc)
		}

		skipped = stream.Skipped(matches)

		return results.Error()
	})

	if err != nil {
		return nil, wrapError("could not search collection", err)
	}

	logger.Debug("search complete", zap.Int("results", len(documents)), zap.Int("skipped", skipped))

	return document.NewSliceIterator(documents), nil
}

// requestLogger prefers a logger attached to ctx over
// the datastore's own logger
func (collection *collection) requestLogger(ctx context.Context) *zap.Logger {
	logger, _ := log.LoggerFromContext(ctx, collection.datastore.logger)

	return log.WithContext(ctx, logger.With(zap.String("collection", collection.name)))
}

// scan streams the documents in the bucket whose keys start
// with prefix in key order. Keys and documents are copied out
// of the transaction. Documents are decoded later by match.
func scan(cursor kv.Cursor, prefix []byte) stream.Stream {
	started := false

	return stream.Func(func() (interface{}, bool, error) {
		var key, value []byte

		switch {
		case started:
			key, value = cursor.Next()
		case len(prefix) == 0:
			key, value = cursor.First()
		default:
			key, value = cursor.Seek(prefix)
		}

		started = true

		if key == nil || !bytes.HasPrefix(key, prefix) {
			return nil, false, nil
		}

		return &record{key: append([]byte{}, key...), doc: document.Document(append([]byte{}, value...))}, true, nil
	})
}

// match decodes each record and keeps those matching filter.
// A record that is not a JSON object fails the search.
func match(filter document.Filter) stream.Predicate {
	return func(value interface{}) (bool, error) {
		r := value.(*record)
		fields, err := document.Fields(r.doc)

		if err != nil {
			return false, fmt.Errorf("corrupt document at key %s: %s", r.key, err)
		}

		r.fields = fields

		return filter.Matches(fields), nil
	}
}

func sort(orderBy []document.OrderBy, limit int) stream.Processor {
	if len(orderBy) == 0 {
		return nil
	}

	return stream.Sort(func(a, b interface{}) int {
		ra := a.(*record)
		rb := b.(*record)

		for _, o := range orderBy {
			cmp := compareField(ra.fields[o.Field], rb.fields[o.Field])

			if o.Desc {
				cmp = -cmp
			}

			if cmp != 0 {
				return cmp
			}
		}

		// Keys are unique within a bucket, so this makes the
		// ordering total and keeps distinct documents from
		// collapsing into one slot of the sorted window.
		return bytes.Compare(ra.key, rb.key)
	}, limit)
}

func compareField(a, b interface{}) int {
	na, errA := document.Normalize(a)
	nb, errB := document.Normalize(b)

	// Objects and arrays sort after every scalar
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}

	return document.Compare(na, nb)
}

func wrapError(wrap string, err error) error {
	switch err {
	case kv.ErrClosed:
		return document.ErrClosed
	case document.ErrNoSuchCollection:
		fallthrough
	case nil:
		return err
	}

	return fmt.Errorf("%s: %s", wrap, err)
}
