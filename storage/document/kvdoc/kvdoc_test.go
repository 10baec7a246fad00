package kvdoc_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/confstore/storage/document"
	"github.com/jrife/confstore/storage/document/kvdoc"
	"github.com/jrife/confstore/storage/kv"
	"github.com/jrife/confstore/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSearchCorruptDocument(t *testing.T) {
	store := kv.NewMemoryStore()
	datastore := kvdoc.New(kvdoc.DatastoreConfig{Store: store})

	if err := datastore.CreateCollection(context.Background(), "configurations"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	err := kv.Update(store, func(transaction kv.Transaction) error {
		return transaction.Bucket([]byte("configurations")).Put([]byte("k"), []byte("not json"))
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := datastore.Collection("configurations").Search(context.Background(), document.Query{}); err == nil {
		t.Fatalf("expected search over a corrupt document to fail")
	}
}

func TestSearchMixedTypes(t *testing.T) {
	ctx := context.Background()
	datastore := kvdoc.New(kvdoc.DatastoreConfig{Store: kv.NewMemoryStore()})

	if err := datastore.CreateCollection(ctx, "c"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	documents := map[document.Key]string{
		"a": `{"v":"x"}`,
		"b": `{"v":2}`,
		"c": `{"v":{"nested":true}}`,
		"d": `{}`,
		"e": `{"v":true}`,
		"f": `{"v":1.5}`,
	}

	for key, doc := range documents {
		if _, err := datastore.Collection("c").Upsert(ctx, key, document.Document(doc)); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	iter, err := datastore.Collection("c").Search(ctx, document.Query{OrderBy: []document.OrderBy{{Field: "v"}}})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	results, err := document.All(iter)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	order := []string{}

	for _, doc := range results {
		order = append(order, string(doc))
	}

	expected := []string{`{}`, `{"v":true}`, `{"v":1.5}`, `{"v":2}`, `{"v":"x"}`, `{"v":{"nested":true}}`}

	if diff := cmp.Diff(expected, order); diff != "" {
		t.Fatal(diff)
	}
}

func TestSearchPrefixSkipsOtherKeys(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	core, logs := observer.New(zap.DebugLevel)
	datastore := kvdoc.New(kvdoc.DatastoreConfig{Store: store, Logger: zap.NewNop()})

	if err := datastore.CreateCollection(ctx, "configurations"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// Documents outside the prefix are never decoded, so a
	// corrupt one there does not fail the search.
	err := kv.Update(store, func(transaction kv.Transaction) error {
		bucket := transaction.Bucket([]byte("configurations"))

		for key, value := range map[string]string{
			"svc/t1/1": `{"v":1}`,
			"svc/t1/2": `{"v":2}`,
			"svc/t2/1": "not json",
			"api/t1/1": "not json",
		} {
			if err := bucket.Put([]byte(key), []byte(value)); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	ctx = log.WithLogger(ctx, zap.New(core))
	iter, err := datastore.Collection("configurations").Search(ctx, document.Query{
		Prefix: "svc/t1/",
		Filter: document.Eq("v", 2),
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	results, err := document.All(iter)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]document.Document{document.Document(`{"v":2}`)}, results); diff != "" {
		t.Fatal(diff)
	}

	// The logger attached to the context receives the search logs
	complete := logs.FilterMessage("search complete").All()

	if len(complete) != 1 {
		t.Fatalf("expected one search complete entry, got %d", len(complete))
	}

	fields := complete[0].ContextMap()

	if fields["results"] != int64(1) || fields["skipped"] != int64(1) || fields["collection"] != "configurations" {
		t.Fatalf("unexpected fields %#v", fields)
	}
}
