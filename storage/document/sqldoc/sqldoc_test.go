package sqldoc_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/jrife/confstore/storage/document"
	"github.com/jrife/confstore/storage/document/sqldoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestNewMigratesSchema(t *testing.T) {
	db := setupTestDB(t)

	_, err := sqldoc.New(db, nil)
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("collections"))
	assert.True(t, db.Migrator().HasTable("documents"))
}

func TestUpsertStoresRawDocument(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	datastore, err := sqldoc.New(db, nil)
	require.NoError(t, err)
	require.NoError(t, datastore.CreateCollection(ctx, "configurations"))

	ok, err := datastore.Collection("configurations").Upsert(ctx, "svc/ns/t1//1", document.Document(`{"configVersion":1}`))
	require.NoError(t, err)
	assert.True(t, ok)

	var body string
	require.NoError(t, db.Table("documents").Select("body").Where("collection = ? AND id = ?", "configurations", "svc/ns/t1//1").Scan(&body).Error)
	assert.JSONEq(t, `{"configVersion":1}`, body)
}

func TestCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	datastore, err := sqldoc.New(setupTestDB(t), nil)
	require.NoError(t, err)
	require.NoError(t, datastore.CreateCollection(ctx, "a"))
	require.NoError(t, datastore.CreateCollection(ctx, "b"))

	_, err = datastore.Collection("a").Upsert(ctx, "k", document.Document(`{"in":"a"}`))
	require.NoError(t, err)
	_, err = datastore.Collection("b").Upsert(ctx, "k", document.Document(`{"in":"b"}`))
	require.NoError(t, err)

	iter, err := datastore.Collection("a").Search(ctx, document.Query{})
	require.NoError(t, err)
	documents, err := document.All(iter)
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.JSONEq(t, `{"in":"a"}`, string(documents[0]))
}

func TestOpenPersists(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "config.db")

	datastore, err := sqldoc.Open(sqldoc.DatastoreConfig{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, datastore.CreateCollection(ctx, "configurations"))
	_, err = datastore.Collection("configurations").Upsert(ctx, "k", document.Document(`{"v":1}`))
	require.NoError(t, err)
	require.NoError(t, datastore.Close())
	require.NoError(t, datastore.Close())

	datastore, err = sqldoc.Open(sqldoc.DatastoreConfig{DSN: dsn})
	require.NoError(t, err)
	defer datastore.Close()

	names, err := datastore.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"configurations"}, names)

	iter, err := datastore.Collection("configurations").Search(ctx, document.Query{})
	require.NoError(t, err)
	documents, err := document.All(iter)
	require.NoError(t, err)
	assert.Len(t, documents, 1)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := sqldoc.Open(sqldoc.DatastoreConfig{})
	assert.Error(t, err)
}

func TestCreateCollectionRequiresName(t *testing.T) {
	datastore, err := sqldoc.New(setupTestDB(t), nil)
	require.NoError(t, err)
	assert.Error(t, datastore.CreateCollection(context.Background(), ""))
}
