// Package sqldoc implements a document datastore on SQLite through
// gorm. Documents live in a single table keyed by (collection, id)
// and filters are evaluated with SQLite's JSON functions.
package sqldoc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"github.com/jrife/confstore/storage/document"
	"github.com/jrife/confstore/utils/log"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type collectionRow struct {
	Name string `gorm:"primaryKey;size:255"`
}

func (collectionRow) TableName() string {
	return "collections"
}

type documentRow struct {
	Collection string `gorm:"primaryKey;size:255"`
	ID         string `gorm:"primaryKey;size:1024"`
	Body       string `gorm:"type:text;not null"`
}

func (documentRow) TableName() string {
	return "documents"
}

// DatastoreConfig contains configuration
// for a datastore
type DatastoreConfig struct {
	Logger *zap.Logger
	// DSN is passed to the sqlite driver, e.g. "file:config.db"
	// or ":memory:"
	DSN string
}

var _ document.Datastore = (*Datastore)(nil)

// Datastore implements document.Datastore
type Datastore struct {
	logger *zap.Logger
	db     *gorm.DB
	closed int32
}

// Open opens the sqlite database named by config.DSN and
// migrates its schema
func Open(config DatastoreConfig) (*Datastore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := gorm.Open(sqlite.Open(config.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})

	if err != nil {
		return nil, fmt.Errorf("could not open sqlite database %s: %s", config.DSN, err)
	}

	sqlDB, err := db.DB()

	if err != nil {
		return nil, fmt.Errorf("could not access connection pool: %s", err)
	}

	// SQLite allows a single writer and every connection to
	// ":memory:" is a separate database.
	sqlDB.SetMaxOpenConns(1)

	datastore, err := New(db, config.Logger)

	if err != nil {
		sqlDB.Close()

		return nil, err
	}

	return datastore, nil
}

// New creates a Datastore from an open gorm handle
func New(db *gorm.DB, logger *zap.Logger) (*Datastore, error) {
	if logger == nil {
		logger = zap.L()
	}

	if err := db.AutoMigrate(&collectionRow{}, &documentRow{}); err != nil {
		return nil, fmt.Errorf("could not migrate schema: %s", err)
	}

	return &Datastore{logger: logger, db: db}, nil
}

func (datastore *Datastore) session(ctx context.Context) (*gorm.DB, error) {
	if atomic.LoadInt32(&datastore.closed) == 1 {
		return nil, document.ErrClosed
	}

	return datastore.db.WithContext(ctx), nil
}

// ListCollections implements document.Datastore.ListCollections
func (datastore *Datastore) ListCollections(ctx context.Context) ([]string, error) {
	db, err := datastore.session(ctx)

	if err != nil {
		return nil, err
	}

	names := []string{}

	if err := db.Model(&collectionRow{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("could not list collections: %s", err)
	}

	return names, nil
}

// CreateCollection implements document.Datastore.CreateCollection
func (datastore *Datastore) CreateCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("collection name must not be empty")
	}

	db, err := datastore.session(ctx)

	if err != nil {
		return err
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&collectionRow{Name: name}).Error; err != nil {
		return fmt.Errorf("could not create collection %s: %s", name, err)
	}

	return nil
}

// Collection implements document.Datastore.Collection
func (datastore *Datastore) Collection(name string) document.Collection {
	return &collection{
		datastore: datastore,
		name:      name,
		logger:    datastore.logger.With(zap.String("collection", name)),
	}
}

// Close implements document.Datastore.Close
func (datastore *Datastore) Close() error {
	if !atomic.CompareAndSwapInt32(&datastore.closed, 0, 1) {
		return nil
	}

	sqlDB, err := datastore.db.DB()

	if err != nil {
		return err
	}

	return sqlDB.Close()
}

type collection struct {
	datastore *Datastore
	name      string
	logger    *zap.Logger
}

// Name implements document.Collection.Name
func (collection *collection) Name() string {
	return collection.name
}

func (collection *collection) exists(db *gorm.DB) error {
	var row collectionRow

	err := db.Where("name = ?", collection.name).Take(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return document.ErrNoSuchCollection
	}

	if err != nil {
		return fmt.Errorf("could not look up collection: %s", err)
	}

	return nil
}

// Upsert implements document.Collection.Upsert
func (collection *collection) Upsert(ctx context.Context, key document.Key, doc document.Document) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key must not be empty")
	}

	if _, err := document.Fields(doc); err != nil {
		return false, err
	}

	db, err := collection.datastore.session(ctx)

	if err != nil {
		return false, err
	}

	if err := collection.exists(db); err != nil {
		return false, err
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body"}),
	}).Create(&documentRow{Collection: collection.name, ID: string(key), Body: string(doc)})

	if result.Error != nil {
		return false, fmt.Errorf("could not upsert document %s: %s", key, result.Error)
	}

	return result.RowsAffected > 0, nil
}

// Search implements document.Collection.Search
func (collection *collection) Search(ctx context.Context, query document.Query) (document.Iterator, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	db, err := collection.datastore.session(ctx)

	if err != nil {
		return nil, err
	}

	if err := collection.exists(db); err != nil {
		return nil, err
	}

	tx := db.Model(&documentRow{}).Where("collection = ?", collection.name)

	if query.Prefix != "" {
		// The range bound lets sqlite seek the primary key
		// index and instr keeps only keys that share the prefix.
		tx = tx.Where("id >= ?", string(query.Prefix)).Where("instr(id, ?) = 1", string(query.Prefix))
	}

	for _, predicate := range query.Filter {
		value, _ := document.Normalize(predicate.Value)

		switch v := value.(type) {
		case nil:
			tx = tx.Where(fmt.Sprintf("json_extract(body, '$.%s') IS NULL", predicate.Field))
		case bool:
			// json_extract reports JSON booleans as 1 and 0, so the
			// type check keeps a boolean from matching a number.
			tx = tx.Where(fmt.Sprintf("json_type(body, '$.%s') = ?", predicate.Field), boolType(v))
		default:
			tx = tx.Where(fmt.Sprintf("json_type(body, '$.%s') IN ?", predicate.Field), jsonTypes(v)).
				Where(fmt.Sprintf("json_extract(body, '$.%s') = ?", predicate.Field), v)
		}
	}

	for _, orderBy := range query.OrderBy {
		tx = tx.Order(clause.OrderByColumn{
			Column: clause.Column{Name: fmt.Sprintf("json_extract(body, '$.%s')", orderBy.Field), Raw: true},
			Desc:   orderBy.Desc,
		})
	}

	tx = tx.Order("id")

	if query.Limit > 0 {
		tx = tx.Limit(query.Limit)
	}

	var rows []documentRow

	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("could not search collection: %s", err)
	}

	documents := make([]document.Document, len(rows))

	for i, row := range rows {
		documents[i] = document.Document(row.Body)
	}

	logger, _ := log.LoggerFromContext(ctx, collection.logger)
	log.WithContext(ctx, logger).Debug("search complete", zap.String("prefix", string(query.Prefix)), zap.Int("results", len(documents)))

	return document.NewSliceIterator(documents), nil
}

func boolType(b bool) string {
	if b {
		return "true"
	}

	return "false"
}

func jsonTypes(value interface{}) []string {
	switch value.(type) {
	case string:
		return []string{"text"}
	}

	return []string{"integer", "real"}
}
