// Package plugins makes the document datastore drivers
// available by name.
package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrife/confstore/storage/document"
	"github.com/jrife/confstore/storage/document/kvdoc"
	"github.com/jrife/confstore/storage/document/sqldoc"
	"github.com/jrife/confstore/storage/kv"
	"github.com/jrife/confstore/utils/uuid"
	"go.uber.org/zap"
)

// Options contains driver-specific options
type Options map[string]interface{}

// DatastorePlugin creates datastores for one driver
type DatastorePlugin interface {
	// Name returns the driver name used to select this plugin
	Name() string
	// NewDatastore opens a datastore using the given options
	NewDatastore(options Options) (document.Datastore, error)
	// NewTempDatastore opens a scratch datastore whose data
	// is removed when it is closed
	NewTempDatastore() (document.Datastore, error)
}

var plugins = []DatastorePlugin{
	&BBoltPlugin{},
	&MemoryPlugin{},
	&SQLitePlugin{},
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func Plugin(name string) DatastorePlugin {
	for _, plugin := range plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists all the plugins that are available
func Plugins() []DatastorePlugin {
	return plugins
}

func stringOption(options Options, name string) (string, error) {
	value, ok := options[name]

	if !ok {
		return "", fmt.Errorf("%q is required", name)
	}

	s, ok := value.(string)

	if !ok {
		return "", fmt.Errorf("%q must be a string", name)
	}

	if s == "" {
		return "", fmt.Errorf("%q must not be empty", name)
	}

	return s, nil
}

func logger(options Options) *zap.Logger {
	if l, ok := options["logger"].(*zap.Logger); ok && l != nil {
		return l
	}

	return zap.L()
}

// tempDatastore runs cleanup after closing the
// wrapped datastore
type tempDatastore struct {
	document.Datastore
	cleanup func() error
}

func (datastore *tempDatastore) Close() error {
	if err := datastore.Datastore.Close(); err != nil {
		return err
	}

	return datastore.cleanup()
}

// BBoltPlugin opens datastores stored in a bbolt file.
// Options: "path" (required)
type BBoltPlugin struct {
}

// Name implements DatastorePlugin.Name
func (plugin *BBoltPlugin) Name() string {
	return "bbolt"
}

// NewDatastore implements DatastorePlugin.NewDatastore
func (plugin *BBoltPlugin) NewDatastore(options Options) (document.Datastore, error) {
	path, err := stringOption(options, "path")

	if err != nil {
		return nil, err
	}

	store, err := kv.NewBBoltStore(kv.BBoltStoreConfig{Path: path})

	if err != nil {
		return nil, err
	}

	return kvdoc.New(kvdoc.DatastoreConfig{Logger: logger(options), Store: store}), nil
}

// NewTempDatastore implements DatastorePlugin.NewTempDatastore
func (plugin *BBoltPlugin) NewTempDatastore() (document.Datastore, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("bbolt-%s", uuid.MustUUID()))
	datastore, err := plugin.NewDatastore(Options{"path": path})

	if err != nil {
		return nil, err
	}

	return &tempDatastore{
		Datastore: datastore,
		cleanup: func() error {
			return os.RemoveAll(path)
		},
	}, nil
}

// MemoryPlugin opens datastores that live in process memory.
// It takes no options.
type MemoryPlugin struct {
}

// Name implements DatastorePlugin.Name
func (plugin *MemoryPlugin) Name() string {
	return "memory"
}

// NewDatastore implements DatastorePlugin.NewDatastore
func (plugin *MemoryPlugin) NewDatastore(options Options) (document.Datastore, error) {
	return kvdoc.New(kvdoc.DatastoreConfig{Logger: logger(options), Store: kv.NewMemoryStore()}), nil
}

// NewTempDatastore implements DatastorePlugin.NewTempDatastore
func (plugin *MemoryPlugin) NewTempDatastore() (document.Datastore, error) {
	store := kv.NewMemoryStore()

	return &tempDatastore{
		Datastore: kvdoc.New(kvdoc.DatastoreConfig{Store: store}),
		cleanup:   store.Delete,
	}, nil
}

// SQLitePlugin opens datastores in a SQLite database.
// Options: "dsn" (required)
type SQLitePlugin struct {
}

// Name implements DatastorePlugin.Name
func (plugin *SQLitePlugin) Name() string {
	return "sqlite"
}

// NewDatastore implements DatastorePlugin.NewDatastore
func (plugin *SQLitePlugin) NewDatastore(options Options) (document.Datastore, error) {
	dsn, err := stringOption(options, "dsn")

	if err != nil {
		return nil, err
	}

	return sqldoc.Open(sqldoc.DatastoreConfig{Logger: logger(options), DSN: dsn})
}

// NewTempDatastore implements DatastorePlugin.NewTempDatastore
func (plugin *SQLitePlugin) NewTempDatastore() (document.Datastore, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("sqlite-%s.db", uuid.MustUUID()))
	datastore, err := plugin.NewDatastore(Options{"dsn": path})

	if err != nil {
		return nil, err
	}

	return &tempDatastore{
		Datastore: datastore,
		cleanup: func() error {
			return os.RemoveAll(path)
		},
	}, nil
}
