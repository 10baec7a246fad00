// Package config loads confstore configuration from YAML.
//
//   document:
//     store:
//       dataStoreType: bbolt
//       bbolt:
//         path: /var/lib/confstore/config.db
//       sqlite:
//         dsn: file:config.db
//       collection: configurations
//   locks:
//     idleTimeout: 10m
//
// Only the section named by dataStoreType is passed to the
// datastore plugin.
package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"github.com/jrife/confstore/configstore"
	"github.com/jrife/confstore/storage/document/plugins"
	"github.com/jrife/confstore/utils/lockmap"
	"gopkg.in/yaml.v2"
)

// DefaultDataStoreType is used when dataStoreType is not set
const DefaultDataStoreType = "bbolt"

// defaultOptions are overlaid by the configured section
// for each data store type
var defaultOptions = map[string]plugins.Options{
	"bbolt": {"path": "confstore.db"},
}

// Config is the top-level configuration
type Config struct {
	Document DocumentConfig `yaml:"document"`
	Locks    LocksConfig    `yaml:"locks"`
}

// DocumentConfig configures document storage
type DocumentConfig struct {
	Store StoreConfig `yaml:"store"`
}

// StoreConfig selects and configures the datastore
type StoreConfig struct {
	DataStoreType string `yaml:"dataStoreType"`
	Collection    string `yaml:"collection"`
	// DataStores holds the per-type sections keyed
	// by data store type
	DataStores map[string]interface{} `yaml:",inline"`
}

// LocksConfig configures the per-resource lock map
type LocksConfig struct {
	IdleTimeout time.Duration `yaml:"idleTimeout"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Document: DocumentConfig{
			Store: StoreConfig{
				DataStoreType: DefaultDataStoreType,
				Collection:    configstore.DefaultCollection,
			},
		},
		Locks: LocksConfig{
			IdleTimeout: lockmap.DefaultIdleTimeout,
		},
	}
}

// Load reads the configuration at path on top of the
// defaults and validates it
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)

	if err != nil {
		return Config{}, fmt.Errorf("could not read config file %s: %s", path, err)
	}

	return Parse(data)
}

// Parse parses YAML configuration on top of the
// defaults and validates it
func Parse(data []byte) (Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %s", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate returns an error if the configuration
// cannot be used
func (config Config) Validate() error {
	if plugins.Plugin(config.Document.Store.DataStoreType) == nil {
		return fmt.Errorf("unknown dataStoreType %q", config.Document.Store.DataStoreType)
	}

	if config.Document.Store.Collection == "" {
		return fmt.Errorf("collection must not be empty")
	}

	if config.Locks.IdleTimeout <= 0 {
		return fmt.Errorf("locks.idleTimeout must be positive, got %s", config.Locks.IdleTimeout)
	}

	if _, err := config.DataStoreOptions(); err != nil {
		return err
	}

	return nil
}

// DataStoreOptions returns the section for the selected
// data store type as plugin options
func (config Config) DataStoreOptions() (plugins.Options, error) {
	options := plugins.Options{}

	for key, value := range defaultOptions[config.Document.Store.DataStoreType] {
		options[key] = value
	}

	section, ok := config.Document.Store.DataStores[config.Document.Store.DataStoreType]

	if !ok || section == nil {
		return options, nil
	}

	m, ok := section.(map[interface{}]interface{})

	if !ok {
		return nil, fmt.Errorf("%s must be a mapping", config.Document.Store.DataStoreType)
	}

	for key, value := range m {
		options[fmt.Sprint(key)] = value
	}

	return options, nil
}
