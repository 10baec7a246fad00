package configstore

import (
	"encoding/json"
	"fmt"

	"github.com/jrife/confstore/storage/document"
)

// Config is one revision of a resource's configuration.
// Revisions are written once and never modified.
type Config struct {
	ResourceName      string `json:"resourceName"`
	ResourceNamespace string `json:"resourceNamespace"`
	TenantID          string `json:"tenantId"`
	Context           string `json:"context"`
	ConfigVersion     int64  `json:"configVersion"`
	UserID            string `json:"userId"`
	// Payload is opaque to the store
	Payload []byte `json:"config"`
	// CreationTimestamp is the time the revision was
	// written in milliseconds since the unix epoch
	CreationTimestamp int64 `json:"creationTimestamp"`
	// Deleted marks a tombstone appended by DeleteConfig.
	// Tombstones carry no payload.
	Deleted bool `json:"deleted,omitempty"`

	// ResourceCreationTimestamp and LastUpdateTimestamp are
	// filled in by reads that resolve a resource's state and
	// are not stored. They hold the creation timestamps of
	// version 1 and of the latest version.
	ResourceCreationTimestamp int64 `json:"-"`
	LastUpdateTimestamp       int64 `json:"-"`
}

// NewConfig creates a revision of resource
func NewConfig(resource Resource, version int64, userID string, payload []byte, creationTimestamp int64) Config {
	return Config{
		ResourceName:      resource.ResourceName,
		ResourceNamespace: resource.ResourceNamespace,
		TenantID:          resource.TenantID,
		Context:           resource.Context,
		ConfigVersion:     version,
		UserID:            userID,
		Payload:           payload,
		CreationTimestamp: creationTimestamp,
	}
}

// NewTombstone creates a revision marking resource as deleted
func NewTombstone(resource Resource, version int64, userID string, creationTimestamp int64) Config {
	config := NewConfig(resource, version, userID, nil, creationTimestamp)
	config.Deleted = true

	return config
}

// Resource returns the resource this is a revision of
func (config Config) Resource() Resource {
	return Resource{
		ResourceName:      config.ResourceName,
		ResourceNamespace: config.ResourceNamespace,
		TenantID:          config.TenantID,
		Context:           config.Context,
	}
}

// Key returns the physical key of this revision
func (config Config) Key() document.Key {
	return config.Resource().Key(config.ConfigVersion)
}

// Document encodes the revision as a document
func (config Config) Document() (document.Document, error) {
	doc, err := json.Marshal(config)

	if err != nil {
		return nil, fmt.Errorf("could not encode config: %s", err)
	}

	return doc, nil
}

// DecodeConfig decodes a document written by Config.Document
func DecodeConfig(doc document.Document) (Config, error) {
	var config Config

	if err := json.Unmarshal(doc, &config); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %s", err)
	}

	return config, nil
}
