package configstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrife/confstore/metrics"
	"github.com/jrife/confstore/storage/document"
	"github.com/jrife/confstore/utils/lockmap"
	"github.com/jrife/confstore/utils/log"
	"go.uber.org/zap"
)

// DefaultCollection is the collection revisions
// are stored in unless configured otherwise
const DefaultCollection = "configurations"

// ErrClosed is returned by operations on a
// store whose datastore was closed
var ErrClosed = errors.New("store was closed")

// StoreConfig contains configuration
// for a store
type StoreConfig struct {
	Datastore document.Datastore
	Logger    *zap.Logger
	// Locks serializes writes to each resource. A
	// new lock map is created if this is nil.
	Locks   *lockmap.LockMap
	Metrics *metrics.Metrics
	// Collection defaults to DefaultCollection
	Collection string
	// Now defaults to time.Now
	Now func() time.Time
}

// UpsertResult describes the outcome of a write
type UpsertResult struct {
	// Success is false if the datastore declined to
	// store the revision
	Success bool
	// Version is the version assigned to the revision
	Version int64
}

// Store stores versioned configurations. Every write
// to a resource creates a new revision whose version
// is one greater than the resource's latest version.
// Writes to the same resource are serialized, writes
// to different resources proceed independently.
type Store struct {
	datastore  document.Datastore
	collection document.Collection
	logger     *zap.Logger
	locks      *lockmap.LockMap
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a store, creating its collection if it
// does not exist. An error means the store cannot be
// used.
func New(ctx context.Context, config StoreConfig) (*Store, error) {
	if config.Datastore == nil {
		return nil, fmt.Errorf("datastore is required")
	}

	store := &Store{
		datastore: config.Datastore,
		logger:    config.Logger,
		locks:     config.Locks,
		metrics:   config.Metrics,
		now:       config.Now,
	}

	if store.logger == nil {
		store.logger = zap.L()
	}

	if store.locks == nil {
		store.locks = lockmap.New()
	}

	if store.now == nil {
		store.now = time.Now
	}

	name := config.Collection

	if name == "" {
		name = DefaultCollection
	}

	collection, err := getOrCreateCollection(ctx, config.Datastore, name)

	if err != nil {
		return nil, wrapError(fmt.Sprintf("could not create collection %s", name), err)
	}

	store.collection = collection

	return store, nil
}

func getOrCreateCollection(ctx context.Context, datastore document.Datastore, name string) (document.Collection, error) {
	names, err := datastore.ListCollections(ctx)

	if err != nil {
		return nil, err
	}

	for _, existing := range names {
		if existing == name {
			return datastore.Collection(name), nil
		}
	}

	if err := datastore.CreateCollection(ctx, name); err != nil {
		return nil, err
	}

	return datastore.Collection(name), nil
}

// WriteConfig stores payload as the next version of resource
// and returns the version it was assigned. If the datastore
// declines the write the result's Success field is false and
// the version is not considered written.
func (store *Store) WriteConfig(ctx context.Context, resource Resource, userID string, payload []byte) (UpsertResult, error) {
	result, _, err := store.appendRevision(ctx, "WriteConfig", resource, userID, func(latest Config) (Config, bool) {
		return NewConfig(resource, latest.ConfigVersion+1, userID, payload, store.now().UnixMilli()), true
	})

	return result, err
}

// DeleteConfig appends a tombstone as the next version of
// resource. Earlier versions stay readable by version but
// reads of the latest version find nothing until resource is
// written again. ok is false and nothing is written if resource
// has never been written or is already deleted.
func (store *Store) DeleteConfig(ctx context.Context, resource Resource, userID string) (UpsertResult, bool, error) {
	return store.appendRevision(ctx, "DeleteConfig", resource, userID, func(latest Config) (Config, bool) {
		if latest.ConfigVersion == 0 || latest.Deleted {
			return Config{}, false
		}

		return NewTombstone(resource, latest.ConfigVersion+1, userID, store.now().UnixMilli()), true
	})
}

// appendRevision stores the revision returned by next while
// holding resource's lock. next receives the latest revision,
// or the zero Config if there is none, and returns false to
// skip the write.
func (store *Store) appendRevision(ctx context.Context, operation string, resource Resource, userID string, next func(latest Config) (Config, bool)) (result UpsertResult, ok bool, err error) {
	start := time.Now()
	logger, ctx := store.requestLogger(ctx, resource)
	logger.Debug(fmt.Sprintf("start %s()", operation), zap.String("userId", userID))

	defer func() {
		outcome := metrics.ResultSuccess

		switch {
		case err != nil:
			outcome = metrics.ResultError
		case !ok:
			outcome = metrics.ResultNotFound
		case !result.Success:
			outcome = metrics.ResultRejected
		}

		store.metrics.ObserveWrite(outcome, time.Since(start))
		logger.Debug(fmt.Sprintf("return %s()", operation), zap.Int64("version", result.Version), zap.Bool("success", result.Success), zap.Error(err))
	}()

	if err := resource.Validate(); err != nil {
		return UpsertResult{}, false, err
	}

	unlock := store.locks.Lock(resource)
	defer unlock()
	store.metrics.SetLockHandles(store.locks.Len())

	latest, _, err := store.latest(ctx, resource)

	if err != nil {
		return UpsertResult{}, false, err
	}

	config, ok := next(latest)

	if !ok {
		return UpsertResult{}, false, nil
	}

	doc, err := config.Document()

	if err != nil {
		return UpsertResult{}, false, err
	}

	stored, err := store.collection.Upsert(ctx, config.Key(), doc)

	if err != nil {
		return UpsertResult{}, false, wrapError(fmt.Sprintf("could not upsert version %d", config.ConfigVersion), err)
	}

	return UpsertResult{Success: stored, Version: config.ConfigVersion}, true, nil
}

// GetConfig returns the payload of a version of resource.
// A nil version selects the latest version. ok is false if
// the resource has no such version.
func (store *Store) GetConfig(ctx context.Context, resource Resource, version *int64) ([]byte, bool, error) {
	config, ok, err := store.GetConfigRecord(ctx, resource, version)

	if err != nil || !ok {
		return nil, ok, err
	}

	return config.Payload, true, nil
}

// GetConfigRecord is like GetConfig but returns the whole
// revision with ResourceCreationTimestamp and
// LastUpdateTimestamp filled in. Tombstones are never
// returned.
func (store *Store) GetConfigRecord(ctx context.Context, resource Resource, version *int64) (config Config, ok bool, err error) {
	logger, ctx := store.requestLogger(ctx, resource)
	logger.Debug("start GetConfig()")

	defer func() {
		outcome := metrics.ResultFound

		if err != nil {
			outcome = metrics.ResultError
		} else if !ok {
			outcome = metrics.ResultNotFound
		}

		store.metrics.ObserveRead(outcome)
		logger.Debug("return GetConfig()", zap.Bool("found", ok), zap.Error(err))
	}()

	if err := resource.Validate(); err != nil {
		return Config{}, false, err
	}

	if version != nil && *version < 1 {
		return Config{}, false, nil
	}

	latest, found, err := store.latest(ctx, resource)

	if err != nil || !found {
		return Config{}, false, err
	}

	config = latest

	if version != nil && *version != latest.ConfigVersion {
		if *version > latest.ConfigVersion {
			return Config{}, false, nil
		}

		if config, found, err = store.version(ctx, resource, *version); err != nil || !found {
			return Config{}, false, err
		}
	}

	if config.Deleted {
		return Config{}, false, nil
	}

	config.LastUpdateTimestamp = latest.CreationTimestamp
	config.ResourceCreationTimestamp = config.CreationTimestamp

	if config.ConfigVersion != 1 {
		first, found, err := store.version(ctx, resource, 1)

		if err != nil {
			return Config{}, false, err
		}

		if found {
			config.ResourceCreationTimestamp = first.CreationTimestamp
		}
	}

	return config, true, nil
}

// GetAllConfigs returns the latest revision of every context
// of the resource identified by name, namespace and tenantID,
// ordered by context. Contexts whose latest revision is a
// tombstone are left out.
func (store *Store) GetAllConfigs(ctx context.Context, name string, namespace string, tenantID string) (configs []Config, err error) {
	resource := Resource{ResourceName: name, ResourceNamespace: namespace, TenantID: tenantID}
	logger, ctx := store.requestLogger(ctx, resource)
	logger.Debug("start GetAllConfigs()")

	defer func() {
		logger.Debug("return GetAllConfigs()", zap.Int("contexts", len(configs)), zap.Error(err))
	}()

	if err := resource.Validate(); err != nil {
		return nil, err
	}

	revisions, err := store.search(ctx, document.Query{
		Prefix: keyPrefix(name, namespace, tenantID),
		Filter: document.Eq(FieldResourceName, name).
			And(document.Eq(FieldResourceNamespace, namespace)).
			And(document.Eq(FieldTenantID, tenantID)),
		OrderBy: []document.OrderBy{{Field: FieldContext}, {Field: FieldConfigVersion, Desc: true}},
	})

	if err != nil {
		return nil, err
	}

	latest := []Config{}
	created := map[string]int64{}

	for _, revision := range revisions {
		if revision.ConfigVersion == 1 {
			created[revision.Context] = revision.CreationTimestamp
		}

		if len(latest) == 0 || latest[len(latest)-1].Context != revision.Context {
			latest = append(latest, revision)
		}
	}

	configs = make([]Config, 0, len(latest))

	for _, config := range latest {
		if config.Deleted {
			continue
		}

		config.LastUpdateTimestamp = config.CreationTimestamp
		config.ResourceCreationTimestamp = config.CreationTimestamp

		if timestamp, ok := created[config.Context]; ok {
			config.ResourceCreationTimestamp = timestamp
		}

		configs = append(configs, config)
	}

	return configs, nil
}

// LatestVersion returns the latest version of resource
// or 0 if it has never been written. A tombstone counts
// as a version.
func (store *Store) LatestVersion(ctx context.Context, resource Resource) (int64, error) {
	if err := resource.Validate(); err != nil {
		return 0, err
	}

	latest, _, err := store.latest(ctx, resource)

	return latest.ConfigVersion, err
}

// ListVersions returns up to limit revisions of resource,
// newest first, tombstones included. limit <= 0 returns
// every revision.
func (store *Store) ListVersions(ctx context.Context, resource Resource, limit int) ([]Config, error) {
	if err := resource.Validate(); err != nil {
		return nil, err
	}

	return store.search(ctx, document.Query{
		Prefix:  resource.KeyPrefix(),
		Filter:  resource.Filter(),
		OrderBy: []document.OrderBy{{Field: FieldConfigVersion, Desc: true}},
		Limit:   limit,
	})
}

// Close closes the underlying datastore
func (store *Store) Close() error {
	return store.datastore.Close()
}

// requestLogger adds resource to the log fields of ctx and
// resolves the logger for a request, preferring a logger
// attached to ctx over the store's own.
func (store *Store) requestLogger(ctx context.Context, resource Resource) (*zap.Logger, context.Context) {
	ctx = log.WithFields(ctx, zap.Object("resource", resource))
	logger, ctx := log.LoggerFromContext(ctx, store.logger)

	return log.WithContext(ctx, logger).With(zap.String("collection", store.collection.Name())), ctx
}

func (store *Store) latest(ctx context.Context, resource Resource) (Config, bool, error) {
	return store.first(ctx, document.Query{
		Prefix:  resource.KeyPrefix(),
		Filter:  resource.Filter(),
		OrderBy: []document.OrderBy{{Field: FieldConfigVersion, Desc: true}},
		Limit:   1,
	})
}

func (store *Store) version(ctx context.Context, resource Resource, version int64) (Config, bool, error) {
	return store.first(ctx, document.Query{
		Prefix: resource.KeyPrefix(),
		Filter: resource.Filter().And(document.Eq(FieldConfigVersion, version)),
		Limit:  1,
	})
}

func (store *Store) first(ctx context.Context, query document.Query) (Config, bool, error) {
	configs, err := store.search(ctx, query)

	if err != nil || len(configs) == 0 {
		return Config{}, false, err
	}

	return configs[0], true, nil
}

func (store *Store) search(ctx context.Context, query document.Query) ([]Config, error) {
	iter, err := store.collection.Search(ctx, query)

	if err != nil {
		return nil, wrapError("could not search configurations", err)
	}

	documents, err := document.All(iter)

	if err != nil {
		return nil, wrapError("could not read configurations", err)
	}

	configs := make([]Config, 0, len(documents))

	for _, doc := range documents {
		config, err := DecodeConfig(doc)

		if err != nil {
			return nil, err
		}

		configs = append(configs, config)
	}

	return configs, nil
}

func wrapError(wrap string, err error) error {
	switch err {
	case document.ErrClosed:
		return ErrClosed
	case nil:
		return nil
	}

	return fmt.Errorf("%s: %s", wrap, err)
}
