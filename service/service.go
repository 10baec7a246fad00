// Package service implements the config service request
// handlers on top of a config store. Configs travel as
// protobuf Values and are stored as their JSON encoding.
// Errors returned by handlers are gRPC status errors.
package service

import (
	"context"
	"strings"

	"github.com/golang/protobuf/jsonpb"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/jrife/confstore/configstore"
	"github.com/jrife/confstore/utils/log"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Metadata keys consulted when the tenant or user
// is not attached to the context directly
const (
	TenantIDHeader = "x-tenant-id"
	UserIDHeader   = "x-user-id"
)

type key int

const (
	tenantIDKey key = iota
	userIDKey
)

// WithTenantID attaches the caller's tenant to ctx
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithUserID attaches the caller's user to ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// TenantID returns the caller's tenant from ctx or
// from incoming gRPC metadata
func TenantID(ctx context.Context) (string, bool) {
	return fromContext(ctx, tenantIDKey, TenantIDHeader)
}

// UserID returns the caller's user from ctx or
// from incoming gRPC metadata
func UserID(ctx context.Context) (string, bool) {
	return fromContext(ctx, userIDKey, UserIDHeader)
}

func fromContext(ctx context.Context, k key, header string) (string, bool) {
	if value, ok := ctx.Value(k).(string); ok && value != "" {
		return value, true
	}

	md, ok := metadata.FromIncomingContext(ctx)

	if !ok {
		return "", false
	}

	for _, value := range md.Get(header) {
		if value != "" {
			return value, true
		}
	}

	return "", false
}

// ConfigStore is the subset of *configstore.Store
// used by the service
type ConfigStore interface {
	WriteConfig(ctx context.Context, resource configstore.Resource, userID string, payload []byte) (configstore.UpsertResult, error)
	DeleteConfig(ctx context.Context, resource configstore.Resource, userID string) (configstore.UpsertResult, bool, error)
	GetConfigRecord(ctx context.Context, resource configstore.Resource, version *int64) (configstore.Config, bool, error)
	GetAllConfigs(ctx context.Context, name string, namespace string, tenantID string) ([]configstore.Config, error)
}

var _ ConfigStore = (*configstore.Store)(nil)

// UpsertConfigRequest writes a new version of a config
type UpsertConfigRequest struct {
	ResourceName      string
	ResourceNamespace string
	Context           string
	Config            *structpb.Value
}

// UpsertConfigResponse describes the version written
type UpsertConfigResponse struct {
	Config        *structpb.Value
	ConfigVersion int64
}

// GetConfigRequest reads a version of a config. A nil
// ConfigVersion selects the latest version.
type GetConfigRequest struct {
	ResourceName      string
	ResourceNamespace string
	Context           string
	ConfigVersion     *int64
}

// GetConfigResponse contains the requested version.
// Config is nil if there is no such version. CreationTimestamp
// is the time version 1 was written and UpdateTimestamp the
// time the latest version was written.
type GetConfigResponse struct {
	Config            *structpb.Value
	ConfigVersion     int64
	UserID            string
	CreationTimestamp int64
	UpdateTimestamp   int64
}

// DeleteConfigRequest deletes a config by appending a
// tombstone version
type DeleteConfigRequest struct {
	ResourceName      string
	ResourceNamespace string
	Context           string
}

// DeleteConfigResponse contains the version of the tombstone
type DeleteConfigResponse struct {
	ConfigVersion int64
}

// GetAllConfigsRequest reads the latest version of every
// context of a config
type GetAllConfigsRequest struct {
	ResourceName      string
	ResourceNamespace string
}

// ContextConfig is the latest version of one context
type ContextConfig struct {
	Context           string
	Config            *structpb.Value
	ConfigVersion     int64
	UserID            string
	CreationTimestamp int64
	UpdateTimestamp   int64
}

// GetAllConfigsResponse lists contexts in ascending order.
// Deleted contexts are left out.
type GetAllConfigsResponse struct {
	ContextConfigs []*ContextConfig
}

// ConfigServiceConfig contains configuration
// for a config service
type ConfigServiceConfig struct {
	Store  ConfigStore
	Logger *zap.Logger
}

// ConfigService handles config requests
type ConfigService struct {
	store     ConfigStore
	logger    *zap.Logger
	marshaler jsonpb.Marshaler
}

// NewConfigService creates a config service
func NewConfigService(config ConfigServiceConfig) *ConfigService {
	service := &ConfigService{
		store:  config.Store,
		logger: config.Logger,
	}

	if service.logger == nil {
		service.logger = zap.L()
	}

	return service
}

// UpsertConfig writes the request's config as the next
// version of its resource
func (service *ConfigService) UpsertConfig(ctx context.Context, request *UpsertConfigRequest) (*UpsertConfigResponse, error) {
	resource, err := resourceFor(ctx, request.ResourceName, request.ResourceNamespace, request.Context)

	if err != nil {
		return nil, err
	}

	if request.Config == nil {
		return nil, status.Error(codes.InvalidArgument, "config is required")
	}

	userID, _ := UserID(ctx)
	logger, ctx := service.requestLogger(ctx, resource, userID)

	payload, err := service.marshaler.MarshalToString(request.Config)

	if err != nil {
		logger.Error("could not encode config", zap.Error(err))

		return nil, status.Errorf(codes.InvalidArgument, "could not encode config: %s", err)
	}

	result, err := service.store.WriteConfig(ctx, resource, userID, []byte(payload))

	if err != nil {
		logger.Error("could not write config", zap.Error(err))

		return nil, status.Errorf(codes.Internal, "could not write config: %s", err)
	}

	if !result.Success {
		logger.Error("config was not written", zap.Int64("version", result.Version))

		return nil, status.Errorf(codes.Internal, "config version %d was not written", result.Version)
	}

	return &UpsertConfigResponse{Config: request.Config, ConfigVersion: result.Version}, nil
}

// GetConfig reads a version of a config
func (service *ConfigService) GetConfig(ctx context.Context, request *GetConfigRequest) (*GetConfigResponse, error) {
	resource, err := resourceFor(ctx, request.ResourceName, request.ResourceNamespace, request.Context)

	if err != nil {
		return nil, err
	}

	userID, _ := UserID(ctx)
	logger, ctx := service.requestLogger(ctx, resource, userID)

	config, ok, err := service.store.GetConfigRecord(ctx, resource, request.ConfigVersion)

	if err != nil {
		logger.Error("could not read config", zap.Error(err))

		return nil, status.Errorf(codes.Internal, "could not read config: %s", err)
	}

	if !ok {
		return &GetConfigResponse{}, nil
	}

	value, err := decodeConfig(logger, config)

	if err != nil {
		return nil, err
	}

	return &GetConfigResponse{
		Config:            value,
		ConfigVersion:     config.ConfigVersion,
		UserID:            config.UserID,
		CreationTimestamp: config.ResourceCreationTimestamp,
		UpdateTimestamp:   config.LastUpdateTimestamp,
	}, nil
}

// DeleteConfig appends a tombstone to the request's config.
// It fails with NotFound if the config does not exist or is
// already deleted.
func (service *ConfigService) DeleteConfig(ctx context.Context, request *DeleteConfigRequest) (*DeleteConfigResponse, error) {
	resource, err := resourceFor(ctx, request.ResourceName, request.ResourceNamespace, request.Context)

	if err != nil {
		return nil, err
	}

	userID, _ := UserID(ctx)
	logger, ctx := service.requestLogger(ctx, resource, userID)

	result, ok, err := service.store.DeleteConfig(ctx, resource, userID)

	if err != nil {
		logger.Error("could not delete config", zap.Error(err))

		return nil, status.Errorf(codes.Internal, "could not delete config: %s", err)
	}

	if !ok {
		return nil, status.Error(codes.NotFound, "config does not exist")
	}

	if !result.Success {
		logger.Error("config was not deleted", zap.Int64("version", result.Version))

		return nil, status.Errorf(codes.Internal, "config version %d was not written", result.Version)
	}

	return &DeleteConfigResponse{ConfigVersion: result.Version}, nil
}

// GetAllConfigs reads the latest version of every context
// of the request's config
func (service *ConfigService) GetAllConfigs(ctx context.Context, request *GetAllConfigsRequest) (*GetAllConfigsResponse, error) {
	resource, err := resourceFor(ctx, request.ResourceName, request.ResourceNamespace, "")

	if err != nil {
		return nil, err
	}

	userID, _ := UserID(ctx)
	logger, ctx := service.requestLogger(ctx, resource, userID)

	configs, err := service.store.GetAllConfigs(ctx, resource.ResourceName, resource.ResourceNamespace, resource.TenantID)

	if err != nil {
		logger.Error("could not read configs", zap.Error(err))

		return nil, status.Errorf(codes.Internal, "could not read configs: %s", err)
	}

	response := &GetAllConfigsResponse{ContextConfigs: make([]*ContextConfig, 0, len(configs))}

	for _, config := range configs {
		value, err := decodeConfig(logger.With(zap.String("context", config.Context)), config)

		if err != nil {
			return nil, err
		}

		response.ContextConfigs = append(response.ContextConfigs, &ContextConfig{
			Context:           config.Context,
			Config:            value,
			ConfigVersion:     config.ConfigVersion,
			UserID:            config.UserID,
			CreationTimestamp: config.ResourceCreationTimestamp,
			UpdateTimestamp:   config.LastUpdateTimestamp,
		})
	}

	return response, nil
}

// requestLogger attaches the service logger to ctx so the
// store logs through it, and returns it with the request's
// resource and user attached
func (service *ConfigService) requestLogger(ctx context.Context, resource configstore.Resource, userID string) (*zap.Logger, context.Context) {
	ctx = log.WithLogger(log.WithFields(ctx, zap.String("userId", userID)), service.logger)

	return log.WithContext(ctx, service.logger).With(zap.Object("resource", resource)), ctx
}

func decodeConfig(logger *zap.Logger, config configstore.Config) (*structpb.Value, error) {
	var value structpb.Value

	if err := jsonpb.UnmarshalString(string(config.Payload), &value); err != nil {
		logger.Error("could not decode stored config", zap.Int64("version", config.ConfigVersion), zap.Error(err))

		return nil, status.Errorf(codes.Internal, "could not decode config version %d: %s", config.ConfigVersion, err)
	}

	return &value, nil
}

func resourceFor(ctx context.Context, name string, namespace string, resourceContext string) (configstore.Resource, error) {
	tenantID, ok := TenantID(ctx)

	if !ok {
		return configstore.Resource{}, status.Error(codes.Unauthenticated, "tenant id is missing from the request context")
	}

	if strings.TrimSpace(name) == "" {
		return configstore.Resource{}, status.Error(codes.InvalidArgument, "resource name is required")
	}

	if strings.TrimSpace(namespace) == "" {
		return configstore.Resource{}, status.Error(codes.InvalidArgument, "resource namespace is required")
	}

	resource := configstore.Resource{
		ResourceName:      name,
		ResourceNamespace: namespace,
		TenantID:          tenantID,
		Context:           resourceContext,
	}

	if err := resource.Validate(); err != nil {
		return configstore.Resource{}, status.Error(codes.InvalidArgument, err.Error())
	}

	return resource, nil
}
