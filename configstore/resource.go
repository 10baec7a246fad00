package configstore

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jrife/confstore/storage/document"
	"go.uber.org/zap/zapcore"
)

// ErrInvalidResource is returned for a resource whose
// identity fields are not valid UTF-8. Such fields cannot
// round trip through a stored document unchanged.
var ErrInvalidResource = errors.New("resource identity must be valid UTF-8")

// Document field names
const (
	FieldResourceName      = "resourceName"
	FieldResourceNamespace = "resourceNamespace"
	FieldTenantID          = "tenantId"
	FieldContext           = "context"
	FieldConfigVersion     = "configVersion"
	FieldUserID            = "userId"
	FieldConfig            = "config"
	FieldCreationTimestamp = "creationTimestamp"
	FieldDeleted           = "deleted"
)

// Resource identifies a versioned configuration. Two
// resources are the same resource if all four fields
// are equal. Resource is comparable and can be used
// as a map key.
type Resource struct {
	ResourceName      string
	ResourceNamespace string
	TenantID          string
	Context           string
}

// Validate returns ErrInvalidResource if any identity
// field is not valid UTF-8
func (resource Resource) Validate() error {
	for _, field := range []string{resource.ResourceName, resource.ResourceNamespace, resource.TenantID, resource.Context} {
		if !utf8.ValidString(field) {
			return ErrInvalidResource
		}
	}

	return nil
}

// Key returns the physical key of the given version of
// this resource. Each component is path-escaped so keys
// of distinct resources or versions never collide.
func (resource Resource) Key(version int64) document.Key {
	return resource.KeyPrefix() + document.Key(strconv.FormatInt(version, 10))
}

// KeyPrefix returns the prefix shared by the keys of every
// version of this resource and by no other resource's keys
func (resource Resource) KeyPrefix() document.Key {
	return keyPrefix(resource.ResourceName, resource.ResourceNamespace, resource.TenantID, resource.Context)
}

// keyPrefix escapes each component and terminates it with
// the separator. Escaped components never contain the
// separator, so a prefix of fewer components selects every
// key whose leading components are equal.
func keyPrefix(components ...string) document.Key {
	var prefix strings.Builder

	for _, component := range components {
		prefix.WriteString(url.PathEscape(component))
		prefix.WriteString("/")
	}

	return document.Key(prefix.String())
}

// Filter returns a filter matching every version of
// this resource
func (resource Resource) Filter() document.Filter {
	return document.Eq(FieldResourceName, resource.ResourceName).
		And(document.Eq(FieldResourceNamespace, resource.ResourceNamespace)).
		And(document.Eq(FieldTenantID, resource.TenantID)).
		And(document.Eq(FieldContext, resource.Context))
}

// MarshalLogObject implements zapcore.ObjectMarshaler
func (resource Resource) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(FieldResourceName, resource.ResourceName)
	enc.AddString(FieldResourceNamespace, resource.ResourceNamespace)
	enc.AddString(FieldTenantID, resource.TenantID)
	enc.AddString(FieldContext, resource.Context)

	return nil
}
