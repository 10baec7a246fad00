package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField returns an error if name cannot be used
// as a field name in a query. Only top-level fields whose
// names are plain identifiers are addressable.
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}

	return nil
}

// Predicate matches documents whose field equals value
type Predicate struct {
	Field string
	Value interface{}
}

// Filter is a conjunction of predicates. An empty
// filter matches every document.
type Filter []Predicate

// Eq creates a filter matching documents whose
// field equals value
func Eq(field string, value interface{}) Filter {
	return Filter{{Field: field, Value: value}}
}

// And returns a filter matching documents that
// match both filter and other
func (filter Filter) And(other Filter) Filter {
	combined := make(Filter, 0, len(filter)+len(other))
	combined = append(combined, filter...)
	combined = append(combined, other...)

	return combined
}

// Validate checks every predicate's field name and value type
func (filter Filter) Validate() error {
	for _, predicate := range filter {
		if err := ValidateField(predicate.Field); err != nil {
			return err
		}

		if _, err := Normalize(predicate.Value); err != nil {
			return fmt.Errorf("field %s: %s", predicate.Field, err)
		}
	}

	return nil
}

// Matches returns true if fields satisfies every predicate.
// fields is a decoded document as returned by Fields.
func (filter Filter) Matches(fields map[string]interface{}) bool {
	for _, predicate := range filter {
		expected, err := Normalize(predicate.Value)

		if err != nil {
			return false
		}

		actual, ok := fields[predicate.Field]

		if !ok {
			if expected != nil {
				return false
			}

			continue
		}

		actual, err = Normalize(actual)

		if err != nil || Compare(actual, expected) != 0 {
			return false
		}
	}

	return true
}

// Fields decodes the top-level fields of a document. Numbers
// are decoded as json.Number so integers survive intact.
func Fields(doc Document) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(doc)

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotAnObject
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var fields map[string]interface{}

	if err := decoder.Decode(&fields); err != nil {
		return nil, fmt.Errorf("could not decode document: %s", err)
	}

	return fields, nil
}

// Normalize converts a scalar into one of nil, bool, int64,
// float64 or string so values from queries and values decoded
// from documents can be compared. Integral numbers become int64.
// Other types are rejected.
func Normalize(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil, bool, string, int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return float64(v), nil
		}

		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return float64(v), nil
		}

		return int64(v), nil
	case float32:
		return normalizeFloat(float64(v)), nil
	case float64:
		return normalizeFloat(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}

		f, err := v.Float64()

		if err != nil {
			return nil, fmt.Errorf("invalid number %s", v)
		}

		return normalizeFloat(f), nil
	}

	return nil, fmt.Errorf("unsupported value type %T", value)
}

func normalizeFloat(f float64) interface{} {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}

	return f
}

func rank(value interface{}) int {
	switch value.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	}

	return 4
}

// Compare orders two normalized values. Values of different
// kinds order as nil < bool < number < string.
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b interface{}) int {
	if rank(a) != rank(b) {
		if rank(a) < rank(b) {
			return -1
		}

		return 1
	}

	switch av := a.(type) {
	case bool:
		bv := b.(bool)

		if av == bv {
			return 0
		} else if !av {
			return -1
		}

		return 1
	case string:
		return strings.Compare(av, b.(string))
	case int64:
		if bv, ok := b.(int64); ok {
			return compareInt64(av, bv)
		}

		return compareFloat64(float64(av), b.(float64))
	case float64:
		if bv, ok := b.(int64); ok {
			return compareFloat64(av, float64(bv))
		}

		return compareFloat64(av, b.(float64))
	}

	return 0
}

func compareInt64(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}

	return 0
}

func compareFloat64(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}

	return 0
}
