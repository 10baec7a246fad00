package document_test

import (
	"encoding/json"
	"testing"

	"github.com/jrife/confstore/storage/document"
)

func TestFilterMatches(t *testing.T) {
	doc := document.Document(`{"resourceName":"svc","tenantId":"t1","configVersion":3,"ratio":0.5,"enabled":true,"gone":null}`)
	fields, err := document.Fields(doc)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	testCases := map[string]struct {
		filter document.Filter
		result bool
	}{
		"empty": {
			filter: document.Filter{},
			result: true,
		},
		"string": {
			filter: document.Eq("resourceName", "svc"),
			result: true,
		},
		"string-mismatch": {
			filter: document.Eq("resourceName", "other"),
			result: false,
		},
		"int64": {
			filter: document.Eq("configVersion", int64(3)),
			result: true,
		},
		"int": {
			filter: document.Eq("configVersion", 3),
			result: true,
		},
		"float-equal-to-int": {
			filter: document.Eq("configVersion", 3.0),
			result: true,
		},
		"float": {
			filter: document.Eq("ratio", 0.5),
			result: true,
		},
		"number-vs-string": {
			filter: document.Eq("configVersion", "3"),
			result: false,
		},
		"bool": {
			filter: document.Eq("enabled", true),
			result: true,
		},
		"null": {
			filter: document.Eq("gone", nil),
			result: true,
		},
		"missing-is-null": {
			filter: document.Eq("missing", nil),
			result: true,
		},
		"missing": {
			filter: document.Eq("missing", "x"),
			result: false,
		},
		"conjunction": {
			filter: document.Eq("resourceName", "svc").And(document.Eq("tenantId", "t1")).And(document.Eq("configVersion", int64(3))),
			result: true,
		},
		"conjunction-mismatch": {
			filter: document.Eq("resourceName", "svc").And(document.Eq("tenantId", "t2")),
			result: false,
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if result := testCase.filter.Matches(fields); result != testCase.result {
				t.Fatalf("expected %t, got %t", testCase.result, result)
			}
		})
	}
}

func TestFields(t *testing.T) {
	for _, doc := range []string{``, `[]`, `"x"`, `3`} {
		if _, err := document.Fields(document.Document(doc)); err != document.ErrNotAnObject {
			t.Fatalf("expected ErrNotAnObject for %q, got %#v", doc, err)
		}
	}

	if _, err := document.Fields(document.Document(`{"a":`)); err == nil {
		t.Fatalf("expected malformed document to fail")
	}

	fields, err := document.Fields(document.Document(`{"v":9007199254740993}`))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if fields["v"] != json.Number("9007199254740993") {
		t.Fatalf("expected large integer to survive decoding, got %#v", fields["v"])
	}
}

func TestQueryValidate(t *testing.T) {
	valid := document.Query{
		Filter:  document.Eq("tenantId", "t1"),
		OrderBy: []document.OrderBy{{Field: "configVersion", Desc: true}},
		Limit:   1,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	invalid := map[string]document.Query{
		"bad-filter-field": {Filter: document.Eq("tenant'); drop", "t1")},
		"nested-field":     {Filter: document.Eq("a.b", "t1")},
		"bad-value":        {Filter: document.Eq("tenantId", []string{"t1"})},
		"bad-order-field":  {OrderBy: []document.OrderBy{{Field: "$version"}}},
	}

	for name, query := range invalid {
		t.Run(name, func(t *testing.T) {
			if err := query.Validate(); err == nil {
				t.Fatalf("expected validation to fail")
			}
		})
	}
}

func TestCompare(t *testing.T) {
	testCases := map[string]struct {
		a, b   interface{}
		result int
	}{
		"ints":          {int64(1), int64(2), -1},
		"int-float":     {int64(2), 1.5, 1},
		"strings":       {"b", "a", 1},
		"bools":         {false, true, -1},
		"nil-first":     {nil, false, -1},
		"number-string": {int64(10), "1", -1},
		"equal":         {"a", "a", 0},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if result := document.Compare(testCase.a, testCase.b); result != testCase.result {
				t.Fatalf("expected %d, got %d", testCase.result, result)
			}
		})
	}
}
