package sortedwindow_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/confstore/utils/sortedwindow"
)

// descending orders versions newest first
func descending(a, b interface{}) int {
	if a.(int64) < b.(int64) {
		return 1
	} else if a.(int64) > b.(int64) {
		return -1
	}

	return 0
}

func drain(sw *sortedwindow.SortedMinWindow) []int64 {
	values := []int64{}

	for iter := sw.Iterator(); iter.Next(); {
		values = append(values, iter.Value().(int64))
	}

	return values
}

func TestSortedWindow(t *testing.T) {
	testCases := map[string]struct {
		limit  int
		input  []int64
		result []int64
	}{
		"empty": {
			limit:  1,
			input:  []int64{},
			result: []int64{},
		},
		"newest-only": {
			limit:  1,
			input:  []int64{3, 1, 7, 2, 5},
			result: []int64{7},
		},
		"newest-three": {
			limit:  3,
			input:  []int64{3, 1, 7, 2, 5},
			result: []int64{7, 5, 3},
		},
		"limit-larger-than-input": {
			limit:  10,
			input:  []int64{2, 1, 3},
			result: []int64{3, 2, 1},
		},
		"no-limit": {
			limit:  -1,
			input:  []int64{4, 9, 1, 6},
			result: []int64{9, 6, 4, 1},
		},
		"duplicates-collapse": {
			limit:  -1,
			input:  []int64{2, 2, 1},
			result: []int64{2, 1},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			sw := sortedwindow.New(descending, sortedwindow.WithLimit(testCase.limit))

			for _, v := range testCase.input {
				sw.Insert(v)
			}

			diff := cmp.Diff(testCase.result, drain(sw))

			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestSortedWindowLarge(t *testing.T) {
	sw := sortedwindow.New(descending, sortedwindow.WithLimit(1000))

	for i := int64(0); i < 100000; i++ {
		sw.Insert(i)
	}

	if sw.Size() != 1000 {
		t.Fatalf("expected size to be 1000, got %d", sw.Size())
	}

	i := int64(99999)
	for iter := sw.Iterator(); iter.Next(); i-- {
		if iter.Value().(int64) != i {
			t.Fatalf("expected value to be %d, got %d", i, iter.Value().(int64))
		}
	}

	if i != 98999 {
		t.Fatalf("expected value to be 98999, got %d", i)
	}
}
