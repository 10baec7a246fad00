package stream

import "github.com/jrife/confstore/utils/sortedwindow"

// Comparator orders two stream values. It returns a negative
// number if a sorts before b, a positive number if a sorts
// after b and 0 if they are equivalent. Equivalent values
// occupy a single slot in the sort, so comparators must
// break ties between distinct values.
type Comparator func(a interface{}, b interface{}) int

// Sort emits the first N values of the source in the order
// defined by compare. N is limit if limit > 0, otherwise the
// whole source is sorted. The source is drained on the first
// call to Next and at most N values are held at any time.
func Sort(compare Comparator, limit int) Processor {
	return func(source Stream) Stream {
		return &sortedStream{
			Stream: source,
			window: sortedwindow.New(sortedwindow.Comparator(compare), sortedwindow.WithLimit(limit)),
		}
	}
}

type sortedStream struct {
	Stream
	window *sortedwindow.SortedMinWindow
	iter   *sortedwindow.Iterator
}

func (stream *sortedStream) fill() bool {
	for stream.Stream.Next() {
		stream.window.Insert(stream.Stream.Value())
	}

	if stream.Stream.Error() != nil {
		return false
	}

	stream.iter = stream.window.Iterator()

	return true
}

func (stream *sortedStream) Next() bool {
	if stream.iter == nil && !stream.fill() {
		return false
	}

	return stream.iter.Next()
}

func (stream *sortedStream) Value() interface{} {
	if stream.iter == nil {
		return nil
	}

	return stream.iter.Value()
}
