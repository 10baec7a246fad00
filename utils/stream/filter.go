package stream

// Predicate decides whether a value stays in the stream.
// A predicate that cannot evaluate a value returns an
// error, which ends the stream.
type Predicate func(value interface{}) (bool, error)

// Filter drops values for which predicate returns false.
// Values are evaluated lazily as the derived stream is
// advanced.
func Filter(predicate Predicate) Processor {
	return func(source Stream) Stream {
		return &filteredStream{Stream: source, predicate: predicate}
	}
}

type filteredStream struct {
	Stream
	predicate Predicate
	err       error
	// skipped counts the values dropped so far
	skipped int
}

func (stream *filteredStream) Next() bool {
	if stream.err != nil {
		return false
	}

	for stream.Stream.Next() {
		keep, err := stream.predicate(stream.Stream.Value())

		if err != nil {
			stream.err = err

			return false
		}

		if keep {
			return true
		}

		stream.skipped++
	}

	return false
}

func (stream *filteredStream) Value() interface{} {
	if stream.err != nil {
		return nil
	}

	return stream.Stream.Value()
}

func (stream *filteredStream) Error() error {
	if stream.err != nil {
		return stream.err
	}

	return stream.Stream.Error()
}

// Skipped returns the number of values a stream created
// by Filter has dropped so far. It returns 0 for any
// other stream.
func Skipped(stream Stream) int {
	if filtered, ok := stream.(*filteredStream); ok {
		return filtered.skipped
	}

	return 0
}
