package stream

// Limit ends the stream after n values without advancing
// the source any further. n <= 0 leaves the stream
// unbounded, in which case Limit returns a nil processor.
func Limit(n int) Processor {
	if n <= 0 {
		return nil
	}

	return func(source Stream) Stream {
		return &limitedStream{Stream: source, n: n}
	}
}

type limitedStream struct {
	Stream
	n    int
	seen int
	done bool
}

func (stream *limitedStream) Next() bool {
	if stream.done || stream.seen == stream.n {
		stream.done = true

		return false
	}

	if !stream.Stream.Next() {
		stream.done = true

		return false
	}

	stream.seen++

	return true
}

func (stream *limitedStream) Value() interface{} {
	if stream.done {
		return nil
	}

	return stream.Stream.Value()
}
