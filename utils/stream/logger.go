package stream

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log logs each value at debug level as it passes through
// and logs a summary once the stream is exhausted. Values
// implementing zapcore.ObjectMarshaler are logged as objects.
// Log returns a nil processor when debug logging is disabled.
func Log(logger *zap.Logger) Processor {
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		return nil
	}

	return func(source Stream) Stream {
		return &loggedStream{Stream: source, logger: logger}
	}
}

type loggedStream struct {
	Stream
	logger *zap.Logger
	count  int
	done   bool
}

func (stream *loggedStream) Next() bool {
	if stream.Stream.Next() {
		stream.count++
		stream.logger.Debug("next value", valueField(stream.Value()))

		return true
	}

	if !stream.done {
		stream.done = true
		stream.logger.Debug("end of stream", zap.Int("values", stream.count), zap.Error(stream.Error()))
	}

	return false
}

func valueField(value interface{}) zap.Field {
	if marshaler, ok := value.(zapcore.ObjectMarshaler); ok {
		return zap.Object("value", marshaler)
	}

	return zap.Any("value", value)
}
