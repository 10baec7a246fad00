package log_test

import (
	"context"
	"testing"

	"github.com/jrife/confstore/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFields(t *testing.T) {
	ctx := log.WithFields(context.Background(), zap.String("tenant_id", "t1"))
	ctx = log.WithFields(ctx, zap.String("resource_name", "svc"))

	fields := log.Fields(ctx)

	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}

	if len(log.Fields(context.Background())) != 0 {
		t.Fatalf("expected no fields on an empty context")
	}
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := log.WithFields(context.Background(), zap.String("tenant_id", "t1"))

	log.WithContext(ctx, zap.New(core)).Debug("hello")

	entries := logs.All()

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if entries[0].ContextMap()["tenant_id"] != "t1" {
		t.Fatalf("expected tenant_id field to be t1, got %#v", entries[0].ContextMap())
	}
}

func TestLoggerFromContext(t *testing.T) {
	defaultLogger := zap.NewNop()
	logger, ctx := log.LoggerFromContext(context.Background(), defaultLogger)

	if logger != defaultLogger {
		t.Fatalf("expected default logger to be returned")
	}

	if log.Logger(ctx) != defaultLogger {
		t.Fatalf("expected default logger to be attached to the context")
	}

	other := zap.NewExample()
	logger, _ = log.LoggerFromContext(log.WithLogger(context.Background(), other), defaultLogger)

	if logger != other {
		t.Fatalf("expected logger from the context to be returned")
	}
}
