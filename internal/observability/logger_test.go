package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_LevelMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		level        string
		debugEnabled bool
	}{
		{name: "debug level", level: "debug", debugEnabled: true},
		{name: "info level", level: "info", debugEnabled: false},
		{name: "empty level defaults to info", level: "", debugEnabled: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tc.level, "api")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("logger should not be nil")
			}

			if got := logger.Core().Enabled(zapcore.DebugLevel); got != tc.debugEnabled {
				t.Fatalf("debug enabled=%v, want=%v", got, tc.debugEnabled)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("not-a-level", "api")
	if err == nil {
		t.Fatal("expected error for invalid level")
	}
	if logger != nil {
		t.Fatal("expected nil logger for invalid level")
	}
}

func TestNewLogger_ServiceFields(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	logger, err := NewLogger("info", "worker", zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("sweep finished")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["service"] != ServiceName || fields["component"] != "worker" {
		t.Fatalf("fields=%v, want service=%s component=worker", fields, ServiceName)
	}
}

func TestCorrelationIDFromContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		ctx    context.Context
		want   string
		wantOK bool
	}{
		{name: "tagged", ctx: WithCorrelationID(context.Background(), "cid-123"), want: "cid-123", wantOK: true},
		{name: "trimmed", ctx: WithCorrelationID(context.TODO(), " cid-456 "), want: "cid-456", wantOK: true},
		{name: "untagged", ctx: context.Background()},
		{name: "blank id ignored", ctx: WithCorrelationID(context.Background(), "  ")},
		{name: "nil context", ctx: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := CorrelationIDFromContext(tt.ctx)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("CorrelationIDFromContext() = %q, %v, want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestWithContextLogger(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	ctx := WithCorrelationID(context.Background(), "cid-789")
	loggerWithContext := WithContextLogger(baseLogger, ctx)
	loggerWithContext.Info("message with correlation")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if got := entries[0].ContextMap()["correlationId"]; got != "cid-789" {
		t.Fatalf("correlationId=%v, want=%q", got, "cid-789")
	}
}

func TestWithContextLogger_NoCorrelationID(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.InfoLevel)
	baseLogger := zap.New(core)

	loggerWithContext := WithContextLogger(baseLogger, context.Background())
	loggerWithContext.Info("message without correlation")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1", len(entries))
	}

	if _, ok := entries[0].ContextMap()["correlationId"]; ok {
		t.Fatal("expected correlationId field to be absent")
	}
}

func TestWithContextLogger_NilLogger(t *testing.T) {
	t.Parallel()

	if got := WithContextLogger(nil, context.Background()); got != nil {
		t.Fatal("expected nil logger")
	}
}

func TestEnsureCorrelationID(t *testing.T) {
	t.Parallel()

	ctx, generated := EnsureCorrelationID(context.Background())
	if generated == "" {
		t.Fatal("expected generated correlation id")
	}
	if got, _ := CorrelationIDFromContext(ctx); got != generated {
		t.Fatalf("correlation id=%q, want=%q", got, generated)
	}

	existing := WithCorrelationID(context.Background(), "cid-existing")
	ctx, kept := EnsureCorrelationID(existing)
	if kept != "cid-existing" {
		t.Fatalf("correlation id=%q, want=%q", kept, "cid-existing")
	}
	if ctx != existing {
		t.Fatal("expected context to be returned unchanged")
	}
}
