package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         LogConfig
		expectError bool
	}{
		{name: "default", cfg: DefaultLogConfig()},
		{name: "console stderr", cfg: LogConfig{Level: "debug", Format: "console", Output: "stderr"}},
		{name: "warn", cfg: LogConfig{Level: "warn", Format: "json", Output: "stdout"}},
		{name: "empty output", cfg: LogConfig{Level: "info"}},
		{name: "invalid level", cfg: LogConfig{Level: "verbose"}, expectError: true},
		{name: "unwritable file", cfg: LogConfig{Level: "info", Output: "/nonexistent-dir/keygate.log"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")
	ctx = ContextWithSpanID(ctx, "span-1")

	logger.WithContext(ctx).Info("hello", String("k", "v"))
	logger.WithContext(context.Background()).Debug("plain")
	logger.With(Int("n", 1)).Warn("with")

	entries := logs.All()
	require.Len(t, entries, 3)

	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "span-1", fields["span_id"])
	assert.Equal(t, "v", fields["k"])

	assert.Empty(t, entries[1].ContextMap())
	assert.Equal(t, int64(1), entries[2].ContextMap()["n"])
}

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, RequestIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.Empty(t, SpanIDFromContext(ctx))

	ctx = ContextWithRequestID(ctx, "r")
	ctx = ContextWithTraceID(ctx, "t")
	ctx = ContextWithSpanID(ctx, "s")
	assert.Equal(t, "r", RequestIDFromContext(ctx))
	assert.Equal(t, "t", TraceIDFromContext(ctx))
	assert.Equal(t, "s", SpanIDFromContext(ctx))
}

func TestGlobalLogger(t *testing.T) {
	nop := NopLogger()
	SetGlobalLogger(nop)
	t.Cleanup(func() { SetGlobalLogger(nil) })

	assert.Same(t, nop, GetGlobalLogger())

	SetGlobalLogger(nil)
	assert.NotNil(t, GetGlobalLogger())
}

func TestZapLogger(t *testing.T) {
	t.Parallel()

	base := zap.NewExample()
	assert.Same(t, base, ZapLogger(NewLoggerFromZap(base)))
	assert.NotNil(t, ZapLogger(nil))
}

func TestNewLogger_FileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keygate.log")
	logger, err := NewLogger(LogConfig{Level: "info", Format: FormatJSON, Output: path})
	require.NoError(t, err)

	logger.Named("apikey").Info("evaluated", String("checkpoint", "route"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"keygate"`)
	assert.Contains(t, string(data), `"logger":"apikey"`)
	assert.Contains(t, string(data), `"checkpoint":"route"`)
}

func TestLogger_Named(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	NewLoggerFromZap(zap.New(core)).Named("apikey").Named("resolver").Info("x")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "apikey.resolver", logs.All()[0].LoggerName)
}

func TestContextWithRequestID_PreservesTraceIDs(t *testing.T) {
	t.Parallel()

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	ctx = ContextWithRequestID(ctx, "req-1")

	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}
