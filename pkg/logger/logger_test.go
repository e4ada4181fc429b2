package logger

import (
	"context"
	"testing"

	"loyaltyhub/pkg/config"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(ConfigParams{Cfg: &config.Config{LogLevel: "loud"}})
	require.Error(t, err)
}

func TestNewReplacesGlobals(t *testing.T) {
	defer zap.ReplaceGlobals(zap.NewNop())

	log, err := New(ConfigParams{Cfg: &config.Config{LogLevel: "debug", AppEnv: "production"}})
	require.NoError(t, err)
	require.Same(t, log, zap.L())
	require.True(t, log.Core().Enabled(zap.DebugLevel))
}

func TestFromContext(t *testing.T) {
	zap.ReplaceGlobals(zap.NewNop())
	require.Same(t, zap.L(), FromContext(context.Background()))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	require.NotSame(t, zap.L(), FromContext(ctx))
}
