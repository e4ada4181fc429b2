package otelcol

import (
	"context"
	"testing"

	"loyaltyhub/pkg/config"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/fx/fxtest"
)

func TestProvideTracerProviderWithoutAddr(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	tp, err := ProvideTracerProvider(lc, &config.Config{})
	require.NoError(t, err)
	require.Equal(t, otel.GetTracerProvider(), tp)
}

func TestProvideTraceExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := ProvideTrace(exporter, defaultTraceProviderOption(&config.Config{AppName: "loyaltyhub"})...)

	_, span := tp.Tracer("test").Start(context.Background(), "purchase")
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "purchase", spans[0].Name)

	require.NoError(t, tp.Shutdown(context.Background()))
}
