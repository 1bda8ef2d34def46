// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestNewProvider_DisabledInstallsNoop(t *testing.T) {
	restoreGlobalProvider(t)

	p, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)

	_, span := Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "zipkin"})
	require.EqualError(t, err, "unsupported exporter type: zipkin (supported: grpc, http)")
}

func TestProviderWithExporter_RecordsSpans(t *testing.T) {
	restoreGlobalProvider(t)
	exp := tracetest.NewInMemoryExporter()

	p, err := NewProviderWithExporter(Config{
		ServiceName:    "couchplay",
		ServiceVersion: "v1.2.3",
		Environment:    "test",
		SamplingRate:   1,
	}, exp, sdktrace.WithSyncer(exp))
	require.NoError(t, err)

	_, span := Tracer("session").Start(context.Background(), "session.negotiate")
	span.SetAttributes(NegotiationAttributes("initial", "item-1", "src-1", 3, true, "original", 0)...)
	span.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "session.negotiate", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String(ItemIDKey, "item-1"))
	assert.Contains(t, spans[0].Resource.Attributes(), attribute.String("service.version", "v1.2.3"))

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestProviderWithExporter_NeverSample(t *testing.T) {
	restoreGlobalProvider(t)
	exp := tracetest.NewInMemoryExporter()

	p, err := NewProviderWithExporter(Config{SamplingRate: 0}, exp, sdktrace.WithSyncer(exp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("session").Start(context.Background(), "dropped")
	span.End()
	assert.Empty(t, exp.GetSpans())
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", samplerFor(1).Description())
	assert.Equal(t, "AlwaysOffSampler", samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestShutdown_NilAndDisabled(t *testing.T) {
	var nilProvider *Provider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, (&Provider{}).Shutdown(ctx))
}

func TestNewProviderWithExporter_NilExporter(t *testing.T) {
	_, err := NewProviderWithExporter(Config{}, nil)
	assert.Error(t, err)
}
