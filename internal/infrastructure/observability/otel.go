package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
)

const instrumentationName = "github.com/zatekoja/trafficpipeline"

// Setup initializes OpenTelemetry tracing and metrics exporters
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Set up metric exporter
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	// Go runtime metrics
	if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
		_ = meterProvider.Shutdown(ctx)
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}

	return shutdown, nil
}

// PipelineMetrics records extraction and indexing metrics
type PipelineMetrics struct {
	WindowCount     metric.Int64Counter
	WindowDuration  metric.Float64Histogram
	DocumentCount   metric.Int64Counter
	IndexFailCount  metric.Int64Counter
	LookupFailCount metric.Int64Counter
}

var _ providers.PipelineMetrics = (*PipelineMetrics)(nil)

// InitMetrics creates the pipeline instruments on the global meter provider
func InitMetrics() (*PipelineMetrics, error) {
	return NewPipelineMetrics(otel.Meter(instrumentationName))
}

// NewPipelineMetrics creates the pipeline instruments on meter
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	windowCount, err := meter.Int64Counter(
		"pipeline.window.count",
		metric.WithDescription("Number of processed extraction windows by status"),
	)
	if err != nil {
		return nil, err
	}

	windowDuration, err := meter.Float64Histogram(
		"pipeline.window.duration",
		metric.WithDescription("Extraction window processing time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	documentCount, err := meter.Int64Counter(
		"pipeline.document.indexed",
		metric.WithDescription("Number of indexed documents by partition"),
	)
	if err != nil {
		return nil, err
	}

	indexFailCount, err := meter.Int64Counter(
		"pipeline.document.failed",
		metric.WithDescription("Number of documents the index rejected"),
	)
	if err != nil {
		return nil, err
	}

	lookupFailCount, err := meter.Int64Counter(
		"pipeline.lookup.failed",
		metric.WithDescription("Number of records with at least one failed enrichment step"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		WindowCount:     windowCount,
		WindowDuration:  windowDuration,
		DocumentCount:   documentCount,
		IndexFailCount:  indexFailCount,
		LookupFailCount: lookupFailCount,
	}, nil
}

// RecordWindow records one finished window
func (m *PipelineMetrics) RecordWindow(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("window.status", status))
	m.WindowCount.Add(ctx, 1, attrs)
	m.WindowDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordDocuments records indexed and failed documents for a partition
func (m *PipelineMetrics) RecordDocuments(ctx context.Context, partition string, indexed, failed int) {
	attrs := metric.WithAttributes(attribute.String("index.partition", partition))
	if indexed > 0 {
		m.DocumentCount.Add(ctx, int64(indexed), attrs)
	}
	if failed > 0 {
		m.IndexFailCount.Add(ctx, int64(failed), attrs)
	}
}

// RecordLookupFailure records a degraded enrichment step
func (m *PipelineMetrics) RecordLookupFailure(ctx context.Context, step string) {
	m.LookupFailCount.Add(ctx, 1, metric.WithAttributes(attribute.String("enrichment.step", step)))
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanName)
}
