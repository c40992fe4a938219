package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter       metric.Int64Counter
	RequestDuration      metric.Float64Histogram
	AnalysisStepDuration metric.Float64Histogram
	AnalysisRuns         metric.Int64Counter
	IndexOperations      metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("study-assistant")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"analysis.step.duration",
		metric.WithDescription("Analysis pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	analysisRuns, err := meter.Int64Counter(
		"analysis.runs.total",
		metric.WithDescription("Total document analysis runs"),
	)
	if err != nil {
		return nil, err
	}

	indexOperations, err := meter.Int64Counter(
		"index.operations.total",
		metric.WithDescription("Total vector index operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:       requestCounter,
		RequestDuration:      requestDuration,
		AnalysisStepDuration: stepDuration,
		AnalysisRuns:         analysisRuns,
		IndexOperations:      indexOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordAnalysisStep(ctx context.Context, step, status string, seconds float64) {
	if m == nil {
		return
	}
	m.AnalysisStepDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("analysis.step", step),
		attribute.String("analysis.status", status),
	))
}

func (m *Metrics) RecordAnalysisRun(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.AnalysisRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("analysis.status", status)))
}

// RecordIndexOperation counts vector index reads and writes by outcome.
func (m *Metrics) RecordIndexOperation(ctx context.Context, operation string, success bool) {
	if m == nil {
		return
	}
	m.IndexOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("index.operation", operation),
		attribute.Bool("index.success", success),
	))
}
