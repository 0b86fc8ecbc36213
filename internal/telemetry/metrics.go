package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	ChatOutcomes        metric.Int64Counter
	GenerationDuration  metric.Float64Histogram
	RetrievedChunks     metric.Int64Histogram
	CircuitBreakerState metric.Int64Counter
	GPUActions          metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(ServiceName)

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

	chatOutcomes, err := meter.Int64Counter(
		"chat.outcomes.total",
		metric.WithDescription("Chat responses by pipeline outcome"),
	)
	if err != nil {
		return nil, err
	}

	generationDuration, err := meter.Float64Histogram(
		"generation.duration",
		metric.WithDescription("Model generation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	retrievedChunks, err := meter.Int64Histogram(
		"retrieval.chunks",
		metric.WithDescription("Chunks returned per retrieval"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	gpuActions, err := meter.Int64Counter(
		"gpu.actions.total",
		metric.WithDescription("GPU pod lifecycle actions"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		ChatOutcomes:        chatOutcomes,
		GenerationDuration:  generationDuration,
		RetrievedChunks:     retrievedChunks,
		CircuitBreakerState: circuitBreakerState,
		GPUActions:          gpuActions,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)

	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordChatOutcome counts a pipeline result; outcome is the safety note or "answered".
func (m *Metrics) RecordChatOutcome(ctx context.Context, mode, outcome string) {
	if m == nil {
		return
	}
	m.ChatOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("chat.mode", mode),
		attribute.String("chat.outcome", outcome),
	))
}

func (m *Metrics) RecordGeneration(ctx context.Context, model string, seconds float64, success bool) {
	if m == nil {
		return
	}
	m.GenerationDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("model", model),
		attribute.Bool("success", success),
	))
}

func (m *Metrics) RecordRetrieval(ctx context.Context, chunks int) {
	if m == nil {
		return
	}
	m.RetrievedChunks.Record(ctx, int64(chunks))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

func (m *Metrics) RecordGPUAction(action string, success bool) {
	if m == nil {
		return
	}
	m.GPUActions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("gpu.action", action),
		attribute.Bool("success", success),
	))
}
