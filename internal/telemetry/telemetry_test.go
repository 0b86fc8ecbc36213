package telemetry

import (
	"context"
	"testing"

	"construction-safety-assistant/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("POST", "/v1/chat", "200", 0.1)
		m.RecordChatOutcome(context.Background(), "auto", "answered")
		m.RecordGeneration(context.Background(), "model", 1.2, true)
		m.RecordRetrieval(context.Background(), 4)
		m.RecordCircuitBreakerState("model-server", "open")
		m.RecordGPUAction("start", false)
	})
}

func TestInitMetrics_RecordsWithGlobalProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordChatOutcome(context.Background(), "wellbeing", "wellbeing_playbook")
		m.RecordGPUAction("stop", true)
	})
}

func TestInitTracer_DisabledIsNoOp(t *testing.T) {
	shutdown, err := InitTracer(&config.Config{TracingEnabled: false})
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}
