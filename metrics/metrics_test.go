package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestUpdateActiveAndWaitingPaths(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.UpdateActivePaths(3)
	m.UpdateWaitingPaths(2)

	assert.Equal(t, 3.0, gaugeValue(t, m.activePaths))
	assert.Equal(t, 2.0, gaugeValue(t, m.waitingPaths))
}

func TestDisableSuppressesUpdates(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.UpdateActivePaths(1)
	m.Disable()
	m.UpdateActivePaths(5)

	assert.Equal(t, 1.0, gaugeValue(t, m.activePaths))

	m.Enable()
	m.UpdateActivePaths(5)
	assert.Equal(t, 5.0, gaugeValue(t, m.activePaths))
}

func TestResetZeroesGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.UpdateActivePaths(7)
	m.UpdateWaitingPaths(4)
	m.Reset()

	assert.Equal(t, 0.0, gaugeValue(t, m.activePaths))
	assert.Equal(t, 0.0, gaugeValue(t, m.waitingPaths))
}

func TestRecordStepLatencyDoesNotPanic(t *testing.T) {
	m := New(prometheus.NewRegistry())
	assert.NotPanics(t, func() {
		m.RecordStepLatency("run-1", 42*time.Millisecond, "continue")
	})
}

func TestIncrementCountersDoNotPanic(t *testing.T) {
	m := New(prometheus.NewRegistry())
	assert.NotPanics(t, func() {
		m.IncrementRetries("run-1", "lookup", "tool_call")
		m.IncrementEffectFailures("run-1", "lookup", "tool_call")
		m.IncrementCyclesDetected("run-1")
	})
}

func TestNewWithNilRegistererFallsBackToDefault(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = New(nil)
	})
}
