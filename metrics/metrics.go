// Package metrics exposes Prometheus counters, gauges, and histograms
// for machine execution: active paths, pending effects, step latency,
// effect retries, and cycle detections.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collects and exposes execution metrics under the
// "dygram" namespace.
type Prometheus struct {
	activePaths   prometheus.Gauge
	waitingPaths  prometheus.Gauge
	stepLatency   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	cyclesAborted *prometheus.CounterVec
	effectFailed  *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// New creates and registers DyGram's metrics with registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for isolation in tests.
func New(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Prometheus{
		enabled: true,
		activePaths: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dygram",
			Name:      "active_paths",
			Help:      "Current number of execution paths in the Active state",
		}),
		waitingPaths: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dygram",
			Name:      "waiting_paths",
			Help:      "Current number of execution paths waiting on effect fulfillment",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dygram",
			Name:      "step_latency_ms",
			Help:      "Step() duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"run_id", "status"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dygram",
			Name:      "effect_retries_total",
			Help:      "Cumulative retry attempts for effect fulfillment",
		}, []string{"run_id", "node_id", "effect_kind"}),
		cyclesAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dygram",
			Name:      "cycles_detected_total",
			Help:      "Paths failed due to cycle detection",
		}, []string{"run_id"}),
		effectFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dygram",
			Name:      "effect_failures_total",
			Help:      "Effect fulfillment failures by kind",
		}, []string{"run_id", "node_id", "effect_kind"}),
	}
}

func (m *Prometheus) RecordStepLatency(runID string, latency time.Duration, status string) {
	if !m.isEnabled() {
		return
	}
	m.stepLatency.WithLabelValues(runID, status).Observe(float64(latency.Milliseconds()))
}

func (m *Prometheus) IncrementRetries(runID, nodeID, effectKind string) {
	if !m.isEnabled() {
		return
	}
	m.retries.WithLabelValues(runID, nodeID, effectKind).Inc()
}

func (m *Prometheus) IncrementEffectFailures(runID, nodeID, effectKind string) {
	if !m.isEnabled() {
		return
	}
	m.effectFailed.WithLabelValues(runID, nodeID, effectKind).Inc()
}

func (m *Prometheus) IncrementCyclesDetected(runID string) {
	if !m.isEnabled() {
		return
	}
	m.cyclesAborted.WithLabelValues(runID).Inc()
}

func (m *Prometheus) UpdateActivePaths(count int) {
	if !m.isEnabled() {
		return
	}
	m.activePaths.Set(float64(count))
}

func (m *Prometheus) UpdateWaitingPaths(count int) {
	if !m.isEnabled() {
		return
	}
	m.waitingPaths.Set(float64(count))
}

func (m *Prometheus) Disable() { m.mu.Lock(); m.enabled = false; m.mu.Unlock() }
func (m *Prometheus) Enable()  { m.mu.Lock(); m.enabled = true; m.mu.Unlock() }

func (m *Prometheus) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Reset zeroes the gauges. Counters and histograms are cumulative by
// Prometheus design and cannot be reset without unregistering them.
func (m *Prometheus) Reset() {
	m.activePaths.Set(0)
	m.waitingPaths.Set(0)
}
