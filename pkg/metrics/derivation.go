package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "constructai"

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeFallback = "fallback"
	OutcomeStale    = "stale"
)

// PipelineMetrics tracks background derivations, conversions and dispatch rejections.
type PipelineMetrics struct {
	derivationDuration *prometheus.HistogramVec
	derivationTotal    *prometheus.CounterVec
	conversionTotal    *prometheus.CounterVec
	dispatchRejected   *prometheus.CounterVec
	dispatchBusy       prometheus.Gauge
}

// NewPipelineMetrics registers the pipeline metrics. A nil registerer yields a
// recorder whose methods are no-ops.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		return &PipelineMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "derivation_duration_seconds",
		Help:      "Duration of document derivations in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"kind", "outcome"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "derivation_total",
		Help:      "Finished document derivations.",
	}, []string{"kind", "outcome"})
	conversions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "conversion_total",
		Help:      "3D conversion requests by provider.",
	}, []string{"provider", "outcome"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_rejected_total",
		Help:      "Derivation tasks that could not be scheduled.",
	}, []string{"kind", "reason"})
	busy := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dispatch_busy_workers",
		Help:      "Derivation workers currently running a task.",
	})
	reg.MustRegister(duration, total, conversions, rejected, busy)
	return &PipelineMetrics{
		derivationDuration: duration,
		derivationTotal:    total,
		conversionTotal:    conversions,
		dispatchRejected:   rejected,
		dispatchBusy:       busy,
	}
}

// ObserveDerivation records one finished derivation.
func (m *PipelineMetrics) ObserveDerivation(kind, outcome string, duration time.Duration) {
	if m == nil || m.derivationTotal == nil {
		return
	}
	kind = normalizeLabel(kind)
	outcome = normalizeLabel(outcome)
	m.derivationDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	m.derivationTotal.WithLabelValues(kind, outcome).Inc()
}

// IncConversion counts a conversion by the provider that produced it.
func (m *PipelineMetrics) IncConversion(provider, outcome string) {
	if m == nil || m.conversionTotal == nil {
		return
	}
	m.conversionTotal.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncDispatchRejected counts a task refused by the dispatcher.
func (m *PipelineMetrics) IncDispatchRejected(kind, reason string) {
	if m == nil || m.dispatchRejected == nil {
		return
	}
	m.dispatchRejected.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

// SetDispatchBusy records how many derivation workers are running a task.
func (m *PipelineMetrics) SetDispatchBusy(n int64) {
	if m == nil || m.dispatchBusy == nil {
		return
	}
	m.dispatchBusy.Set(float64(n))
}
