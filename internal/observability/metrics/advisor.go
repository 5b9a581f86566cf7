package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// AdvisorMetrics records turn, retrieval and backend resilience measurements.
type AdvisorMetrics struct {
	service string

	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	adapterResults   *prometheus.HistogramVec
	adapterFailures  *prometheus.CounterVec
	adapterDuration  *prometheus.HistogramVec
	fusedDocuments   *prometheus.HistogramVec
	droppedRedundant *prometheus.CounterVec
	degradedTurns    *prometheus.CounterVec
	profileCaptures  *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func NewAdvisorMetrics(service string, reg prometheus.Registerer) *AdvisorMetrics {
	m := &AdvisorMetrics{
		service: service,
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "total",
			Help:      "Processed turns by status and resulting goal.",
		}, []string{"service", "status", "goal"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "duration_seconds",
			Help:      "Turn duration in seconds by status.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}, []string{"service", "status"}),
		adapterResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "adapter_results",
			Help:      "Documents returned per adapter call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}, []string{"service", "adapter"}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "adapter_failures_total",
			Help:      "Failed adapter calls.",
		}, []string{"service", "adapter"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "adapter_duration_seconds",
			Help:      "Adapter call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "adapter"}),
		fusedDocuments: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "context_documents",
			Help:      "Documents per turn after fusion and after the redundancy filter.",
			Buckets:   []float64{0, 2, 4, 6, 8, 10, 12, 15, 20},
		}, []string{"service", "stage"}),
		droppedRedundant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "redundant_dropped_total",
			Help:      "Documents removed as near-duplicates.",
		}, []string{"service"}),
		degradedTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "all_adapters_failed_total",
			Help:      "Turns answered with the core set only because every adapter failed.",
		}, []string{"service"}),
		profileCaptures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "turn",
			Name:      "profile_markers_total",
			Help:      "Generated replies by whether they carried a profile marker.",
		}, []string{"service", "captured"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "retries_total",
			Help:      "Retried backend calls by operation.",
		}, []string{"service", "operation"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "breaker_open",
			Help:      "1 when the circuit breaker of an operation is open, 0.5 half-open, 0 closed.",
		}, []string{"service", "operation"}),
	}

	reg.MustRegister(
		m.turnsTotal,
		m.turnDuration,
		m.adapterResults,
		m.adapterFailures,
		m.adapterDuration,
		m.fusedDocuments,
		m.droppedRedundant,
		m.degradedTurns,
		m.profileCaptures,
		m.retriesTotal,
		m.breakerState,
	)
	return m
}

func (m *AdvisorMetrics) ObserveFusion(report domain.FusionReport, filtered int) {
	for _, o := range report.Outcomes {
		m.adapterDuration.WithLabelValues(m.service, o.Adapter).Observe(o.Duration.Seconds())
		if o.Failed() {
			m.adapterFailures.WithLabelValues(m.service, o.Adapter).Inc()
			continue
		}
		m.adapterResults.WithLabelValues(m.service, o.Adapter).Observe(float64(o.Results))
	}
	if report.AllAdaptersFailed() {
		m.degradedTurns.WithLabelValues(m.service).Inc()
	}
	m.fusedDocuments.WithLabelValues(m.service, "fused").Observe(float64(report.Fused))
	m.fusedDocuments.WithLabelValues(m.service, "filtered").Observe(float64(filtered))
	if dropped := report.Fused - filtered; dropped > 0 {
		m.droppedRedundant.WithLabelValues(m.service).Add(float64(dropped))
	}
}

func (m *AdvisorMetrics) ObserveTurn(status string, goal domain.Goal, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.turnsTotal.WithLabelValues(m.service, status, string(goal)).Inc()
	m.turnDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *AdvisorMetrics) ObserveProfileCapture(captured bool) {
	label := "false"
	if captured {
		label = "true"
	}
	m.profileCaptures.WithLabelValues(m.service, label).Inc()
}

func (m *AdvisorMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *AdvisorMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "open":
		value = 1
	case "half-open":
		value = 0.5
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
