package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type CorpusMetrics struct {
	service string

	reloadsTotal     *prometheus.CounterVec
	corpusDocuments  prometheus.Gauge
	coreSetSize      prometheus.Gauge
	indexingTotal    *prometheus.CounterVec
	indexingDuration *prometheus.HistogramVec
}

func NewCorpusMetrics(service string, reg prometheus.Registerer) *CorpusMetrics {
	m := &CorpusMetrics{
		service: service,
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "reloads_total",
			Help:      "Corpus reloads by status.",
		}, []string{"service", "status"}),
		corpusDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "corpus",
			Name:        "documents",
			Help:        "Documents in the last successfully loaded corpus.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		coreSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "corpus",
			Name:        "core_set_size",
			Help:        "Documents in the current core set.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		indexingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "indexing_total",
			Help:      "Indexing runs per backend by status.",
		}, []string{"service", "indexer", "status"}),
		indexingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "indexing_duration_seconds",
			Help:      "Indexing duration per backend in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"service", "indexer"}),
	}
	reg.MustRegister(m.reloadsTotal, m.corpusDocuments, m.coreSetSize, m.indexingTotal, m.indexingDuration)
	return m
}

func (m *CorpusMetrics) ObserveCorpusReload(documents, coreDocuments int, err error) {
	if err != nil {
		m.reloadsTotal.WithLabelValues(m.service, "error").Inc()
		return
	}
	m.reloadsTotal.WithLabelValues(m.service, "success").Inc()
	m.corpusDocuments.Set(float64(documents))
	m.coreSetSize.Set(float64(coreDocuments))
}

func (m *CorpusMetrics) ObserveIndexing(indexer string, documents int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.indexingTotal.WithLabelValues(m.service, indexer, status).Inc()
	m.indexingDuration.WithLabelValues(m.service, indexer).Observe(duration.Seconds())
}
