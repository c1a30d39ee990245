package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records ingestion outcomes. A nil *Metrics records nothing.
type Metrics struct {
	runs     *prometheus.CounterVec
	upserted *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the ingestion collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dayboard",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by source and terminal status",
		}, []string{"source", "status"}),
		upserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dayboard",
			Subsystem: "ingest",
			Name:      "rows_upserted_total",
			Help:      "Snapshot rows written by source",
		}, []string{"source"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dayboard",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "A histogram for ingestion run time (s)",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

func (m *Metrics) observe(s Summary) {
	if m == nil {
		return
	}
	source := string(s.Source)
	m.runs.WithLabelValues(source, string(s.Status)).Inc()
	m.upserted.WithLabelValues(source).Add(float64(s.Upserted))
	m.duration.WithLabelValues(source).Observe(s.Duration.Seconds())
}
