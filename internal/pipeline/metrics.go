package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/family-events/internal/model"
)

// Metrics are the ingestion counters exported on /metrics.
type Metrics struct {
	runs        *prometheus.CounterVec
	records     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	catalogSize prometheus.Gauge
	archived    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "family_events",
			Name:      "runs_total",
			Help:      "Ingestion runs by source and final status.",
		}, []string{"source", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "family_events",
			Name:      "records_total",
			Help:      "Records seen by source and outcome.",
		}, []string{"source", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "family_events",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a refresh run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"source"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "family_events",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per source.",
		}, []string{"source"}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "family_events",
			Name:      "catalog_records",
			Help:      "Records in the catalog after the last write.",
		}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "family_events",
			Name:      "archived_records_total",
			Help:      "Records moved to the archive.",
		}),
	}
	reg.MustRegister(m.runs, m.records, m.duration, m.lastSuccess, m.catalogSize, m.archived)
	return m
}

func (m *Metrics) observeRun(src model.Source, status model.RunStatus, counts model.RunCounts, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := string(src)
	m.runs.WithLabelValues(label, string(status)).Inc()
	m.duration.WithLabelValues(label).Observe(elapsed.Seconds())
	for outcome, n := range map[string]int{
		"candidate": counts.Candidates,
		"produced":  counts.Produced,
		"skipped":   counts.Skipped,
		"excluded":  counts.Excluded,
		"duplicate": counts.Duplicates,
		"defaulted": counts.Defaulted,
		"conflict":  counts.Conflicts,
	} {
		if n > 0 {
			m.records.WithLabelValues(label, outcome).Add(float64(n))
		}
	}
	if status == model.RunStatusComplete {
		m.lastSuccess.WithLabelValues(label).SetToCurrentTime()
		m.catalogSize.Set(float64(counts.Total))
	}
}

func (m *Metrics) observeArchive(counts model.RunCounts) {
	if m == nil {
		return
	}
	m.archived.Add(float64(counts.Archived))
	m.catalogSize.Set(float64(counts.Total))
}
