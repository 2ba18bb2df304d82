package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and aggregation jobs.
type Metrics struct {
	RecordsConsumed prometheus.Counter
	RecordsAccepted prometheus.Counter
	RecordsRejected *prometheus.CounterVec // label: reason
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Aggregation job metrics.
	ReportsPublished  prometheus.Counter
	StatisticsUpserts prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "road_metrics",
			Name:      "records_consumed_total",
			Help:      "Total raw defect records read from all ingestion sources.",
		}),
		RecordsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "road_metrics",
			Name:      "records_accepted_total",
			Help:      "Total records that passed validation and were persisted.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "road_metrics",
			Name:      "records_rejected_total",
			Help:      "Total records refused by validation, by reason code.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "road_metrics",
			Name:      "pipeline_running",
			Help:      "1 when the streaming ingestion pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "road_metrics",
			Name:      "batch_size",
			Help:      "Number of records per ingested batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "road_metrics",
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-validate-persist cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "road_metrics",
			Name:      "reports_published_total",
			Help:      "Total aggregation reports published to the report topic.",
		}),
		StatisticsUpserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "road_metrics",
			Name:      "statistics_upserts_total",
			Help:      "Total daily statistics rows upserted.",
		}),
	}

	prometheus.MustRegister(
		m.RecordsConsumed,
		m.RecordsAccepted,
		m.RecordsRejected,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ReportsPublished,
		m.StatisticsUpserts,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsConsumed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "road_metrics", Name: "records_consumed_total"}),
		RecordsAccepted:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "road_metrics", Name: "records_accepted_total"}),
		RecordsRejected:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "road_metrics", Name: "records_rejected_total"}, []string{"reason"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "road_metrics", Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "road_metrics", Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "road_metrics", Name: "batch_processing_duration_seconds"}),
		ReportsPublished:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "road_metrics", Name: "reports_published_total"}),
		StatisticsUpserts:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "road_metrics", Name: "statistics_upserts_total"}),
	}
}
