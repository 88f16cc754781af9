// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sync metrics
	TransactionsFetched   prometheus.Counter
	TokenTransfersFetched prometheus.Counter
	EventsBuilt           prometheus.Counter
	EventsStored          prometheus.Counter
	SyncErrors            *prometheus.CounterVec

	// Classification metrics
	EventsClassified *prometheus.CounterVec
	SwapsDetected    prometheus.Counter
	UnknownEvents    prometheus.Counter
	HighestLevelSeen prometheus.Gauge

	// Engine metrics
	ReportsGenerated *prometheus.CounterVec
	EngineDuration   *prometheus.HistogramVec
	DisposalsEmitted *prometheus.CounterVec
	IncomeEmitted    *prometheus.CounterVec

	// Latency metrics
	TzktCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSync   prometheus.Gauge
	LastSuccessfulReport prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tezos_tax_lab"
	}

	return &Metrics{
		// Sync metrics
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "transactions_fetched_total",
			Help:      "Total number of XTZ transactions fetched from the indexer",
		}),
		TokenTransfersFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "token_transfers_fetched_total",
			Help:      "Total number of token transfers fetched from the indexer",
		}),
		EventsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_built_total",
			Help:      "Total number of transfer events built from raw rows",
		}),
		EventsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_stored_total",
			Help:      "Total number of transfer events stored to database",
		}),
		SyncErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Total number of sync errors by stage",
		}, []string{"stage"}),

		// Classification metrics
		EventsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "events_classified_total",
			Help:      "Total number of events classified by class",
		}, []string{"class"}),
		SwapsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "swaps_detected_total",
			Help:      "Total number of operation groups matched as swaps",
		}),
		UnknownEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "unknown_events_total",
			Help:      "Total number of events that degraded to unknown",
		}),
		HighestLevelSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "highest_level_seen",
			Help:      "Highest Tezos block level seen",
		}),

		// Engine metrics
		ReportsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated by jurisdiction",
		}, []string{"jurisdiction"}),
		EngineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Engine run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"jurisdiction"}),
		DisposalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "disposals_emitted_total",
			Help:      "Total number of disposal rows emitted by jurisdiction",
		}, []string{"jurisdiction"}),
		IncomeEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "income_events_emitted_total",
			Help:      "Total number of income rows emitted by jurisdiction",
		}, []string{"jurisdiction"}),

		// Latency metrics
		TzktCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tzkt",
			Name:      "call_latency_seconds",
			Help:      "TzKT API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSync: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sync_timestamp",
			Help:      "Unix timestamp of last successful wallet sync",
		}),
		LastSuccessfulReport: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_report_timestamp",
			Help:      "Unix timestamp of last successful report run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventsStored adds to the stored events counter.
func RecordEventsStored(n int) {
	DefaultMetrics.EventsStored.Add(float64(n))
}

// RecordClassification increments the per-class counter and the unknown
// counter when applicable.
func RecordClassification(class string) {
	DefaultMetrics.EventsClassified.WithLabelValues(class).Inc()
	if class == "unknown" {
		DefaultMetrics.UnknownEvents.Inc()
	}
}

// RecordSyncError records a sync failure by stage.
func RecordSyncError(stage string) {
	DefaultMetrics.SyncErrors.WithLabelValues(stage).Inc()
}

// RecordReport records one completed engine run.
func RecordReport(jurisdiction string, disposals, income int, durationSeconds float64) {
	DefaultMetrics.ReportsGenerated.WithLabelValues(jurisdiction).Inc()
	DefaultMetrics.DisposalsEmitted.WithLabelValues(jurisdiction).Add(float64(disposals))
	DefaultMetrics.IncomeEmitted.WithLabelValues(jurisdiction).Add(float64(income))
	DefaultMetrics.EngineDuration.WithLabelValues(jurisdiction).Observe(durationSeconds)
}

// RecordTzktCall records TzKT API call latency.
func RecordTzktCall(endpoint string, seconds float64) {
	DefaultMetrics.TzktCallLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// UpdateHighestLevel updates the highest level seen gauge.
func UpdateHighestLevel(level int64) {
	DefaultMetrics.HighestLevelSeen.Set(float64(level))
}
