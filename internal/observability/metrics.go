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
	// Ingestion metrics
	TradesConsumed  prometheus.Counter
	TradesRejected  *prometheus.CounterVec
	TradesArchived  prometheus.Counter
	WSReconnects    prometheus.Counter
	WSParseFailures prometheus.Counter

	// Aggregation metrics
	CandlesEmitted prometheus.Counter
	CandlesStored  prometheus.Counter
	OpenIntervals  prometheus.Gauge

	// Detection metrics
	AnomaliesDetected *prometheus.CounterVec
	AlertsPublished   prometheus.Counter
	AlertsSuppressed  prometheus.Counter

	// Transport metrics
	KafkaPublishErrors prometheus.Counter
	KafkaFetchErrors   prometheus.Counter

	// Pipeline metrics
	TradeProcessingLatency prometheus.Histogram
	SymbolsTracked         prometheus.Gauge

	// Database metrics
	DBQueryErrors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketpulse"
	}

	return &Metrics{
		TradesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_consumed_total",
			Help:      "Total number of trade events consumed",
		}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_rejected_total",
			Help:      "Total number of trade events rejected by reason",
		}, []string{"reason"}),
		TradesArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "trades_archived_total",
			Help:      "Total number of raw trade events written to the archive",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),
		WSParseFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_parse_failures_total",
			Help:      "Total number of WebSocket payloads that failed to parse",
		}),

		CandlesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "candles_emitted_total",
			Help:      "Total number of closed candles emitted",
		}),
		CandlesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "candles_stored_total",
			Help:      "Total number of candles persisted",
		}),
		OpenIntervals: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "open_intervals",
			Help:      "Number of symbols with an open interval",
		}),

		AnomaliesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalies detected by type and severity",
		}, []string{"type", "severity"}),
		AlertsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_published_total",
			Help:      "Total number of alerts handed to the notifier",
		}),
		AlertsSuppressed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of alerts dropped by rate limiting",
		}),

		KafkaPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish failures",
		}),
		KafkaFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "kafka_fetch_errors_total",
			Help:      "Total number of Kafka fetch failures",
		}),

		TradeProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "trade_processing_latency_seconds",
			Help:      "End-to-end latency of processing one trade event",
			Buckets:   prometheus.DefBuckets,
		}),
		SymbolsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "symbols_tracked",
			Help:      "Number of symbols with live aggregation state",
		}),

		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
