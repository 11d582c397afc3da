// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Trade metrics
	SwapsParsed    *prometheus.CounterVec
	SwapsDiscarded *prometheus.CounterVec
	CandleUpdates  *prometheus.CounterVec

	// Market lifecycle metrics
	MarketsTracked   prometheus.Gauge
	MarketsLive      prometheus.Gauge
	MarketsFailed    prometheus.Counter
	BackfillDuration prometheus.Histogram
	BackfillSwaps    prometheus.Histogram

	// Live feed metrics
	LiveNotifications  prometheus.Counter
	LiveDuplicates     prometheus.Counter
	LiveFetchErrors    prometheus.Counter

	// Solana client metrics
	RPCCallLatency *prometheus.HistogramVec
	WSReconnects   prometheus.Counter

	// Watchlist metrics
	DetectionsConsumed prometheus.Counter
	MintsExtracted     *prometheus.CounterVec

	// Storage metrics
	StoreWriteDuration *prometheus.HistogramVec
	StoreWriteErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curvewatch"
	}

	return &Metrics{
		SwapsParsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "swaps_parsed_total",
			Help:      "Total number of swaps parsed by source phase",
		}, []string{"phase"}),
		SwapsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "swaps_discarded_total",
			Help:      "Total number of transactions discarded by reason",
		}, []string{"reason"}),
		CandleUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "candles",
			Name:      "updates_total",
			Help:      "Total number of candle updates by timeframe",
		}, []string{"timeframe"}),

		MarketsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "tracked",
			Help:      "Number of markets currently tracked",
		}),
		MarketsLive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "live",
			Help:      "Number of markets in the LIVE state",
		}),
		MarketsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "failed_total",
			Help:      "Total number of markets stopped by a fatal error",
		}),
		BackfillDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "duration_seconds",
			Help:      "Historical backfill duration per market in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		BackfillSwaps: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "swaps",
			Help:      "Number of swaps recovered per backfill",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000},
		}),

		LiveNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "notifications_total",
			Help:      "Total number of log notifications received",
		}),
		LiveDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "duplicates_total",
			Help:      "Total number of notifications dropped by signature dedup",
		}),
		LiveFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "fetch_errors_total",
			Help:      "Total number of live transaction fetches that failed",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),

		DetectionsConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "detections_consumed_total",
			Help:      "Total number of detection messages consumed from the stream",
		}),
		MintsExtracted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watchlist",
			Name:      "mints_extracted_total",
			Help:      "Total number of mint addresses extracted by form",
		}, []string{"form"}),

		StoreWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "write_duration_seconds",
			Help:      "Archive write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "write_errors_total",
			Help:      "Total number of archive write errors",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSwapParsed increments the swaps parsed counter for a phase
// ("historical" or "live").
func RecordSwapParsed(phase string) {
	DefaultMetrics.SwapsParsed.WithLabelValues(phase).Inc()
}

// RecordSwapDiscarded increments the discard counter for a reason.
func RecordSwapDiscarded(reason string) {
	DefaultMetrics.SwapsDiscarded.WithLabelValues(reason).Inc()
}

// RecordCandleUpdate increments the candle update counter for a timeframe.
func RecordCandleUpdate(timeframe string) {
	DefaultMetrics.CandleUpdates.WithLabelValues(timeframe).Inc()
}

// RecordBackfill records a completed backfill.
func RecordBackfill(durationSeconds float64, swaps int) {
	DefaultMetrics.BackfillDuration.Observe(durationSeconds)
	DefaultMetrics.BackfillSwaps.Observe(float64(swaps))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordStoreWrite records archive write metrics.
func RecordStoreWrite(store, operation string, seconds float64, err error) {
	DefaultMetrics.StoreWriteDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreWriteErrors.WithLabelValues(store, operation).Inc()
	}
}
