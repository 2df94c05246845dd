package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for EventsDropped
const (
	ReasonNotFailure = "not_failure"
	ReasonMalformed  = "malformed"
	ReasonDebounced  = "debounced"
)

var (
	// Capture metrics
	EventsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "failwatch_events_received_total",
			Help: "Total number of request events delivered by the feed",
		},
	)

	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failwatch_events_dropped_total",
			Help: "Events filtered out before reaching the ledger, by reason",
		},
		[]string{"reason"},
	)

	FailuresCaptured = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "failwatch_failures_captured_total",
			Help: "Admitted failure signals recorded in the ledger",
		},
	)

	// Ledger metrics
	LedgerRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "failwatch_ledger_records",
			Help: "Current number of failure records in the ledger",
		},
	)

	LedgerEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "failwatch_ledger_evictions_total",
			Help: "Records evicted because the ledger was over capacity",
		},
	)

	LedgerPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "failwatch_ledger_pruned_total",
			Help: "Records removed by prune commands",
		},
	)

	DebounceEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "failwatch_debounce_entries",
			Help: "Current number of remembered (host, error) debounce keys",
		},
	)

	// Persistence metrics
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failwatch_store_operations_total",
			Help: "Persistence operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "failwatch_store_duration_seconds",
			Help:    "Persistence operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Reconciliation metrics
	SubmitResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failwatch_submit_results_total",
			Help: "Per-domain allow-list submission outcomes",
		},
		[]string{"outcome"},
	)

	SubmitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "failwatch_submit_duration_seconds",
			Help:    "Duration of a whole submission batch in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "failwatch_api_requests_total",
			Help: "Total number of API requests by command and status",
		},
		[]string{"command", "status"},
	)

	WatchSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "failwatch_watch_subscribers",
			Help: "Connected change-notification clients",
		},
	)
)

func init() {
	prometheus.MustRegister(EventsReceived)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(FailuresCaptured)
	prometheus.MustRegister(LedgerRecords)
	prometheus.MustRegister(LedgerEvictions)
	prometheus.MustRegister(LedgerPruned)
	prometheus.MustRegister(DebounceEntries)
	prometheus.MustRegister(StoreOperations)
	prometheus.MustRegister(StoreDuration)
	prometheus.MustRegister(SubmitResults)
	prometheus.MustRegister(SubmitDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(WatchSubscribers)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
