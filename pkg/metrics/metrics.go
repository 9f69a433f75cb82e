// Package metrics holds the prometheus collectors of matchnode.
//
// All methods are safe on a nil *Metrics, so components built without
// metrics need no guards.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matchnode"

// Metrics contains all prometheus collectors of the node.
type Metrics struct {
	// Contract calls
	Calls             *prometheus.CounterVec
	StageTransitions  *prometheus.CounterVec
	Faults            *prometheus.CounterVec
	ConfirmationWait  *prometheus.HistogramVec
	AccountRetries    prometheus.Counter
	ResourceFeeStroop prometheus.Histogram

	// Session discovery
	DiscoveryPasses   *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	OpenSessions      prometheus.Gauge
	KnownSessions     prometheus.Gauge
	HighWaterMark     prometheus.Gauge

	// Feed
	FeedClients  prometheus.Gauge
	FeedMessages prometheus.Counter
}

// New registers the collectors on the default registerer.
func New() *Metrics {
	return NewWithRegistry(nil)
}

// NewWithRegistry registers the collectors on registry. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_calls_total",
			Help:      "Contract calls by function, mode and outcome",
		}, []string{"function", "mode", "outcome"}),
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_stage_transitions_total",
			Help:      "Transaction lifecycle stages reached",
		}, []string{"stage"}),
		Faults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_faults_total",
			Help:      "Contract call faults by kind",
		}, []string{"kind"}),
		ConfirmationWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for the ledger to advance after submission",
			Buckets:   []float64{1, 2, 3, 5, 8, 12, 16},
		}, []string{"confirmed"}),
		AccountRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_fetch_retries_total",
			Help:      "Retried source account lookups",
		}),
		ResourceFeeStroop: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resource_fee_stroops",
			Help:      "Minimum resource fee reported by simulation",
			Buckets:   prometheus.ExponentialBuckets(10_000, 2, 10),
		}),
		DiscoveryPasses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_passes_total",
			Help:      "Session discovery passes by result",
		}, []string{"result"}),
		DiscoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_pass_duration_seconds",
			Help:      "Duration of completed discovery passes",
			Buckets:   prometheus.DefBuckets,
		}),
		OpenSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_sessions",
			Help:      "Sessions found Waiting or Active by the latest pass",
		}),
		KnownSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_sessions",
			Help:      "Size of the known session set",
		}),
		HighWaterMark: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_high_water_mark",
			Help:      "Largest session id observed",
		}),
		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected websocket feed clients",
		}),
		FeedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_sent_total",
			Help:      "Snapshots written to feed clients",
		}),
	}
}

func (m *Metrics) RecordCall(function, mode, outcome string) {
	if m == nil {
		return
	}
	m.Calls.WithLabelValues(function, mode, outcome).Inc()
}

func (m *Metrics) RecordStage(stage string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordFault(kind string) {
	if m == nil {
		return
	}
	m.Faults.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordConfirmation(wait time.Duration, confirmed bool) {
	if m == nil {
		return
	}
	label := "false"
	if confirmed {
		label = "true"
	}
	m.ConfirmationWait.WithLabelValues(label).Observe(wait.Seconds())
}

func (m *Metrics) RecordAccountRetry() {
	if m == nil {
		return
	}
	m.AccountRetries.Inc()
}

func (m *Metrics) RecordResourceFee(stroops int64) {
	if m == nil {
		return
	}
	m.ResourceFeeStroop.Observe(float64(stroops))
}

// RecordDiscoveryPass records a pass. result is "completed", "skipped" or "stale".
func (m *Metrics) RecordDiscoveryPass(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.DiscoveryPasses.WithLabelValues(result).Inc()
	if result == "completed" {
		m.DiscoveryDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) SetDiscoveryState(open, known int, highWaterMark uint32) {
	if m == nil {
		return
	}
	m.OpenSessions.Set(float64(open))
	m.KnownSessions.Set(float64(known))
	m.HighWaterMark.Set(float64(highWaterMark))
}

func (m *Metrics) FeedClientConnected() {
	if m == nil {
		return
	}
	m.FeedClients.Inc()
}

func (m *Metrics) FeedClientDisconnected() {
	if m == nil {
		return
	}
	m.FeedClients.Dec()
}

func (m *Metrics) RecordFeedMessage() {
	if m == nil {
		return
	}
	m.FeedMessages.Inc()
}
