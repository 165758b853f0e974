package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for credential verification.
type Metrics struct {
	// Attempts by outcome kind (verified, not_found, expired, ...)
	Attempts *prometheus.CounterVec

	// Registry stage latencies: launch, search, detail
	StageLatency *prometheus.HistogramVec

	// End-to-end attempt latency
	VerifyLatency prometheus.Histogram

	// Browser sessions currently open
	SessionsInFlight prometheus.Gauge

	// Attempts waiting for a concurrency slot
	QueueDepth prometheus.Gauge

	// Ledger writes that failed after a decision was reached
	LedgerWriteFailures prometheus.Counter

	// Navigation retries
	Retries prometheus.Counter

	// 1 when the registry circuit is open
	BreakerOpen prometheus.Gauge
}

// New creates and registers verification metrics. Call once per process.
func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "medverify_verification_attempts_total",
			Help: "Verification attempts by outcome",
		}, []string{"outcome"}),

		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medverify_registry_stage_duration_seconds",
			Help:    "Duration of registry session stages",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"stage"}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "medverify_verification_duration_seconds",
			Help:    "Duration of a full verification attempt including the ledger write",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		}),

		SessionsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "medverify_registry_sessions_in_flight",
			Help: "Automated registry sessions currently open",
		}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "medverify_verification_queue_depth",
			Help: "Attempts waiting for a registry concurrency slot",
		}),

		LedgerWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medverify_ledger_write_failures_total",
			Help: "Ledger writes that failed after a decision was reached",
		}),

		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "medverify_registry_retries_total",
			Help: "Registry navigation retries",
		}),

		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "medverify_registry_breaker_open",
			Help: "1 when the registry circuit breaker is open",
		}),
	}
}

// IncrementOutcome records a verification outcome.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Attempts.WithLabelValues(outcome).Inc()
	}
}

// ObserveVerifyLatency records the total attempt duration.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

// IncrementLedgerWriteFailure counts a failed ledger write.
func (m *Metrics) IncrementLedgerWriteFailure() {
	if m != nil {
		m.LedgerWriteFailures.Inc()
	}
}

// QueueEntered and QueueLeft track attempts waiting for a slot.
func (m *Metrics) QueueEntered() {
	if m != nil {
		m.QueueDepth.Inc()
	}
}

func (m *Metrics) QueueLeft() {
	if m != nil {
		m.QueueDepth.Dec()
	}
}

// The methods below satisfy registry.Observer.

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) SessionStarted() {
	if m != nil {
		m.SessionsInFlight.Inc()
	}
}

func (m *Metrics) SessionEnded() {
	if m != nil {
		m.SessionsInFlight.Dec()
	}
}

func (m *Metrics) BreakerChanged(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) RetryAttempted() {
	if m != nil {
		m.Retries.Inc()
	}
}
