package quota

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for admission decisions.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	quotaChecks     *prometheus.CounterVec
	rateLimitChecks *prometheus.CounterVec
	windowResets    prometheus.Counter
	counterUpdates  *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
}

// NewMetrics registers the quota collectors with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		quotaChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_quota_checks_total",
				Help: "Total number of quota admission checks",
			},
			[]string{"resource", "result"},
		),

		rateLimitChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_quota_rate_limit_checks_total",
				Help: "Total number of API rate-limit checks",
			},
			[]string{"result"},
		),

		windowResets: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "opsdesk_quota_rate_limit_window_resets_total",
				Help: "Total number of API rate-limit window rollovers applied",
			},
		),

		counterUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_quota_counter_updates_total",
				Help: "Total number of cached counter updates",
			},
			[]string{"resource"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsdesk_quota_check_duration_seconds",
				Help:    "Duration of quota and rate-limit checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			},
			[]string{"operation"},
		),
	}
}

// RecordQuotaCheck records the outcome of a quota check.
func (m *Metrics) RecordQuotaCheck(res Resource, allowed bool) {
	if m == nil {
		return
	}
	m.quotaChecks.WithLabelValues(string(res), resultLabel(allowed)).Inc()
}

// RecordRateLimitCheck records the outcome of a rate-limit check.
func (m *Metrics) RecordRateLimitCheck(allowed bool) {
	if m == nil {
		return
	}
	m.rateLimitChecks.WithLabelValues(resultLabel(allowed)).Inc()
}

// RecordWindowReset records an applied window rollover.
func (m *Metrics) RecordWindowReset() {
	if m == nil {
		return
	}
	m.windowResets.Inc()
}

// RecordCounterUpdate records an update of a cached counter.
func (m *Metrics) RecordCounterUpdate(res Resource) {
	if m == nil {
		return
	}
	m.counterUpdates.WithLabelValues(string(res)).Inc()
}

// ObserveDuration records how long an operation took since start.
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
