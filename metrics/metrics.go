// Package metrics exposes Prometheus collectors for the escalation engine and
// the notification dispatcher. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors
type Metrics struct {
	PassesTotal        *prometheus.CounterVec
	PassDuration       prometheus.Histogram
	EscalatedTotal     *prometheus.CounterVec
	FailuresTotal      prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_escalation_passes_total",
			Help: "Total number of escalation scan passes",
		}, []string{"outcome"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grievance_escalation_pass_duration_seconds",
			Help:    "Duration of escalation scan passes",
			Buckets: prometheus.DefBuckets,
		}),
		EscalatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_complaints_escalated_total",
			Help: "Total number of complaint escalations",
		}, []string{"mode"}),
		FailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grievance_escalation_failures_total",
			Help: "Total number of complaints that failed to escalate during a pass",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grievance_notifications_total",
			Help: "Total number of notification attempts",
		}, []string{"kind", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PassesTotal,
			m.PassDuration,
			m.EscalatedTotal,
			m.FailuresTotal,
			m.NotificationsTotal,
		)
	}
	return m
}

// ObservePass records one finished pass
func (m *Metrics) ObservePass(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PassesTotal.WithLabelValues(outcome).Inc()
	m.PassDuration.Observe(d.Seconds())
}

// IncEscalated counts one escalation; mode is "auto" or "manual"
func (m *Metrics) IncEscalated(mode string) {
	if m == nil {
		return
	}
	m.EscalatedTotal.WithLabelValues(mode).Inc()
}

// IncFailure counts one per-complaint failure
func (m *Metrics) IncFailure() {
	if m == nil {
		return
	}
	m.FailuresTotal.Inc()
}

// IncNotification counts one notification attempt
func (m *Metrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind, outcome).Inc()
}
