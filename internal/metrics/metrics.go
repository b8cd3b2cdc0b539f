// Package metrics defines the Prometheus collectors exported by landingboard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes recorded in landingboard_polls_total.
const (
	OutcomeSuccess      = "success"
	OutcomeNetworkError = "network_error"
	OutcomeBodyTooLarge = "body_too_large"
	OutcomeClientError  = "client_error"
	OutcomeParseError   = "parse_error"
	OutcomeAuthError    = "auth_error"
	OutcomePanic        = "panic"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PollsTotal          *prometheus.CounterVec
	PollDuration        *prometheus.HistogramVec
	TokenFetchesTotal   *prometheus.CounterVec
	SnapshotUpdates     *prometheus.CounterVec
	SnapshotLastUpdated *prometheus.GaugeVec
	MailboxDepth        prometheus.Gauge
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landingboard_polls_total",
				Help: "Total number of upstream polls per category and outcome",
			},
			[]string{"category", "outcome"},
		),
		PollDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "landingboard_poll_duration_seconds",
				Help:    "Upstream request duration in seconds per category",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category"},
		),
		TokenFetchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landingboard_token_fetches_total",
				Help: "Total number of token endpoint calls per outcome",
			},
			[]string{"outcome"},
		),
		SnapshotUpdates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "landingboard_snapshot_updates_total",
				Help: "Total number of snapshot field replacements per category",
			},
			[]string{"category"},
		),
		SnapshotLastUpdated: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "landingboard_snapshot_last_update_timestamp",
				Help: "Unix timestamp of the last snapshot write per category",
			},
			[]string{"category"},
		),
		MailboxDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "landingboard_mailbox_depth",
				Help: "Updates waiting for the aggregator",
			},
		),
	}
}

// ObservePoll records one poll attempt.
func (m *Metrics) ObservePoll(category, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(category, outcome).Inc()
	if latency > 0 {
		m.PollDuration.WithLabelValues(category).Observe(latency.Seconds())
	}
}

// ObserveTokenFetch records one call to the token endpoint.
func (m *Metrics) ObserveTokenFetch(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeAuthError
	}
	m.TokenFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSnapshotUpdate records a field replacement at the given time.
func (m *Metrics) ObserveSnapshotUpdate(category string, at time.Time) {
	if m == nil {
		return
	}
	m.SnapshotUpdates.WithLabelValues(category).Inc()
	m.SnapshotLastUpdated.WithLabelValues(category).Set(float64(at.Unix()))
}

// ObserveMailboxDepth records how many updates are still queued.
func (m *Metrics) ObserveMailboxDepth(n int) {
	if m == nil {
		return
	}
	m.MailboxDepth.Set(float64(n))
}
