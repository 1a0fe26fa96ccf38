package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for provider calls
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeStatus  = "status_error"
	OutcomeNetwork = "network_error"
	OutcomeParse   = "parse_error"
)

// Metrics holds the collectors for outbound provider traffic and tracking
type Metrics struct {
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	Resolutions      *prometheus.CounterVec
	Correlations     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwatch",
			Name:      "provider_requests_total",
			Help:      "Outbound provider requests by provider, call and outcome.",
		}, []string{"provider", "call", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flightwatch",
			Name:      "provider_request_duration_seconds",
			Help:      "Outbound provider request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "call"}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwatch",
			Name:      "resolutions_total",
			Help:      "Cascade resolutions by result kind.",
		}, []string{"kind"}),
		Correlations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flightwatch",
			Name:      "correlations_total",
			Help:      "Position correlation attempts by segment and whether a vector matched.",
		}, []string{"segment", "matched"}),
	}

	if reg != nil {
		reg.MustRegister(m.ProviderRequests, m.ProviderLatency, m.Resolutions, m.Correlations)
	}
	return m
}

// ObserveRequest records one outbound call. Safe on a nil receiver.
func (m *Metrics) ObserveRequest(provider, call, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, call, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider, call).Observe(d.Seconds())
}

// ObserveResolution records the kind of a cascade result. Safe on a nil receiver.
func (m *Metrics) ObserveResolution(kind string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(kind).Inc()
}

// ObserveCorrelation records a correlation attempt. Safe on a nil receiver.
func (m *Metrics) ObserveCorrelation(segmentID string, matched bool) {
	if m == nil {
		return
	}
	label := "false"
	if matched {
		label = "true"
	}
	m.Correlations.WithLabelValues(segmentID, label).Inc()
}
