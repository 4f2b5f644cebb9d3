package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Publish outcomes.
const (
	PublishCreated  = "created"
	PublishReplayed = "replayed"
	PublishInvalid  = "invalid"
	PublishFailed   = "failed"
	PublishInFlight = "in_flight"
)

// PublishMetrics counts newsletter publish requests by outcome.
type PublishMetrics struct {
	requests *prometheus.CounterVec
}

// NewPublishMetrics registers the publish metrics on the provided registerer.
func NewPublishMetrics(reg prometheus.Registerer) *PublishMetrics {
	if reg == nil {
		return &PublishMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmaven_publish_requests_total",
		Help: "Newsletter publish requests by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(requests)
	return &PublishMetrics{requests: requests}
}

// IncOutcome increments the counter for a publish outcome.
func (p *PublishMetrics) IncOutcome(outcome string) {
	if p == nil || p.requests == nil {
		return
	}
	p.requests.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
