package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records reconciliation outcomes for inbound gateway events.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event reconciliation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_kind"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_event_outcomes",
		Help: "Webhook events by reconciliation outcome.",
	}, []string{"event_kind", "outcome"})
	reg.MustRegister(duration, outcomes)
	return &WebhookMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// ObserveDuration records processing time for the named event kind.
func (w *WebhookMetrics) ObserveDuration(eventKind string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventKind)).Observe(duration.Seconds())
}

// IncOutcome increments the outcome counter for the named event kind.
func (w *WebhookMetrics) IncOutcome(eventKind, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(eventKind), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
