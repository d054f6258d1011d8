package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records Ko-fi webhook pipeline outcomes. The unmatched
// counter exists because a payment with no pricing tier is a silent success
// on the wire and would otherwise be invisible.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	unmatched prometheus.Counter
	minted    prometheus.Counter
	activated prometheus.Counter
	duration  prometheus.Histogram
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kofi_webhooks_received_total",
		Help: "Ko-fi webhooks received, by payment type.",
	}, []string{"type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kofi_webhooks_duplicate_total",
		Help: "Ko-fi webhooks skipped as already processed, by dedup key.",
	}, []string{"key"})
	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kofi_orders_unmatched_total",
		Help: "Ko-fi orders recorded without a matching pricing tier.",
	})
	minted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kofi_licenses_minted_total",
		Help: "Licenses minted from Ko-fi payments.",
	})
	activated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kofi_licenses_auto_activated_total",
		Help: "Licenses auto-activated for an existing profile.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kofi_webhook_duration_seconds",
		Help:    "Duration of Ko-fi webhook processing in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(received, duplicate, unmatched, minted, activated, duration)
	return &WebhookMetrics{
		received:  received,
		duplicate: duplicate,
		unmatched: unmatched,
		minted:    minted,
		activated: activated,
		duration:  duration,
	}
}

// IncReceived increments the received counter for the payment type.
func (w *WebhookMetrics) IncReceived(paymentType string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(paymentType)).Inc()
}

// IncDuplicate increments the duplicate counter for the dedup key kind.
func (w *WebhookMetrics) IncDuplicate(key string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncUnmatched increments the no-tier-match counter.
func (w *WebhookMetrics) IncUnmatched() {
	if w == nil || w.unmatched == nil {
		return
	}
	w.unmatched.Inc()
}

// IncMinted increments the minted license counter.
func (w *WebhookMetrics) IncMinted() {
	if w == nil || w.minted == nil {
		return
	}
	w.minted.Inc()
}

// IncAutoActivated increments the auto-activation counter.
func (w *WebhookMetrics) IncAutoActivated() {
	if w == nil || w.activated == nil {
		return
	}
	w.activated.Inc()
}

// ObserveDuration records the processing duration for one webhook.
func (w *WebhookMetrics) ObserveDuration(duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
