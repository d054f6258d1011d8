package metrics

import "github.com/prometheus/client_golang/prometheus"

// ValidationMetrics counts license validation outcomes.
type ValidationMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewValidationMetrics registers the validation metrics on the provided registerer.
func NewValidationMetrics(reg prometheus.Registerer) *ValidationMetrics {
	if reg == nil {
		return &ValidationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validations_total",
		Help: "License validation requests, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(outcomes)
	return &ValidationMetrics{outcomes: outcomes}
}

// IncOutcome increments the counter for a validation outcome
// (valid, expired, missing).
func (v *ValidationMetrics) IncOutcome(outcome string) {
	if v == nil || v.outcomes == nil {
		return
	}
	v.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}
