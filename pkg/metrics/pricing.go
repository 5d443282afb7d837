package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics records cart reconciliation outcomes.
type PricingMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sellerhub_cart_pricing_duration_seconds",
		Help:    "Duration of cart pricing reconciliations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerhub_cart_pricing_total",
		Help: "Cart pricing reconciliations by mode and result.",
	}, []string{"mode", "result"})
	reg.MustRegister(duration, outcomes)
	return &PricingMetrics{
		duration: duration,
		outcomes: outcomes,
	}
}

// Observe records one reconciliation. result is "ok" or the error code.
func (p *PricingMetrics) Observe(mode, result string, elapsed time.Duration) {
	if p == nil || p.outcomes == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(mode)).Observe(elapsed.Seconds())
	p.outcomes.WithLabelValues(normalizeLabel(mode), normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
