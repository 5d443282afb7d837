package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher batches and per event results.
type OutboxMetrics struct {
	batchDuration prometheus.Histogram
	results       *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sellerhub_outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerhub_outbox_events_total",
		Help: "Outbox events by type and publish result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(batchDuration, results)
	return &OutboxMetrics{
		batchDuration: batchDuration,
		results:       results,
	}
}

func (o *OutboxMetrics) ObserveBatch(elapsed time.Duration) {
	if o == nil || o.batchDuration == nil {
		return
	}
	o.batchDuration.Observe(elapsed.Seconds())
}

// IncResult counts one event outcome: published, retry or dead_letter.
func (o *OutboxMetrics) IncResult(eventType, result string) {
	if o == nil || o.results == nil {
		return
	}
	o.results.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}
