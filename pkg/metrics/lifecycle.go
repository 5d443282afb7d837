package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics counts soft delete and restore transitions per entity.
type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
}

func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sellerhub_lifecycle_transitions_total",
		Help: "Rows flipped by soft delete or restore, by entity.",
	}, []string{"entity", "action"})
	reg.MustRegister(transitions)
	return &LifecycleMetrics{transitions: transitions}
}

// Add records rows flipped for entity by action ("delete" or "restore").
func (l *LifecycleMetrics) Add(entity, action string, rows int64) {
	if l == nil || l.transitions == nil || rows <= 0 {
		return
	}
	l.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(action)).Add(float64(rows))
}
