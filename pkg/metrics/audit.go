package metrics

import "github.com/prometheus/client_golang/prometheus"

// AuditMetrics counts audit records written and dropped.
type AuditMetrics struct {
	recorded *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func NewAuditMetrics(reg prometheus.Registerer) *AuditMetrics {
	if reg == nil {
		return &AuditMetrics{}
	}
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_records_total",
		Help: "Activity records persisted.",
	}, []string{"type"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_failures_total",
		Help: "Activity records dropped after an internal error.",
	}, []string{"type"})
	reg.MustRegister(recorded, failures)
	return &AuditMetrics{recorded: recorded, failures: failures}
}

func (m *AuditMetrics) IncRecorded(activityType string) {
	if m == nil || m.recorded == nil {
		return
	}
	m.recorded.WithLabelValues(normalizeLabel(activityType)).Inc()
}

func (m *AuditMetrics) IncFailure(activityType string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(activityType)).Inc()
}
