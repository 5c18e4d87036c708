package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Loan outcomes used as the "outcome" label.
const (
	OutcomeOK              = "ok"
	OutcomeOutOfStock      = "out_of_stock"
	OutcomeAlreadyBorrowed = "already_borrowed"
	OutcomeNotFound        = "not_found"
	OutcomeError           = "error"
)

// LoanMetrics records borrow and return activity.
type LoanMetrics struct {
	duration   *prometheus.HistogramVec
	operations *prometheus.CounterVec
}

// NewLoanMetrics registers the loan metrics on the provided registerer.
func NewLoanMetrics(reg prometheus.Registerer) *LoanMetrics {
	if reg == nil {
		return &LoanMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loan_operation_duration_seconds",
		Help:    "Duration of loan operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loan_operations_total",
		Help: "Loan operations by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(duration, operations)
	return &LoanMetrics{
		duration:   duration,
		operations: operations,
	}
}

// Observe records one finished operation.
func (m *LoanMetrics) Observe(operation, outcome string, duration time.Duration) {
	if m == nil || m.duration == nil || m.operations == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
	m.operations.WithLabelValues(operation, normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
