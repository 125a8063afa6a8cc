// Package metrics counts client-side complaint activity on a private
// Prometheus registry so a run can report what it did.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Outcome labels for transition attempts.
const (
	OutcomeApplied          = "applied"
	OutcomeRejectedLocally  = "rejected_local"
	OutcomeRejectedRemotely = "rejected_remote"
)

// Metrics holds the collectors for one client run.
type Metrics struct {
	registry *prometheus.Registry

	ComplaintsSubmitted *prometheus.CounterVec
	SubmissionsBlocked  *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	SessionsExpired     prometheus.Counter
	OperationDuration   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		ComplaintsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dcms_complaints_submitted_total",
			Help: "Complaints accepted by the backend, by category",
		}, []string{"category"}),
		SubmissionsBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dcms_submissions_blocked_total",
			Help: "Submissions stopped before reaching the backend, by fault kind",
		}, []string{"kind"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dcms_status_transitions_total",
			Help: "Status change attempts, by source status, target status and outcome",
		}, []string{"from", "to", "outcome"}),
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcms_sessions_expired_total",
			Help: "Sessions forced back to unauthenticated",
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dcms_operation_duration_seconds",
			Help:    "Duration of service operations including backend round trips",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15},
		}, []string{"op"}),
	}
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOperation records the duration of op. Call with time.Now() at the start.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CountSubmission records an accepted complaint.
func (m *Metrics) CountSubmission(category string) {
	if m == nil {
		return
	}
	m.ComplaintsSubmitted.WithLabelValues(category).Inc()
}

// CountBlocked records a submission stopped locally or rejected by the backend.
func (m *Metrics) CountBlocked(kind string) {
	if m == nil {
		return
	}
	m.SubmissionsBlocked.WithLabelValues(kind).Inc()
}

// CountTransition records one status change attempt.
func (m *Metrics) CountTransition(from, to, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to, outcome).Inc()
}

// CountExpiry records a forced logout.
func (m *Metrics) CountExpiry() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// WriteText writes the registry in Prometheus text exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encode metric family %s: %w", family.GetName(), err)
		}
	}
	return nil
}
