package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds all application metrics
type Metrics struct {
	// Provisioning
	ProvisioningOperations *prometheus.CounterVec
	Compensations          *prometheus.CounterVec
	OrphanedIdentities     *prometheus.CounterVec

	// Supabase calls
	ExternalRequests *prometheus.CounterVec
	ExternalLatency  *prometheus.HistogramVec

	// Reconciliation report
	ReconcileRuns               *prometheus.CounterVec
	ReconcileDuration           prometheus.Histogram
	ReconcileOrphanedIdentities prometheus.Gauge
	ReconcileOrphanedProfiles   prometheus.Gauge

	// Events
	EventsPublished *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them on reg.
// A nil reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProvisioningOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "operations_total",
			Help:      "Doctor account provisioning operations by outcome",
		}, []string{"operation", "outcome"}),
		Compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "compensations_total",
			Help:      "Compensating identity deletes after a failed profile write",
		}, []string{"outcome"}),
		OrphanedIdentities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provisioning",
			Name:      "orphaned_identities_total",
			Help:      "Identities left without a profile row, needing manual reconciliation",
		}, []string{"reason"}),

		ExternalRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "requests_total",
			Help:      "Requests sent to the hosted backend",
		}, []string{"operation", "status"}),
		ExternalLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "supabase",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests sent to the hosted backend",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),

		ReconcileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconciliation report runs by outcome",
		}, []string{"outcome"}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Time spent building a reconciliation report",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconcileOrphanedIdentities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "orphaned_identities",
			Help:      "Identities without a profile row at the last run",
		}),
		ReconcileOrphanedProfiles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "orphaned_profiles",
			Help:      "Profile rows without an identity at the last run",
		}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to the broker by outcome",
		}, []string{"event_type", "outcome"}),
	}
}

// NewNop returns metrics registered on a throwaway registry.
func NewNop() *Metrics {
	return NewMetrics("memora", prometheus.NewRegistry())
}
