package recurrence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure reasons recorded on the failures counter.
const (
	reasonFrameMissing = "frame_missing"
	reasonLoadFrame    = "load_frame"
	reasonMaterialize  = "materialize"
	reasonList         = "list_due_links"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	Occurrences  prometheus.Counter
	Conflicts    prometheus.Counter
	Failures     *prometheus.CounterVec
	PassDuration prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Occurrences: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "recurrence",
			Name:      "occurrences_materialized_total",
			Help:      "Recurring expense occurrences created.",
		}),
		Conflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "recurrence",
			Name:      "link_conflicts_total",
			Help:      "Materializations abandoned because the link was already closed.",
		}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "recurrence",
			Name:      "failures_total",
			Help:      "Catch-up failures by reason.",
		}, []string{"reason"}),
		PassDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "recurrence",
			Name:      "catchup_duration_seconds",
			Help:      "Duration of one catch-up pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
