package comparison

import "github.com/prometheus/client_golang/prometheus"

// Metric names as constants for consistency.
const (
	MetricComparisonsRecorded = "comparisons_recorded_total"
	MetricRatingConflicts     = "rating_update_conflicts_total"
)

// Metrics contains Prometheus metrics for the comparison recorder.
// All operations are thread-safe.
type Metrics struct {
	recorded  prometheus.Counter
	conflicts prometheus.Counter
}

// NewMetrics creates a new Metrics instance. The collectors are not
// registered; call Register with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricComparisonsRecorded,
			Help: "Total number of comparisons recorded in the ledger",
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricRatingConflicts,
			Help: "Total number of rating updates that lost a concurrency race and were retried",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.recorded, m.conflicts} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRecorded increments the recorded-comparisons counter.
func (m *Metrics) IncRecorded() { m.recorded.Inc() }

// IncConflicts increments the conflict-retry counter.
func (m *Metrics) IncConflicts() { m.conflicts.Inc() }
