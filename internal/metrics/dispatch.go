package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics instruments match creation.
type DispatchMetrics struct {
	duration prometheus.Histogram
	matches  *prometheus.CounterVec
	failures prometheus.Counter
}

// NewDispatchMetrics creates and registers the dispatcher instruments.
// A nil registerer yields unregistered (still usable) instruments.
func NewDispatchMetrics(reg prometheus.Registerer) (*DispatchMetrics, error) {
	m := &DispatchMetrics{
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_dispatch_seconds",
			Help:      "Time spent loading, scoring, persisting and delivering one match.",
			Buckets:   prometheus.DefBuckets,
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Matches persisted, by delivery outcome and score source.",
		}, []string{"delivery", "scored_by"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_dispatch_failures_total",
			Help:      "Match creations aborted by load or persistence errors.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.duration, m.matches, m.failures} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Observe records a completed dispatch.
func (m *DispatchMetrics) Observe(elapsed time.Duration, delivery, scoredBy string) {
	if m == nil {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	m.matches.WithLabelValues(delivery, scoredBy).Inc()
}

// Failed records an aborted dispatch.
func (m *DispatchMetrics) Failed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
