package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks resolver activity. A nil *Metrics records nothing.
type Metrics struct {
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	Outcomes           *prometheus.CounterVec
	Attempts           prometheus.Counter
	ResolutionDuration prometheus.Histogram
}

// Outcome label values.
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeFailed    = "failed"
)

// NewMetrics creates the resolver collectors and registers them with reg
// when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evorao",
			Subsystem: "resolver",
			Name:      "cache_hits_total",
			Help:      "Labels answered from the resolution cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evorao",
			Subsystem: "resolver",
			Name:      "cache_misses_total",
			Help:      "Labels sent to the taxonomy authority.",
		}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evorao",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Authority resolutions by outcome.",
		}, []string{"outcome"}),
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evorao",
			Subsystem: "resolver",
			Name:      "attempts_total",
			Help:      "Authority calls including retries.",
		}),
		ResolutionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evorao",
			Subsystem: "resolver",
			Name:      "resolution_duration_seconds",
			Help:      "Time to resolve one label, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.CacheHits, m.CacheMisses, m.Outcomes, m.Attempts, m.ResolutionDuration)
	}
	return m
}

func (m *Metrics) cacheHits(n int) {
	if m != nil {
		m.CacheHits.Add(float64(n))
	}
}

func (m *Metrics) cacheMisses(n int) {
	if m != nil {
		m.CacheMisses.Add(float64(n))
	}
}

func (m *Metrics) observe(o outcome) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(o.kind()).Inc()
	m.Attempts.Add(float64(o.attempts))
	m.ResolutionDuration.Observe(o.duration.Seconds())
}
