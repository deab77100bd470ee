package driver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xdao.co/in3/ctxtree"
	"xdao.co/in3/rpcerr"
)

// Metrics records driver activity. A nil *Metrics records nothing.
type Metrics struct {
	attempts      prometheus.Counter
	retries       prometheus.Counter
	dispatches    *prometheus.CounterVec
	failedTargets prometheus.Counter
	outcomes      *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics creates the driver collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "in3", Subsystem: "driver", Name: "attempts_total",
			Help: "Context trees built, one per attempt.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "in3", Subsystem: "driver", Name: "retries_total",
			Help: "Attempts discarded because stale data was detected.",
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "in3", Subsystem: "driver", Name: "dispatches_total",
			Help: "Leaf requests dispatched to a capability, by request kind.",
		}, []string{"kind"}),
		failedTargets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "in3", Subsystem: "driver", Name: "failed_targets_total",
			Help: "Per-target transport failures.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "in3", Subsystem: "driver", Name: "calls_total",
			Help: "Completed calls by result (ok or error kind).",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "in3", Subsystem: "driver", Name: "call_duration_seconds",
			Help:    "Wall time of Execute.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.attempts, m.retries, m.dispatches, m.failedTargets, m.outcomes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) attempt() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *Metrics) retry() {
	if m != nil {
		m.retries.Inc()
	}
}

func (m *Metrics) dispatch(kind ctxtree.Kind) {
	if m != nil {
		m.dispatches.WithLabelValues(kind.String()).Inc()
	}
}

func (m *Metrics) targetFailures(n int) {
	if m != nil && n > 0 {
		m.failedTargets.Add(float64(n))
	}
}

func (m *Metrics) done(start time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = string(rpcerr.KindOf(err))
		if result == "" {
			result = "unknown"
		}
	}
	m.outcomes.WithLabelValues(result).Inc()
}
