package imports

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomePanic   = "panic"
	outcomeMarshal = "marshal"
)

// Metrics records host function calls made through trampolines.
// A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the host call metrics and registers them with r.
func NewMetrics(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wasmhost",
			Name:      "host_calls_total",
			Help:      "number of host function calls by outcome",
		}, []string{"namespace", "name", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wasmhost",
			Name:      "host_call_duration_seconds",
			Help:      "time spent in host function callbacks",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"namespace", "name"}),
	}
	err := multierr.Combine(
		r.Register(m.calls),
		r.Register(m.duration),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(namespace, name, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(namespace, name, outcome).Inc()
	m.duration.WithLabelValues(namespace, name).Observe(d.Seconds())
}
