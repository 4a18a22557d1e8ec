package identity

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	results *prometheus.CounterVec
	created prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackgen",
			Subsystem: "identity",
			Name:      "results_total",
			Help:      "Authentication results by final state and rejection reason.",
		}, []string{"state", "reason"}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stackgen",
			Subsystem: "identity",
			Name:      "principals_created_total",
			Help:      "Principals created on first sight of an external identity.",
		}),
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	if err := r.Register(m.results); err != nil {
		return err
	}
	return r.Register(m.created)
}

func (m *metrics) observe(res Result) {
	m.results.WithLabelValues(res.State.String(), res.Reason.String()).Inc()
}
