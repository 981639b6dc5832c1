package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/rkode/internal/sim"
)

// Collector exports step statistics to Prometheus. It implements
// sim.Observer and may be shared by concurrent runs.
type Collector struct {
	method string
	steps  *prometheus.CounterVec
	dt     *prometheus.HistogramVec
	ratio  *prometheus.GaugeVec
}

// NewCollector registers the step metrics on reg, labelled with method.
func NewCollector(reg prometheus.Registerer, method string) (*Collector, error) {
	c := &Collector{
		method: method,
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rkode",
				Name:      "steps_total",
				Help:      "Attempted integration steps by outcome.",
			},
			[]string{"method", "outcome"},
		),
		dt: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "rkode",
				Name:      "step_size",
				Help:      "Size of accepted steps.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
			},
			[]string{"method"},
		),
		ratio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "rkode",
				Name:      "error_ratio",
				Help:      "Error ratio of the most recent adaptive attempt.",
			},
			[]string{"method"},
		),
	}

	for _, col := range []prometheus.Collector{c.steps, c.dt, c.ratio} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) OnAttempt(a sim.Attempt) {
	outcome := "rejected"
	if a.Accepted {
		outcome = "accepted"
		c.dt.WithLabelValues(c.method).Observe(a.Dt)
	}
	c.steps.WithLabelValues(c.method, outcome).Inc()
	if a.Adaptive {
		c.ratio.WithLabelValues(c.method).Set(a.Ratio)
	}
}
