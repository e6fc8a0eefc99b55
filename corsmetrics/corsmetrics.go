// Package corsmetrics exports the decisions of a CORS middleware as
// Prometheus metrics.
package corsmetrics

import (
	"errors"

	"github.com/jub0bs/corsguard"
	"github.com/prometheus/client_golang/prometheus"
)

// Label values of the decisions counter.
const (
	ResultAllowed = "allowed"
	ResultDenied  = "denied"
)

// A Collector counts the decisions of the middlewares it observes.
// Install one with [corsguard.Middleware.SetObserver].
// A Collector is safe for concurrent use by multiple goroutines.
type Collector struct {
	decisions *prometheus.CounterVec
}

// New returns a Collector whose counter is registered with reg.
// If an identical counter is already registered with reg
// (e.g. by another Collector), New shares it.
func New(reg prometheus.Registerer) (*Collector, error) {
	decisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corsguard",
			Name:      "decisions_total",
			Help:      "Total number of CORS requests, by kind and outcome.",
		},
		[]string{"kind", "result"},
	)
	if err := reg.Register(decisions); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		decisions = existing
	}
	c := Collector{decisions: decisions}
	c.init()
	return &c, nil
}

// MustNew is like [New] but panics if the counter cannot be registered.
func MustNew(reg prometheus.Registerer) *Collector {
	c, err := New(reg)
	if err != nil {
		panic(err)
	}
	return c
}

// init exposes every series from the start, so that rates can be
// computed before the first decision of each kind.
func (c *Collector) init() {
	for _, kind := range []corsguard.RequestKind{corsguard.Actual, corsguard.Preflight} {
		c.decisions.WithLabelValues(kind.String(), ResultAllowed)
		c.decisions.WithLabelValues(kind.String(), ResultDenied)
	}
}

// ObserveDecision implements [corsguard.Observer].
func (c *Collector) ObserveDecision(kind corsguard.RequestKind, d corsguard.Decision) {
	result := ResultDenied
	if d.IsAllowed() {
		result = ResultAllowed
	}
	c.decisions.WithLabelValues(kind.String(), result).Inc()
}
