package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the FormRules service.
type Metrics struct {
	Evaluations *prometheus.CounterVec
	RulesFired  prometheus.Counter
	Errors      *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewMetrics registers the service collectors on reg.
// A nil reg yields unregistered collectors, which tests use for isolation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "evaluations_total",
			Help:      "Form evaluations by schema source (inline, stored).",
		}, []string{"source"}),
		RulesFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "rules_fired_total",
			Help:      "Rule applications across all evaluations.",
		}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "request_errors_total",
			Help:      "Failed requests by method and gRPC code.",
		}, []string{"method", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caseflow",
			Name:      "request_duration_seconds",
			Help:      "Request latency by method.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method"}),
	}
}
