// Package metrics provides Prometheus metrics collection for submissions.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/subroutine/ports"
)

const namespace = "subroutine"

// Collector holds all Prometheus metrics for subroutine.
// It implements ports.Observer so it can be installed in an op.Env.
type Collector struct {
	// Submission metrics
	PhasesTotal   *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec

	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Auth metrics
	AuthFailures *prometheus.CounterVec

	// Definition metrics
	DefinitionReloads      prometheus.Counter
	DefinitionReloadErrors prometheus.Counter
	DefinitionsLoaded      prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		PhasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phases_total",
				Help:      "Total number of finished submission phases",
			},
			[]string{"op", "phase", "outcome"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Submission phase duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"op", "phase"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP submissions processed",
			},
			[]string{"op", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP submission duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"op", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of HTTP submissions currently being processed",
			},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of rejected bearer tokens and unauthorized submissions",
			},
			[]string{"reason"},
		),
		DefinitionReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_reloads_total",
				Help:      "Total number of successful definition reloads",
			},
		),
		DefinitionReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_reload_errors_total",
				Help:      "Total number of failed definition reloads",
			},
		),
		DefinitionsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "definitions_loaded",
				Help:      "Number of operations loaded from definitions",
			},
		),
	}
}

// Observe implements ports.Observer.
func (c *Collector) Observe(_ context.Context, o ports.Observation) {
	op := o.Op
	if op == "" {
		op = "anonymous"
	}
	c.PhasesTotal.WithLabelValues(op, string(o.Phase), string(o.Outcome)).Inc()
	c.PhaseDuration.WithLabelValues(op, string(o.Phase)).Observe(o.Duration.Seconds())
}

// StatusClass reduces cardinality by grouping status codes, e.g. 422 -> "4xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code/100) + "xx"
}

var _ ports.Observer = (*Collector)(nil)
