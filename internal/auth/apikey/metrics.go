package apikey

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for checkpoint evaluations.
type Metrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	lookupErrors       *prometheus.CounterVec
	registry           *prometheus.Registry
}

var (
	sharedMetrics     *Metrics
	sharedMetricsOnce sync.Once
)

// GetSharedMetrics returns the singleton Metrics instance.
func GetSharedMetrics() *Metrics {
	sharedMetricsOnce.Do(func() {
		sharedMetrics = NewMetrics("keygate")
	})
	return sharedMetrics
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "keygate"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "evaluations_total",
			Help:      "Total number of API key checkpoint evaluations",
		},
		[]string{"checkpoint", "outcome"},
	)

	m.evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "evaluation_duration_seconds",
			Help:      "API key checkpoint evaluation duration in seconds, including identity lookup",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"checkpoint", "outcome"},
	)

	m.lookupErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "apikey",
			Name:      "lookup_errors_total",
			Help:      "Total number of failed identity store lookups",
		},
		[]string{"checkpoint"},
	)

	m.registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.lookupErrors,
	)

	return m
}

// Init pre-initializes every checkpoint/outcome label combination so the
// series appear in /metrics before the first request.
func (m *Metrics) Init() {
	for _, cp := range []Checkpoint{CheckpointRoute, CheckpointSpec} {
		for _, o := range Outcomes {
			m.evaluationsTotal.WithLabelValues(cp.Name(), o.String())
			m.evaluationDuration.WithLabelValues(cp.Name(), o.String())
		}
		m.lookupErrors.WithLabelValues(cp.Name())
	}
}

// RecordEvaluation records a checkpoint evaluation.
func (m *Metrics) RecordEvaluation(checkpoint string, outcome Outcome, duration time.Duration) {
	m.evaluationsTotal.WithLabelValues(checkpoint, outcome.String()).Inc()
	m.evaluationDuration.WithLabelValues(checkpoint, outcome.String()).Observe(duration.Seconds())
}

// RecordLookupError records a failed identity lookup.
func (m *Metrics) RecordLookupError(checkpoint string) {
	m.lookupErrors.WithLabelValues(checkpoint).Inc()
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister registers the metrics with the given registry.
// AlreadyRegisteredError is ignored so providers can be recreated on
// config reload.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		m.evaluationsTotal,
		m.evaluationDuration,
		m.lookupErrors,
	} {
		if err := registry.Register(c); err != nil {
			if !isAlreadyRegistered(err) {
				panic(err)
			}
		}
	}
}

func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}
