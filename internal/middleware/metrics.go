package middleware

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the middleware package.
type Metrics struct {
	requestsTotal             *prometheus.CounterVec
	panicsRecovered           prometheus.Counter
	circuitBreakerTransitions *prometheus.CounterVec
	circuitBreakerRejections  *prometheus.CounterVec
}

var (
	middlewareMetrics     *Metrics
	middlewareMetricsOnce sync.Once
)

// GetMetrics returns the singleton middleware metrics.
func GetMetrics() *Metrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = newMetrics()
	})
	return middlewareMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "keygate",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		panicsRecovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "keygate",
				Subsystem: "http",
				Name:      "panics_recovered_total",
				Help:      "Total number of recovered handler panics",
			},
		),
		circuitBreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "keygate",
				Subsystem: "circuit_breaker",
				Name:      "transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
		circuitBreakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "keygate",
				Subsystem: "circuit_breaker",
				Name:      "rejections_total",
				Help:      "Total number of calls rejected by an open circuit breaker",
			},
			[]string{"name"},
		),
	}
}

// MustRegister registers the metrics with registry. Already registered
// collectors are ignored.
func (m *Metrics) MustRegister(registry prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		m.requestsTotal,
		m.panicsRecovered,
		m.circuitBreakerTransitions,
		m.circuitBreakerRejections,
	} {
		if err := registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}
