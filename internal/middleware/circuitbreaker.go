package middleware

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

var cbTracer = otel.Tracer("keygate/circuitbreaker")

// Circuit breaker defaults.
const (
	DefaultCircuitBreakerThreshold = 5
	DefaultCircuitBreakerTimeout   = 30 * time.Second

	tripFailureRatio = 0.5
)

// CircuitBreakerStateFunc observes state transitions.
type CircuitBreakerStateFunc func(name string, to gobreaker.State)

// CircuitBreaker guards a backend such as the Redis identity store.
// Errors caused by the caller (a cancelled or expired context, or any
// error registered with WithCircuitBreakerIgnoredErrors) are returned
// unchanged but do not count as backend failures.
type CircuitBreaker struct {
	cb            *gobreaker.CircuitBreaker
	name          string
	logger        observability.Logger
	stateCallback CircuitBreakerStateFunc
	ignored       []error
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithCircuitBreakerLogger sets the logger.
func WithCircuitBreakerLogger(logger observability.Logger) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger.Named("circuitbreaker")
	}
}

// WithCircuitBreakerStateCallback registers fn for state transitions.
func WithCircuitBreakerStateCallback(fn CircuitBreakerStateFunc) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.stateCallback = fn
	}
}

// WithCircuitBreakerIgnoredErrors adds errors that never count as failures.
func WithCircuitBreakerIgnoredErrors(errs ...error) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.ignored = append(cb.ignored, errs...)
	}
}

// NewCircuitBreaker returns a breaker that opens once at least threshold
// calls were seen within timeout and half of them failed. It probes again
// after timeout. Non-positive values fall back to the defaults.
func NewCircuitBreaker(
	name string,
	threshold int,
	timeout time.Duration,
	opts ...CircuitBreakerOption,
) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:    name,
		logger:  observability.NopLogger(),
		ignored: []error{context.Canceled, context.DeadlineExceeded},
	}
	for _, opt := range opts {
		opt(cb)
	}

	if threshold <= 0 {
		threshold = DefaultCircuitBreakerThreshold
	}
	if timeout <= 0 {
		timeout = DefaultCircuitBreakerTimeout
	}
	minRequests := safeIntToUint32(threshold)

	cb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: minRequests,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= tripFailureRatio
		},
		IsSuccessful:  cb.isSuccessful,
		OnStateChange: cb.onStateChange,
	})
	return cb
}

func (cb *CircuitBreaker) isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	for _, target := range cb.ignored {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.logger.Warn("circuit breaker state change",
		observability.String("name", name),
		observability.String("from", from.String()),
		observability.String("to", to.String()),
	)

	GetMetrics().circuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()

	_, span := cbTracer.Start(context.Background(), "circuitbreaker.state_change",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.AddEvent("state_change", trace.WithAttributes(
		attribute.String("circuitbreaker.name", name),
		attribute.String("circuitbreaker.from", from.String()),
		attribute.String("circuitbreaker.to", to.String()),
	))
	span.End()

	if cb.stateCallback != nil {
		cb.stateCallback(name, to)
	}
}

func safeIntToUint32(n int) uint32 {
	switch {
	case n < 0:
		return 0
	case n > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(n) //nolint:gosec // bounds checked above
	}
}

// Execute runs fn unless the breaker is open. Rejections are counted in
// keygate_circuit_breaker_rejections_total.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.cb.Execute(fn)
	if IsCircuitOpen(err) {
		GetMetrics().circuitBreakerRejections.WithLabelValues(cb.name).Inc()
	}
	return result, err
}

// State returns the current state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.cb.State()
}

// Counts returns the counters of the current interval.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.cb.Counts()
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsCircuitOpen reports whether err means the breaker rejected the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
