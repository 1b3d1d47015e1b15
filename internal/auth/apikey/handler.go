package apikey

import (
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// Endpoint paths served by Handler.
const (
	PathAuthRoute = "/_auth/route"
	PathAuthSpec  = "/_auth/spec"
	PathHashRoute = "/_hash/route"
	PathHashSpec  = "/_hash/spec"
)

// handlerTracer is the OTEL tracer used for checkpoint evaluations.
var handlerTracer = otel.Tracer("keygate/apikey")

// Handler serves the checkpoints as auth subrequest endpoints.
type Handler struct {
	resolver *Resolver
	logger   observability.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	mux      *http.ServeMux
}

// HandlerOption is a functional option for the handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the handler.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger.Named("apikey.handler")
	}
}

// WithHandlerMetrics sets the metrics for the handler.
func WithHandlerMetrics(metrics *Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithHandlerTracer sets the tracer for the handler.
func WithHandlerTracer(tracer trace.Tracer) HandlerOption {
	return func(h *Handler) {
		h.tracer = tracer
	}
}

// NewHandler creates a new checkpoint handler.
func NewHandler(resolver *Resolver, opts ...HandlerOption) *Handler {
	h := &Handler{
		resolver: resolver,
		logger:   observability.NopLogger(),
		tracer:   handlerTracer,
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = GetSharedMetrics()
	}

	h.mux.Handle(PathAuthRoute, h.Validate(CheckpointRoute))
	h.mux.Handle(PathAuthSpec, h.Validate(CheckpointSpec))
	h.mux.Handle(PathHashRoute, h.Hash(CheckpointRoute))
	h.mux.Handle(PathHashSpec, h.Hash(CheckpointSpec))

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Validate returns a handler that evaluates cp for each request.
func (h *Handler) Validate(cp Checkpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := h.tracer.Start(r.Context(), "apikey.evaluate",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("apikey.checkpoint", cp.Name())),
		)
		defer span.End()
		r = r.WithContext(ctx)

		rc := h.resolver.Resolve(r, cp)
		outcome := cp.Evaluate(rc, w)
		duration := time.Since(start)

		span.SetAttributes(
			attribute.String("apikey.outcome", outcome.String()),
			attribute.Int("http.response.status_code", outcome.StatusCode()),
		)
		h.metrics.RecordEvaluation(cp.Name(), outcome, duration)

		fields := []observability.Field{
			observability.String("checkpoint", cp.Name()),
			observability.String("outcome", outcome.String()),
			observability.Duration("duration", duration),
		}
		if credential := cp.Credential(rc); Present(credential) {
			fields = append(fields, observability.String("fingerprint", Fingerprint(credential)))
		}
		if identity := cp.Identity(rc); Present(identity) {
			fields = append(fields, observability.String("client", identity))
		}
		h.logger.WithContext(ctx).Debug("api key checkpoint evaluated", fields...)
	})
}

// Hash returns a handler that writes the fingerprint of cp's credential.
func (h *Handler) Hash(cp Checkpoint) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := NewRequestContext(map[string]string{
			cp.Binding().Credential: h.resolver.Credential(r, cp),
		})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, cp.Fingerprint(rc))
	})
}
