package apikey

import (
	"net/http"

	"github.com/vyrodovalexey/keygate/internal/observability"
)

// Resolver builds a RequestContext from an HTTP request: it extracts each
// checkpoint's credential and resolves the client identity through the
// identity store.
type Resolver struct {
	extractors map[string]Extractor
	store      IdentityStore
	logger     observability.Logger
	metrics    *Metrics
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the resolver.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger.Named("apikey.resolver")
	}
}

// WithResolverMetrics sets the metrics for the resolver.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// WithExtractor overrides the credential extractor of a checkpoint.
func WithExtractor(cp Checkpoint, extractor Extractor) ResolverOption {
	return func(r *Resolver) {
		r.extractors[cp.Name()] = extractor
	}
}

// NewResolver creates a resolver for the route and spec checkpoints.
func NewResolver(cfg *Config, store IdentityStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		extractors: map[string]Extractor{
			CheckpointRoute.Name(): cfg.Route.Extractor(),
			CheckpointSpec.Name():  cfg.Spec.Extractor(),
		},
		store:  store,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = GetSharedMetrics()
	}
	return r
}

// Resolve binds the credential and identity variables of every given
// checkpoint. With no checkpoints, both route and spec are resolved.
// A failed lookup leaves the identity unbound.
func (r *Resolver) Resolve(req *http.Request, checkpoints ...Checkpoint) RequestContext {
	if len(checkpoints) == 0 {
		checkpoints = []Checkpoint{CheckpointRoute, CheckpointSpec}
	}

	var rc RequestContext
	resolved := make(map[string]string, len(checkpoints))

	for _, cp := range checkpoints {
		credential := r.Credential(req, cp)
		if !Present(credential) {
			continue
		}
		rc = rc.With(cp.Binding().Credential, credential)

		fp := Fingerprint(credential)
		name, seen := resolved[fp]
		if !seen {
			var err error
			name, err = r.store.Lookup(req.Context(), fp)
			if err != nil {
				r.metrics.RecordLookupError(cp.Name())
				r.logger.WithContext(req.Context()).Error("identity lookup failed",
					observability.String("checkpoint", cp.Name()),
					observability.String("fingerprint", fp),
					observability.Error(err),
				)
				continue
			}
			resolved[fp] = name
		}
		if Present(name) {
			rc = rc.With(cp.Binding().Identity, name)
		}
	}

	return rc
}

// Credential extracts cp's credential from req, or "" when it is absent.
func (r *Resolver) Credential(req *http.Request, cp Checkpoint) string {
	extractor, ok := r.extractors[cp.Name()]
	if !ok {
		return ""
	}
	credential, err := extractor.Extract(req)
	if err != nil {
		return ""
	}
	return credential
}
