package apikey

// Context variable names bound by the gateway for each checkpoint.
const (
	VarRouteCredential = "credential.route"
	VarRouteIdentity   = "identity.route"
	VarSpecCredential  = "credential.spec"
	VarSpecIdentity    = "identity.spec"
)

// RequestContext is an immutable set of named string variables resolved
// for a single request. The zero value has no variables bound.
type RequestContext struct {
	vars map[string]string
}

// NewRequestContext creates a RequestContext holding a copy of vars.
func NewRequestContext(vars map[string]string) RequestContext {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return RequestContext{vars: copied}
}

// Get returns the value bound to name, or "" if name is unbound.
func (rc RequestContext) Get(name string) string {
	return rc.vars[name]
}

// With returns a copy of rc with name bound to value.
func (rc RequestContext) With(name, value string) RequestContext {
	copied := make(map[string]string, len(rc.vars)+1)
	for k, v := range rc.vars {
		copied[k] = v
	}
	copied[name] = value
	return RequestContext{vars: copied}
}
