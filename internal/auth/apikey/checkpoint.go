package apikey

import (
	"io"
	"net/http"
)

// Binding names the context variables a checkpoint reads.
type Binding struct {
	// Credential is the variable holding the raw credential.
	Credential string
	// Identity is the variable holding the resolved client name.
	Identity string
}

// Checkpoint is a point in request processing where the API key policy
// is enforced. Checkpoints differ only in their bindings.
type Checkpoint struct {
	name    string
	binding Binding
}

// The two checkpoints enforced by the gateway.
var (
	CheckpointRoute = NewCheckpoint("route", Binding{
		Credential: VarRouteCredential,
		Identity:   VarRouteIdentity,
	})
	CheckpointSpec = NewCheckpoint("spec", Binding{
		Credential: VarSpecCredential,
		Identity:   VarSpecIdentity,
	})
)

// NewCheckpoint creates a checkpoint reading the given bindings.
func NewCheckpoint(name string, binding Binding) Checkpoint {
	return Checkpoint{name: name, binding: binding}
}

// Name returns the checkpoint name.
func (c Checkpoint) Name() string {
	return c.name
}

// Binding returns the variables the checkpoint reads.
func (c Checkpoint) Binding() Binding {
	return c.binding
}

// Credential returns the checkpoint's credential from rc.
func (c Checkpoint) Credential(rc RequestContext) string {
	return rc.Get(c.binding.Credential)
}

// Identity returns the checkpoint's client identity from rc.
func (c Checkpoint) Identity(rc RequestContext) string {
	return rc.Get(c.binding.Identity)
}

// Decide applies the decision policy to the checkpoint's bindings in rc.
func (c Checkpoint) Decide(rc RequestContext) Outcome {
	return Decide(Present(c.Credential(rc)), Present(c.Identity(rc)))
}

// Evaluate decides the outcome for rc and writes it to w.
func (c Checkpoint) Evaluate(rc RequestContext, w http.ResponseWriter) Outcome {
	outcome := c.Decide(rc)
	Emit(w, outcome)
	return outcome
}

// Fingerprint returns the fingerprint of the checkpoint's credential.
func (c Checkpoint) Fingerprint(rc RequestContext) string {
	return Fingerprint(c.Credential(rc))
}

// Emit writes the outcome's status code and plain-text body to w.
// For 204 the transport may drop the body.
func Emit(w http.ResponseWriter, outcome Outcome) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(outcome.StatusCode())
	_, _ = io.WriteString(w, outcome.Body())
}

// ValidateRoute evaluates the route checkpoint.
func ValidateRoute(rc RequestContext, w http.ResponseWriter) Outcome {
	return CheckpointRoute.Evaluate(rc, w)
}

// ValidateSpec evaluates the spec checkpoint.
func ValidateSpec(rc RequestContext, w http.ResponseWriter) Outcome {
	return CheckpointSpec.Evaluate(rc, w)
}

// RouteFingerprint returns the fingerprint of the route credential.
func RouteFingerprint(rc RequestContext) string {
	return CheckpointRoute.Fingerprint(rc)
}

// SpecFingerprint returns the fingerprint of the spec credential.
func SpecFingerprint(rc RequestContext) string {
	return CheckpointSpec.Fingerprint(rc)
}
