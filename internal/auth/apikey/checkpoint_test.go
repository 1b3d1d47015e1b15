package apikey

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckpoints(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "route", CheckpointRoute.Name())
	assert.Equal(t, Binding{Credential: "credential.route", Identity: "identity.route"}, CheckpointRoute.Binding())
	assert.Equal(t, "spec", CheckpointSpec.Name())
	assert.Equal(t, Binding{Credential: "credential.spec", Identity: "identity.spec"}, CheckpointSpec.Binding())
}

// captureWriter records everything written to it, including bodies that
// a real transport would drop for 204.
type captureWriter struct {
	header http.Header
	code   int
	body   strings.Builder
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: http.Header{}}
}

func (w *captureWriter) Header() http.Header { return w.header }

func (w *captureWriter) WriteHeader(code int) { w.code = code }

func (w *captureWriter) Write(b []byte) (int, error) { return w.body.Write(b) }

// pairContext binds credential and identity to cp's variables, leaving
// empty values unbound.
func pairContext(cp Checkpoint, credential, identity string) RequestContext {
	vars := map[string]string{}
	if credential != "" {
		vars[cp.Binding().Credential] = credential
	}
	if identity != "" {
		vars[cp.Binding().Identity] = identity
	}
	return NewRequestContext(vars)
}

func TestValidate_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		credential string
		identity   string
		status     int
		body       string
		outcome    Outcome
	}{
		{name: "no credential", credential: "", status: 401, body: "401", outcome: OutcomeUnauthenticated},
		{name: "identity only", identity: "client-42", status: 401, body: "401", outcome: OutcomeUnauthenticated},
		{name: "unknown credential", credential: "k-123", status: 403, body: "403", outcome: OutcomeUnauthorized},
		{
			name:       "known credential",
			credential: "k-123",
			identity:   "client-42",
			status:     204,
			body:       "204",
			outcome:    OutcomeAuthorized,
		},
	}

	adapters := []struct {
		cp       Checkpoint
		validate func(RequestContext, http.ResponseWriter) Outcome
	}{
		{cp: CheckpointRoute, validate: ValidateRoute},
		{cp: CheckpointSpec, validate: ValidateSpec},
	}

	for _, adapter := range adapters {
		for _, tt := range tests {
			t.Run(adapter.cp.Name()+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				w := newCaptureWriter()
				outcome := adapter.validate(pairContext(adapter.cp, tt.credential, tt.identity), w)

				assert.Equal(t, tt.outcome, outcome)
				assert.Equal(t, tt.status, w.code)
				assert.Equal(t, tt.body, w.body.String())
				assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
			})
		}
	}
}

func TestCheckpoint_Independence(t *testing.T) {
	t.Parallel()

	// Only the route variables are bound: the spec checkpoint must not see them.
	rc := pairContext(CheckpointRoute, "k-123", "client-42")

	assert.Equal(t, OutcomeAuthorized, CheckpointRoute.Decide(rc))
	assert.Equal(t, OutcomeUnauthenticated, CheckpointSpec.Decide(rc))

	// Same pair under each binding yields the same outcome.
	pairs := [][2]string{{"", ""}, {"", "c"}, {"k", ""}, {"k", "c"}}
	for _, p := range pairs {
		assert.Equal(t,
			CheckpointRoute.Decide(pairContext(CheckpointRoute, p[0], p[1])),
			CheckpointSpec.Decide(pairContext(CheckpointSpec, p[0], p[1])),
			"pair %q", p,
		)
	}
}

func TestCheckpoint_CustomBinding(t *testing.T) {
	t.Parallel()

	cp := NewCheckpoint("admin", Binding{Credential: "credential.admin", Identity: "identity.admin"})
	rc := NewRequestContext(map[string]string{
		"credential.admin": "k-9",
		"identity.admin":   "ops",
	})

	assert.Equal(t, "k-9", cp.Credential(rc))
	assert.Equal(t, "ops", cp.Identity(rc))
	assert.Equal(t, OutcomeAuthorized, cp.Decide(rc))
	assert.Equal(t, OutcomeUnauthenticated, CheckpointRoute.Decide(rc))
}

func TestCheckpoint_Fingerprint(t *testing.T) {
	t.Parallel()

	rc := NewRequestContext(map[string]string{
		VarRouteCredential: "k-123",
		VarSpecCredential:  "k-456",
	})

	assert.Equal(t, Fingerprint("k-123"), RouteFingerprint(rc))
	assert.Equal(t, Fingerprint("k-456"), SpecFingerprint(rc))
	assert.NotEqual(t, RouteFingerprint(rc), SpecFingerprint(rc))

	// An unbound credential fingerprints as the empty string.
	assert.Equal(t, Fingerprint(""), SpecFingerprint(RequestContext{}))
}

func TestEmit(t *testing.T) {
	t.Parallel()

	for _, outcome := range Outcomes {
		w := newCaptureWriter()
		Emit(w, outcome)

		assert.Equal(t, outcome.StatusCode(), w.code)
		assert.Equal(t, outcome.Body(), w.body.String())
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	}
}
