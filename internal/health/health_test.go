package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	checker := NewChecker("1.2.3")
	resp := checker.Health()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ready      bool
		checks     map[string]CheckFunc
		wantStatus Status
		wantChecks map[string]Status
	}{
		{
			name:       "not ready before startup",
			ready:      false,
			wantStatus: StatusUnhealthy,
			wantChecks: map[string]Status{"startup": StatusUnhealthy},
		},
		{
			name:       "ready without checks",
			ready:      true,
			wantStatus: StatusHealthy,
			wantChecks: map[string]Status{},
		},
		{
			name:  "all checks pass",
			ready: true,
			checks: map[string]CheckFunc{
				"identity_store": func(context.Context) error { return nil },
				"secrets":        func(context.Context) error { return nil },
			},
			wantStatus: StatusHealthy,
			wantChecks: map[string]Status{"identity_store": StatusHealthy, "secrets": StatusHealthy},
		},
		{
			name:  "one check fails",
			ready: true,
			checks: map[string]CheckFunc{
				"identity_store": func(context.Context) error { return errors.New("connection refused") },
				"secrets":        func(context.Context) error { return nil },
			},
			wantStatus: StatusUnhealthy,
			wantChecks: map[string]Status{"identity_store": StatusUnhealthy, "secrets": StatusHealthy},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewChecker("test")
			checker.SetReady(tt.ready)
			for name, fn := range tt.checks {
				checker.RegisterCheck(name, fn)
			}

			resp := checker.Readiness(context.Background())
			assert.Equal(t, tt.wantStatus, resp.Status)
			require.Len(t, resp.Checks, len(tt.wantChecks))
			for name, status := range tt.wantChecks {
				assert.Equal(t, status, resp.Checks[name].Status, name)
			}
		})
	}
}

func TestChecker_CheckTimeout(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")
	checker.SetReady(true)
	checker.SetTimeout(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := checker.Readiness(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks["slow"].Message, "deadline exceeded")

	checker.UnregisterCheck("slow")
	assert.Equal(t, StatusHealthy, checker.Readiness(context.Background()).Status)
}

func TestChecker_Handlers(t *testing.T) {
	t.Parallel()

	checker := NewChecker("test")
	mux := http.NewServeMux()
	checker.Register(mux)

	tests := []struct {
		name       string
		path       string
		ready      bool
		wantStatus int
	}{
		{name: "healthz", path: "/healthz", wantStatus: http.StatusOK},
		{name: "livez", path: "/livez", wantStatus: http.StatusOK},
		{name: "readyz not ready", path: "/readyz", ready: false, wantStatus: http.StatusServiceUnavailable},
		{name: "readyz ready", path: "/readyz", ready: true, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		// Subtests share the checker's ready flag.
		checker.SetReady(tt.ready)

		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, tt.wantStatus, rec.Code, tt.name)
		assert.Equal(t, ContentTypeJSON, rec.Header().Get(HeaderContentType), tt.name)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), tt.name)
		assert.Contains(t, body, "status", tt.name)
	}
}
