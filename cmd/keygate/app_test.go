package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/health"
	"github.com/vyrodovalexey/keygate/internal/observability"
	"github.com/vyrodovalexey/keygate/internal/secrets"
)

// newTestConfig returns a configuration reading clients from a local
// "clients.yaml" under dir and listening on ephemeral ports.
func newTestConfig(t *testing.T, dir string) *config.GatewayConfig {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Spec.Server.Address = "127.0.0.1:0"
	cfg.Spec.Metrics.Address = "localhost:0"
	cfg.Spec.Server.ShutdownTimeout = 2 * time.Second
	cfg.Spec.Secrets = &secrets.Config{Local: &secrets.LocalConfig{BasePath: dir}}
	cfg.Spec.APIKey.Clients = apikey.ClientsConfig{Provider: string(secrets.ProviderTypeLocal), Path: "clients"}
	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func writeClients(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clients.yaml"), []byte(content), 0o600))
}

func startTestApp(t *testing.T, cfg *config.GatewayConfig) *application {
	t.Helper()

	app, err := initApplication(cfg, observability.NopLogger())
	require.NoError(t, err)
	require.NoError(t, app.start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		app.shutdown(ctx)
	})
	return app
}

func doRequest(t *testing.T, app *application, path, apiKey string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, "http://"+app.listener.Addr().String()+path, nil)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestApplication_AuthEndpoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\nclient-7: k-7\n")
	app := startTestApp(t, newTestConfig(t, dir))

	tests := []struct {
		name   string
		path   string
		apiKey string
		status int
		body   string
	}{
		{name: "route no key", path: apikey.PathAuthRoute, status: 401, body: "401"},
		{name: "route unknown key", path: apikey.PathAuthRoute, apiKey: "k-999", status: 403, body: "403"},
		{name: "route known key", path: apikey.PathAuthRoute, apiKey: "k-123", status: 204},
		{name: "spec no key", path: apikey.PathAuthSpec, status: 401, body: "401"},
		{name: "spec unknown key", path: apikey.PathAuthSpec, apiKey: "k-999", status: 403, body: "403"},
		{name: "spec known key", path: apikey.PathAuthSpec, apiKey: "k-7", status: 204},
		{name: "hash", path: apikey.PathHashRoute, apiKey: "k-123", status: 200, body: apikey.Fingerprint("k-123")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, body := doRequest(t, app, tt.path, tt.apiKey)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestApplication_IdentityEndpoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\nclient-7: k-7\n")
	app := startTestApp(t, newTestConfig(t, dir))

	tests := []struct {
		name   string
		path   string
		apiKey string
		status int
		body   string
	}{
		{name: "route no key", path: pathIdentityRoute, status: 401, body: "401"},
		{name: "route unknown key", path: pathIdentityRoute, apiKey: "k-999", status: 403, body: "403"},
		{name: "route known key", path: pathIdentityRoute, apiKey: "k-123", status: 200, body: "client-42"},
		{name: "spec no key", path: pathIdentitySpec, status: 401, body: "401"},
		{name: "spec unknown key", path: pathIdentitySpec, apiKey: "k-999", status: 403, body: "403"},
		{name: "spec known key", path: pathIdentitySpec, apiKey: "k-7", status: 200, body: "client-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, body := doRequest(t, app, tt.path, tt.apiKey)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestApplication_IdentityHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\n")
	app := startTestApp(t, newTestConfig(t, dir))

	req, err := http.NewRequest(http.MethodGet, "http://"+app.listener.Addr().String()+pathIdentityRoute, nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "k-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "client-42", resp.Header.Get(headerClientName))
	assert.Equal(t, apikey.Fingerprint("k-123"), resp.Header.Get(headerFingerprint))
}

func TestApplication_IdentityFollowsReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\n")
	cfg := newTestConfig(t, dir)
	app := startTestApp(t, cfg)

	status, _ := doRequest(t, app, pathIdentityRoute, "k-123")
	require.Equal(t, http.StatusOK, status)

	next := *cfg.Spec.APIKey
	next.Route.Headers = []string{"X-Route-Key"}
	app.rebuildAuthHandler(&next)

	status, body := doRequest(t, app, pathIdentityRoute, "k-123")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "401", body)
}

func TestApplication_QueryKeyIsRaw(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-raw: \"a+b/c%2F\"\n")
	cfg := newTestConfig(t, dir)
	cfg.Spec.APIKey.Route.Query = []string{"apikey"}
	app := startTestApp(t, cfg)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{name: "raw value matches", query: "?apikey=a+b/c%2F", status: http.StatusNoContent},
		{name: "differently escaped value", query: "?apikey=a%20b%2Fc%252F", status: http.StatusForbidden},
		{name: "name is case insensitive", query: "?ApiKey=a+b/c%2F", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			status, _ := doRequest(t, app, apikey.PathAuthRoute+tt.query, "")
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestApplication_Health(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\n")
	app := startTestApp(t, newTestConfig(t, dir))

	status, _ := doRequest(t, app, "/readyz", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = doRequest(t, app, "/livez", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestApplication_NotReadyWithoutClients(t *testing.T) {
	t.Parallel()

	app := startTestApp(t, newTestConfig(t, t.TempDir()))

	status, _ := doRequest(t, app, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, body := doRequest(t, app, apikey.PathAuthRoute, "k-123")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "403", body)
}

func TestApplication_RedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\n")
	require.NoError(t, mr.Set("kg:"+apikey.Fingerprint("k-stale"), "gone"))

	cfg := newTestConfig(t, dir)
	cfg.Spec.APIKey.Store = &apikey.StoreConfig{
		Type: apikey.StoreTypeRedis,
		Redis: &apikey.RedisConfig{
			Address:        mr.Addr(),
			KeyPrefix:      "kg:",
			CircuitBreaker: &apikey.CircuitBreakerConfig{Threshold: 5, Timeout: time.Second},
		},
	}
	app := startTestApp(t, cfg)
	require.NotNil(t, app.redisStore)

	got, err := mr.Get("kg:" + apikey.Fingerprint("k-123"))
	require.NoError(t, err)
	assert.Equal(t, "client-42", got)
	assert.False(t, mr.Exists("kg:"+apikey.Fingerprint("k-stale")))

	status, _ := doRequest(t, app, apikey.PathAuthRoute, "k-123")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doRequest(t, app, apikey.PathAuthRoute, "k-stale")
	assert.Equal(t, http.StatusForbidden, status)
}

func TestApplication_Metrics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\n")
	app := startTestApp(t, newTestConfig(t, dir))

	doRequest(t, app, apikey.PathAuthRoute, "k-123")

	families, err := app.metrics.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["keygate_apikey_evaluations_total"])
	assert.True(t, names["keygate_build_info"])
	assert.True(t, names["keygate_http_requests_total"])
	assert.True(t, names["keygate_secrets_operation_total"])
}

func TestInitApplication_InvalidProvider(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig(t, t.TempDir())
	cfg.Spec.APIKey.Clients.Provider = string(secrets.ProviderTypeVault)

	_, err := initApplication(cfg, observability.NopLogger())
	assert.Error(t, err)
}

func TestRunKeygate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeClients(t, dir, "client-42: k-123\n")

	app, err := initApplication(newTestConfig(t, dir), observability.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runKeygate(ctx, app, cliFlags{}) }()

	require.Eventually(t, func() bool { return app.healthChecker.Readiness(context.Background()).Status == health.StatusHealthy },
		5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runKeygate did not return after cancellation")
	}
}
