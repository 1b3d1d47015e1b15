package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testVaultToken = "test-token"

// newFakeVault serves KV v2 reads for the given mount from secrets.
func newFakeVault(t *testing.T, mount string, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sys/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"initialized": true,
			"sealed":      false,
			"standby":     false,
			"version":     "1.17.0",
		})
	})
	prefix := "/v1/" + mount + "/data/"
	mux.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("X-Vault-Token") != testVaultToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		data, ok := secrets[r.URL.Path[len(prefix):]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data": data,
				"metadata": map[string]interface{}{
					"version":       3,
					"created_time":  "2026-01-02T03:04:05Z",
					"deletion_time": "",
					"destroyed":     false,
				},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewVaultProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *VaultProviderConfig
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "missing address", cfg: &VaultProviderConfig{Token: "t"}, wantErr: true},
		{name: "missing token", cfg: &VaultProviderConfig{Address: "http://127.0.0.1:8200"}, wantErr: true},
		{name: "valid", cfg: &VaultProviderConfig{Address: "http://127.0.0.1:8200", Token: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			provider, err := NewVaultProvider(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrProviderNotConfigured)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultVaultMountPath, provider.mountPath)
			assert.Equal(t, ProviderTypeVault, provider.Type())
		})
	}
}

func TestVaultProvider_GetSecret(t *testing.T) {
	t.Parallel()

	server := newFakeVault(t, "kv", map[string]map[string]interface{}{
		"keygate/clients": {
			"client-42": "k-123",
			"billing":   "k-billing",
		},
	})

	provider, err := NewVaultProvider(&VaultProviderConfig{
		Address:    server.URL,
		Token:      testVaultToken,
		MountPath:  "/kv/",
		MaxRetries: 1,
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	ctx := context.Background()

	secret, err := provider.GetSecret(ctx, "keygate/clients")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"client-42": []byte("k-123"),
		"billing":   []byte("k-billing"),
	}, secret.Data)
	assert.Equal(t, "3", secret.Version)
	assert.Equal(t, "kv/keygate/clients", secret.Location)
	assert.Equal(t, 2026, secret.UpdatedAt.Year())

	_, err = provider.GetSecret(ctx, "keygate/missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = provider.GetSecret(ctx, "/")
	assert.ErrorIs(t, err, ErrInvalidPath)

	assert.NoError(t, provider.HealthCheck(ctx))
	assert.NoError(t, provider.Close())
}

func TestVaultProvider_GetSecret_PermissionDenied(t *testing.T) {
	t.Parallel()

	server := newFakeVault(t, "secret", nil)

	provider, err := NewVaultProvider(&VaultProviderConfig{
		Address: server.URL,
		Token:   "wrong-token",
	})
	require.NoError(t, err)

	_, err = provider.GetSecret(context.Background(), "keygate/clients")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
