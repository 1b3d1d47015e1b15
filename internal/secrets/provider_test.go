package secrets

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProviderType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		expected    ProviderType
		expectError bool
	}{
		{name: "kubernetes provider", input: "kubernetes", expected: ProviderTypeKubernetes},
		{name: "vault provider", input: "vault", expected: ProviderTypeVault},
		{name: "local provider", input: "local", expected: ProviderTypeLocal},
		{name: "env provider", input: "env", expected: ProviderTypeEnv},
		{name: "invalid provider", input: "invalid", expectError: true},
		{name: "empty provider", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result, err := ValidateProviderType(tt.input)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidProviderType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSecret_GetString(t *testing.T) {
	t.Parallel()

	secret := &Secret{Data: map[string][]byte{"client-42": []byte("k-123")}}

	value, ok := secret.GetString("client-42")
	assert.True(t, ok)
	assert.Equal(t, "k-123", value)

	_, ok = secret.GetString("missing")
	assert.False(t, ok)

	var nilSecret *Secret
	_, ok = nilSecret.GetString("client-42")
	assert.False(t, ok)
	assert.Equal(t, 0, nilSecret.Len())
	assert.Equal(t, 1, secret.Len())
}

func TestSecret_String(t *testing.T) {
	t.Parallel()

	secret := &Secret{
		Name:     "clients",
		Source:   "vault",
		Location: "secret/keygate/clients",
		Version:  "3",
		Data:     map[string][]byte{"client-42": []byte("k-123")},
	}

	assert.Equal(t, `vault secret "clients" at secret/keygate/clients (1 entries, version 3)`, secret.String())
	assert.NotContains(t, secret.String(), "k-123")

	var nilSecret *Secret
	assert.Equal(t, "<nil secret>", nilSecret.String())
}

func TestMustRegisterMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)
	// Second registration is tolerated.
	assert.NotPanics(t, func() { MustRegisterMetrics(reg) })

	provider := ProviderType("metrics-test")
	start := time.Now()
	track(provider, opGet, start, nil)
	track(provider, opGet, start, errors.New("boom"))
	track(provider, opHealthCheck, start, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		secretsOperationTotal.WithLabelValues("metrics-test", "get", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		secretsOperationTotal.WithLabelValues("metrics-test", "get", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		secretsProviderHealth.WithLabelValues("metrics-test")))

	track(provider, opHealthCheck, start, errors.New("down"))
	assert.Equal(t, 0.0, testutil.ToFloat64(
		secretsProviderHealth.WithLabelValues("metrics-test")))
}
