// Package secrets loads API client key material from pluggable backends:
// Kubernetes Secrets, HashiCorp Vault, local files and environment variables.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderType names a secrets backend.
type ProviderType string

// Supported backends.
const (
	ProviderTypeKubernetes ProviderType = "kubernetes"
	ProviderTypeVault      ProviderType = "vault"
	ProviderTypeLocal      ProviderType = "local"
	ProviderTypeEnv        ProviderType = "env"
)

var (
	ErrSecretNotFound        = errors.New("secret not found")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrInvalidPath           = errors.New("invalid secret path")
	ErrProviderUnavailable   = errors.New("provider unavailable")
	ErrInvalidProviderType   = errors.New("invalid provider type")
)

// Secret is a set of named values read from a backend. For the client
// secret every entry maps a client name to its raw API key.
type Secret struct {
	Name      string
	Namespace string
	Data      map[string][]byte

	// Source is the backend encoding the secret came from, e.g. "yaml",
	// "directory", "environment", "kubernetes" or "vault".
	Source string
	// Location is where the secret was read: a file, variable or object path.
	Location  string
	Version   string
	UpdatedAt time.Time
}

// GetString returns the entry for key.
func (s *Secret) GetString(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.Data[key]
	return string(v), ok
}

// Len returns the number of entries.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Data)
}

// String describes the secret without its values, so it is safe to log.
func (s *Secret) String() string {
	if s == nil {
		return "<nil secret>"
	}
	desc := fmt.Sprintf("%s secret %q at %s (%d entries", s.Source, s.Name, s.Location, len(s.Data))
	if s.Version != "" {
		desc += ", version " + s.Version
	}
	return desc + ")"
}

// Provider reads secrets from one backend.
//
// The path format depends on the backend:
//   - kubernetes: "namespace/name" or "name" in the default namespace
//   - vault: "path/to/secret" under the configured KV v2 mount
//   - local: "clients", "clients.yaml" or a directory, relative to the base path
//   - env: "clients", read from the variable(s) with the configured prefix
type Provider interface {
	Type() ProviderType
	GetSecret(ctx context.Context, path string) (*Secret, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

type operation string

const (
	opGet         operation = "get"
	opHealthCheck operation = "health_check"
)

var (
	secretsOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keygate",
			Subsystem: "secrets",
			Name:      "operation_duration_seconds",
			Help:      "Duration of secrets provider operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "operation", "result"},
	)

	secretsOperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keygate",
			Subsystem: "secrets",
			Name:      "operation_total",
			Help:      "Total number of secrets provider operations",
		},
		[]string{"provider", "operation", "result"},
	)

	secretsProviderHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "keygate",
			Subsystem: "secrets",
			Name:      "provider_healthy",
			Help:      "Whether the secrets provider is healthy (1) or not (0)",
		},
		[]string{"provider"},
	)
)

// MustRegisterMetrics registers the secrets provider collectors with reg.
// Collectors that are already registered are ignored.
func MustRegisterMetrics(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		secretsOperationDuration,
		secretsOperationTotal,
		secretsProviderHealth,
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				panic(err)
			}
		}
	}
}

// track records the outcome of op started at start. Health checks also
// update the provider_healthy gauge.
func track(provider ProviderType, op operation, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	labels := []string{string(provider), string(op), result}
	secretsOperationDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	secretsOperationTotal.WithLabelValues(labels...).Inc()

	if op == opHealthCheck {
		healthy := 1.0
		if err != nil {
			healthy = 0
		}
		secretsProviderHealth.WithLabelValues(string(provider)).Set(healthy)
	}
}

// ValidateProviderType converts s to a ProviderType.
func ValidateProviderType(s string) (ProviderType, error) {
	switch t := ProviderType(s); t {
	case ProviderTypeKubernetes, ProviderTypeVault, ProviderTypeLocal, ProviderTypeEnv:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q, must be one of: kubernetes, vault, local, env", ErrInvalidProviderType, s)
	}
}
