package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"go.uber.org/zap"
)

// KubernetesProviderConfig holds configuration for the Kubernetes secrets provider
type KubernetesProviderConfig struct {
	// Client is the Kubernetes client
	Client client.Client
	// DefaultNamespace is the default namespace for secrets without explicit namespace
	DefaultNamespace string
	// Logger is the logger instance
	Logger *zap.Logger
}

// KubernetesProvider implements the Provider interface using Kubernetes Secrets.
// Every key of the Secret's data is one entry.
type KubernetesProvider struct {
	client           client.Client
	defaultNamespace string
	logger           *zap.Logger
}

// NewKubernetesProvider creates a new Kubernetes secrets provider
func NewKubernetesProvider(cfg *KubernetesProviderConfig) (*KubernetesProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrProviderNotConfigured)
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: kubernetes client is required", ErrProviderNotConfigured)
	}

	defaultNs := cfg.DefaultNamespace
	if defaultNs == "" {
		defaultNs = "default"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &KubernetesProvider{
		client:           cfg.Client,
		defaultNamespace: defaultNs,
		logger:           logger,
	}, nil
}

// NewKubernetesClient builds a client from the ambient kubeconfig or
// in-cluster service account, able to read core/v1 Secrets.
func NewKubernetesClient() (client.Client, error) {
	restConfig, err := ctrlconfig.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load kubernetes config: %w", ErrProviderNotConfigured, err)
	}

	scheme := runtime.NewScheme()
	if err := corev1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("failed to build kubernetes scheme: %w", err)
	}

	c, err := client.New(restConfig, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return c, nil
}

// Type returns the provider type
func (p *KubernetesProvider) Type() ProviderType {
	return ProviderTypeKubernetes
}

// parsePath parses a secret path into namespace and name
// Supported formats:
// - "secret-name" -> uses default namespace
// - "namespace/secret-name" -> uses specified namespace
func (p *KubernetesProvider) parsePath(path string) (namespace, name string, err error) {
	if path == "" {
		return "", "", ErrInvalidPath
	}

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 1 {
		return p.defaultNamespace, parts[0], nil
	}
	if parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("%w: invalid path format: %s", ErrInvalidPath, path)
	}
	return parts[0], parts[1], nil
}

// GetSecret retrieves a secret by path
func (p *KubernetesProvider) GetSecret(ctx context.Context, path string) (result *Secret, err error) {
	defer func(start time.Time) { track(p.Type(), opGet, start, err) }(time.Now())

	namespace, name, err := p.parsePath(path)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Getting Kubernetes secret",
		zap.String("namespace", namespace),
		zap.String("name", name),
	)

	secret := &corev1.Secret{}
	if getErr := p.client.Get(ctx, client.ObjectKey{Namespace: namespace, Name: name}, secret); getErr != nil {
		if errors.IsNotFound(getErr) {
			p.logger.Debug("Secret not found",
				zap.String("namespace", namespace),
				zap.String("name", name),
			)
			return nil, fmt.Errorf("%w: %s/%s", ErrSecretNotFound, namespace, name)
		}
		p.logger.Error("Failed to get secret",
			zap.String("namespace", namespace),
			zap.String("name", name),
			zap.Error(getErr),
		)
		return nil, fmt.Errorf("%w: failed to get secret %s/%s: %w", ErrProviderUnavailable, namespace, name, getErr)
	}

	result = &Secret{
		Name:      name,
		Namespace: namespace,
		Data:      secret.Data,
		Source:    string(ProviderTypeKubernetes),
		Location:  namespace + "/" + name,
		Version:   secret.ResourceVersion,
		UpdatedAt: secret.CreationTimestamp.Time,
	}

	p.logger.Debug("Successfully retrieved secret",
		zap.String("namespace", namespace),
		zap.String("name", name),
		zap.Int("keys", len(result.Data)),
	)

	return result, nil
}

// HealthCheck checks if the Kubernetes API is accessible
func (p *KubernetesProvider) HealthCheck(ctx context.Context) (err error) {
	defer func(start time.Time) { track(p.Type(), opHealthCheck, start, err) }(time.Now())

	secretList := &corev1.SecretList{}
	if listErr := p.client.List(ctx, secretList, client.InNamespace(p.defaultNamespace), client.Limit(1)); listErr != nil {
		p.logger.Error("Kubernetes provider health check failed", zap.Error(listErr))
		return fmt.Errorf("%w: kubernetes API health check failed: %w", ErrProviderUnavailable, listErr)
	}
	return nil
}

// Close cleans up provider resources
func (p *KubernetesProvider) Close() error {
	p.logger.Debug("Closing Kubernetes secrets provider")
	return nil
}
