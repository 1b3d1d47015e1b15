package secrets

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Config holds connection settings for every supported backend.
// Only the section of the selected provider is consulted.
type Config struct {
	Kubernetes *KubernetesConfig `yaml:"kubernetes,omitempty" json:"kubernetes,omitempty"`
	Vault      *VaultConfig      `yaml:"vault,omitempty" json:"vault,omitempty"`
	Local      *LocalConfig      `yaml:"local,omitempty" json:"local,omitempty"`
	Env        *EnvConfig        `yaml:"env,omitempty" json:"env,omitempty"`
}

// KubernetesConfig configures the Kubernetes provider.
type KubernetesConfig struct {
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// VaultConfig configures the Vault provider.
type VaultConfig struct {
	Address    string        `yaml:"address" json:"address"`
	Token      string        `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace  string        `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	MountPath  string        `yaml:"mountPath,omitempty" json:"mountPath,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries int           `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
}

// LocalConfig configures the local file provider.
type LocalConfig struct {
	BasePath string `yaml:"basePath,omitempty" json:"basePath,omitempty"`
}

// EnvConfig configures the environment variable provider.
type EnvConfig struct {
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// Validate checks the section required by providerType.
func (c *Config) Validate(providerType ProviderType) error {
	switch providerType {
	case ProviderTypeVault:
		if c == nil || c.Vault == nil {
			return fmt.Errorf("%w: vault section is required for vault provider", ErrProviderNotConfigured)
		}
		if c.Vault.Address == "" {
			return fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
		}
		if c.Vault.Token == "" {
			return fmt.Errorf("%w: vault token is required", ErrProviderNotConfigured)
		}
		if c.Vault.Timeout < 0 {
			return fmt.Errorf("%w: vault timeout must be non-negative", ErrProviderNotConfigured)
		}
	case ProviderTypeKubernetes, ProviderTypeLocal, ProviderTypeEnv:
	default:
		_, err := ValidateProviderType(string(providerType))
		return err
	}
	return nil
}

// ProviderConfig holds configuration for creating providers
type ProviderConfig struct {
	// Type is the provider type
	Type ProviderType
	// KubeClient is the Kubernetes client. Built from the ambient
	// kubeconfig when nil and the kubernetes provider is selected.
	KubeClient client.Client
	// Namespace is the default namespace for Kubernetes secrets
	Namespace string
	// LocalBasePath is the base path for local file secrets
	LocalBasePath string
	// EnvPrefix is the prefix for environment variable secrets
	EnvPrefix string
	// VaultConfig holds Vault-specific configuration
	VaultConfig *VaultProviderConfig
	// Logger is the logger instance
	Logger *zap.Logger
}

// ProviderConfig builds the factory input for providerType from c.
func (c *Config) ProviderConfig(providerType ProviderType, logger *zap.Logger) *ProviderConfig {
	pc := &ProviderConfig{Type: providerType, Logger: logger}
	if c == nil {
		return pc
	}
	if c.Kubernetes != nil {
		pc.Namespace = c.Kubernetes.Namespace
	}
	if c.Local != nil {
		pc.LocalBasePath = c.Local.BasePath
	}
	if c.Env != nil {
		pc.EnvPrefix = c.Env.Prefix
	}
	if c.Vault != nil {
		pc.VaultConfig = &VaultProviderConfig{
			Address:    c.Vault.Address,
			Token:      c.Vault.Token,
			Namespace:  c.Vault.Namespace,
			MountPath:  c.Vault.MountPath,
			Timeout:    c.Vault.Timeout,
			MaxRetries: c.Vault.MaxRetries,
		}
	}
	return pc
}

// NewProvider creates a new secrets provider based on config
func NewProvider(cfg *ProviderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrProviderNotConfigured)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case ProviderTypeKubernetes:
		kubeClient := cfg.KubeClient
		if kubeClient == nil {
			var err error
			if kubeClient, err = NewKubernetesClient(); err != nil {
				return nil, err
			}
		}
		return NewKubernetesProvider(&KubernetesProviderConfig{
			Client:           kubeClient,
			DefaultNamespace: cfg.Namespace,
			Logger:           logger,
		})

	case ProviderTypeVault:
		if cfg.VaultConfig == nil {
			return nil, fmt.Errorf("%w: vault config is required for vault provider", ErrProviderNotConfigured)
		}
		vaultCfg := *cfg.VaultConfig
		vaultCfg.Logger = logger
		return NewVaultProvider(&vaultCfg)

	case ProviderTypeLocal:
		return NewLocalProvider(&LocalProviderConfig{
			BasePath: cfg.LocalBasePath,
			Logger:   logger,
		})

	case ProviderTypeEnv:
		return NewEnvProvider(&EnvProviderConfig{
			Prefix: cfg.EnvPrefix,
			Logger: logger,
		})

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderType, cfg.Type)
	}
}
