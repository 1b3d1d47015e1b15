package secrets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// DefaultVaultMountPath is the default KV v2 secrets engine mount.
const DefaultVaultMountPath = "secret"

// defaultVaultTimeout bounds every Vault request.
const defaultVaultTimeout = 10 * time.Second

var errVaultSealed = errors.New("vault is sealed")

// VaultProviderConfig holds configuration for the Vault secrets provider
type VaultProviderConfig struct {
	// Address is the Vault server address
	Address string
	// Token is the Vault token
	Token string
	// Namespace is the Vault namespace (Enterprise only)
	Namespace string
	// MountPath is the KV v2 secrets engine mount point
	MountPath string
	// Timeout is the request timeout
	Timeout time.Duration
	// MaxRetries is the maximum number of retries
	MaxRetries int
	// Logger is the logger instance
	Logger *zap.Logger
}

// VaultProvider implements the Provider interface using the Vault KV v2 engine.
type VaultProvider struct {
	client    *vaultapi.Client
	mountPath string
	logger    *zap.Logger
}

// NewVaultProvider creates a new Vault secrets provider with token auth.
func NewVaultProvider(cfg *VaultProviderConfig) (*VaultProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrProviderNotConfigured)
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: vault token is required", ErrProviderNotConfigured)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mountPath := strings.Trim(cfg.MountPath, "/")
	if mountPath == "" {
		mountPath = DefaultVaultMountPath
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVaultTimeout
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address
	apiConfig.Timeout = timeout
	if cfg.MaxRetries > 0 {
		apiConfig.MaxRetries = cfg.MaxRetries
	}

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	api.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	return &VaultProvider{
		client:    api,
		mountPath: mountPath,
		logger:    logger.With(zap.String("component", "vault")),
	}, nil
}

// Type returns the provider type
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// GetSecret retrieves the latest version of a KV v2 secret.
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (secret *Secret, err error) {
	defer func(start time.Time) { track(p.Type(), opGet, start, err) }(time.Now())

	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrInvalidPath
	}

	p.logger.Debug("Getting secret from Vault",
		zap.String("mount", p.mountPath),
		zap.String("path", path),
	)

	kvSecret, err := p.client.KVv2(p.mountPath).Get(ctx, path)
	if err != nil {
		if errors.Is(err, vaultapi.ErrSecretNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrSecretNotFound, p.mountPath, path)
		}
		p.logger.Error("Failed to read secret from Vault",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: failed to read secret from vault: %w", ErrProviderUnavailable, err)
	}
	if kvSecret == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrSecretNotFound, p.mountPath, path)
	}

	secret = &Secret{
		Name:     path,
		Data:     flattenValues(kvSecret.Data, p.logger),
		Source:   string(ProviderTypeVault),
		Location: p.mountPath + "/" + path,
	}
	if meta := kvSecret.VersionMetadata; meta != nil {
		secret.Version = strconv.Itoa(meta.Version)
		secret.UpdatedAt = meta.CreatedTime
	}

	p.logger.Debug("Successfully retrieved secret from Vault",
		zap.String("path", path),
		zap.Int("keys", len(secret.Data)),
	)

	return secret, nil
}

// HealthCheck reports an error when Vault is unreachable or sealed.
func (p *VaultProvider) HealthCheck(ctx context.Context) (err error) {
	defer func(start time.Time) { track(p.Type(), opHealthCheck, start, err) }(time.Now())

	health, healthErr := p.client.Sys().HealthWithContext(ctx)
	if healthErr == nil && health.Sealed {
		healthErr = errVaultSealed
	}
	if healthErr != nil {
		p.logger.Error("Vault provider health check failed", zap.Error(healthErr))
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, healthErr)
	}
	return nil
}

// Close cleans up provider resources
func (p *VaultProvider) Close() error {
	p.logger.Debug("Closing Vault secrets provider")
	return nil
}
