package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultEnvPrefix is the default prefix for environment variable secrets
const DefaultEnvPrefix = "KEYGATE_SECRET_"

// EnvProviderConfig holds configuration for the environment variable secrets provider
type EnvProviderConfig struct {
	// Prefix is the prefix for environment variables
	// Default: "KEYGATE_SECRET_"
	Prefix string
	// Logger is the logger instance
	Logger *zap.Logger
}

// EnvProvider implements the Provider interface using environment variables.
// Path "clients" maps to "{PREFIX}CLIENTS". A JSON object value yields one
// entry per member. When no such variable exists, variables named
// "{PREFIX}CLIENTS__<NAME>" are collected instead, one entry per variable.
type EnvProvider struct {
	prefix string
	logger *zap.Logger
}

// NewEnvProvider creates a new environment variable secrets provider
func NewEnvProvider(cfg *EnvProviderConfig) (*EnvProvider, error) {
	if cfg == nil {
		cfg = &EnvProviderConfig{}
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EnvProvider{
		prefix: prefix,
		logger: logger,
	}, nil
}

// Type returns the provider type
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// normalizeEnvName converts a secret path to an environment variable name
// - Converts to uppercase
// - Replaces dashes, dots and slashes with underscores
// - Adds the configured prefix
func (p *EnvProvider) normalizeEnvName(path string) string {
	name := strings.ToUpper(path)
	name = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name)
	return p.prefix + name
}

// entryName converts a variable suffix back to a client name.
func entryName(suffix string) string {
	return strings.ReplaceAll(strings.ToLower(suffix), "_", "-")
}

// GetSecret retrieves a secret from environment variables
func (p *EnvProvider) GetSecret(_ context.Context, path string) (secret *Secret, err error) {
	defer func(start time.Time) { track(p.Type(), opGet, start, err) }(time.Now())

	if path == "" {
		return nil, ErrInvalidPath
	}

	envName := p.normalizeEnvName(path)

	p.logger.Debug("Getting secret from environment variable",
		zap.String("path", path),
		zap.String("envVar", envName),
	)

	if value, exists := os.LookupEnv(envName); exists {
		return p.secretFromValue(path, envName, value), nil
	}

	data := p.collectEntries(envName + "__")
	if len(data) == 0 {
		p.logger.Debug("Environment variable not found",
			zap.String("envVar", envName),
		)
		return nil, fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, envName)
	}

	return &Secret{
		Name: path,
		Data: data,
		Source:   "environment",
		Location: envName + "__*",
	}, nil
}

// secretFromValue decodes a single variable. JSON objects expand to entries,
// anything else is stored under "value".
func (p *EnvProvider) secretFromValue(path, envName, value string) *Secret {
	var data map[string][]byte

	var jsonData map[string]interface{}
	if err := json.Unmarshal([]byte(value), &jsonData); err == nil {
		data = flattenValues(jsonData, p.logger)
	} else {
		data = map[string][]byte{"value": []byte(value)}
	}

	p.logger.Debug("Successfully retrieved secret from environment",
		zap.String("path", path),
		zap.String("envVar", envName),
		zap.Int("keys", len(data)),
	)

	return &Secret{
		Name: path,
		Data: data,
		Source:   "environment",
		Location: envName,
	}
}

// collectEntries gathers every variable starting with prefix.
func (p *EnvProvider) collectEntries(prefix string) map[string][]byte {
	data := make(map[string][]byte)
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		suffix := strings.TrimPrefix(name, prefix)
		if suffix == "" {
			continue
		}
		data[entryName(suffix)] = []byte(value)
	}
	return data
}

// HealthCheck always succeeds; the process environment cannot become unavailable.
func (p *EnvProvider) HealthCheck(_ context.Context) error {
	track(p.Type(), opHealthCheck, time.Now(), nil)
	return nil
}

// Close cleans up provider resources
func (p *EnvProvider) Close() error {
	p.logger.Debug("Closing environment secrets provider")
	return nil
}
