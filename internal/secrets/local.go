package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// LocalProviderConfig holds configuration for the local file secrets provider
type LocalProviderConfig struct {
	// BasePath is the directory relative paths are resolved against
	BasePath string
	// Logger is the logger instance
	Logger *zap.Logger
}

// LocalProvider implements the Provider interface using local files.
// A secret is either a YAML/JSON file holding a flat map or a directory
// where every regular file is one entry (file name is the key).
type LocalProvider struct {
	basePath string
	logger   *zap.Logger
}

// NewLocalProvider creates a new local file secrets provider
func NewLocalProvider(cfg *LocalProviderConfig) (*LocalProvider, error) {
	if cfg == nil {
		cfg = &LocalProviderConfig{}
	}

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "."
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base path %q: %w", ErrProviderNotConfigured, basePath, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LocalProvider{
		basePath: absPath,
		logger:   logger,
	}, nil
}

// Type returns the provider type
func (p *LocalProvider) Type() ProviderType {
	return ProviderTypeLocal
}

// BasePath returns the absolute base directory.
func (p *LocalProvider) BasePath() string {
	return p.basePath
}

// resolvePath validates path and returns its absolute location.
func (p *LocalProvider) resolvePath(path string) (string, error) {
	if path == "" {
		return "", ErrInvalidPath
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes base directory: %s", ErrInvalidPath, path)
	}
	return filepath.Join(p.basePath, cleanPath), nil
}

// GetSecret retrieves a secret by path.
// Tries, in order:
// 1. The exact file or directory at path
// 2. path + ".yaml", ".yml", ".json"
func (p *LocalProvider) GetSecret(_ context.Context, path string) (secret *Secret, err error) {
	defer func(start time.Time) { track(p.Type(), opGet, start, err) }(time.Now())

	fullPath, err := p.resolvePath(path)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("Getting local secret",
		zap.String("path", path),
		zap.String("basePath", p.basePath),
	)

	candidates := []string{fullPath, fullPath + ".yaml", fullPath + ".yml", fullPath + ".json"}
	for _, candidate := range candidates {
		info, statErr := os.Stat(candidate)
		if statErr != nil {
			continue
		}
		if info.IsDir() {
			return p.readSecretFromDirectory(candidate, path)
		}
		return p.readSecretFromFile(candidate, path, info.ModTime())
	}

	p.logger.Debug("Secret not found in any format",
		zap.String("path", path),
	)
	return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
}

// readSecretFromDirectory reads a secret from a directory where each file is a key
func (p *LocalProvider) readSecretFromDirectory(dirPath, name string) (*Secret, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	data := make(map[string][]byte)
	var modTime time.Time
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		// G304: filePath is built from the configured directory and a listed entry
		content, err := os.ReadFile(filepath.Clean(filePath))
		if err != nil {
			p.logger.Warn("Failed to read key file",
				zap.String("file", filePath),
				zap.Error(err),
			)
			continue
		}

		if info, infoErr := entry.Info(); infoErr == nil && info.ModTime().After(modTime) {
			modTime = info.ModTime()
		}

		// Trim trailing newline (common in mounted secret files)
		data[entry.Name()] = []byte(strings.TrimRight(string(content), "\r\n"))
	}

	return &Secret{
		Name:      name,
		Data:      data,
		Source:    "directory",
		Location:  dirPath,
		UpdatedAt: modTime,
	}, nil
}

// readSecretFromFile reads a secret from a YAML or JSON file holding a flat map.
func (p *LocalProvider) readSecretFromFile(filePath, name string, modTime time.Time) (*Secret, error) {
	// G304: filePath comes from trusted configuration
	content, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file: %w", err)
	}

	source := "yaml"
	var rawData map[string]interface{}
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		source = "json"
		err = json.Unmarshal(content, &rawData)
	} else {
		err = yaml.Unmarshal(content, &rawData)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s secret file %s: %w", source, filePath, err)
	}

	return &Secret{
		Name:      name,
		Data:      flattenValues(rawData, p.logger),
		Source:    source,
		Location:  filePath,
		UpdatedAt: modTime,
	}, nil
}

// flattenValues converts decoded values to bytes. Non-string values are JSON encoded.
func flattenValues(rawData map[string]interface{}, logger *zap.Logger) map[string][]byte {
	data := make(map[string][]byte, len(rawData))
	for k, v := range rawData {
		switch val := v.(type) {
		case string:
			data[k] = []byte(val)
		case []byte:
			data[k] = val
		case nil:
			data[k] = nil
		default:
			jsonBytes, err := json.Marshal(val)
			if err != nil {
				logger.Warn("Failed to marshal value to JSON",
					zap.String("key", k),
					zap.Error(err),
				)
				continue
			}
			data[k] = jsonBytes
		}
	}
	return data
}

// HealthCheck verifies the base directory is readable.
func (p *LocalProvider) HealthCheck(_ context.Context) (err error) {
	defer func(start time.Time) { track(p.Type(), opHealthCheck, start, err) }(time.Now())

	if info, statErr := os.Stat(p.basePath); statErr != nil || !info.IsDir() {
		return fmt.Errorf("%w: base path %s is not a readable directory", ErrProviderUnavailable, p.basePath)
	}
	return nil
}

// Close cleans up provider resources
func (p *LocalProvider) Close() error {
	p.logger.Debug("Closing local secrets provider")
	return nil
}
