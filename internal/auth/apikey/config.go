package apikey

import (
	"errors"
	"fmt"
	"time"
)

// Store types.
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

// Config represents API key gate configuration.
type Config struct {
	// Route configures credential extraction for the route checkpoint.
	Route CheckpointConfig `yaml:"route" json:"route"`

	// Spec configures credential extraction for the spec checkpoint.
	Spec CheckpointConfig `yaml:"spec" json:"spec"`

	// Clients names the secret holding client names and keys.
	Clients ClientsConfig `yaml:"clients" json:"clients"`

	// Store configures the identity store.
	Store *StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`
}

// CheckpointConfig lists the request sources that make up a credential.
// Header values come first, in order, followed by query arguments.
type CheckpointConfig struct {
	Headers []string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Query   []string `yaml:"query,omitempty" json:"query,omitempty"`
}

// ClientsConfig references the client secret.
type ClientsConfig struct {
	// Provider is the secrets provider type (local, env, kubernetes, vault).
	Provider string `yaml:"provider" json:"provider"`

	// Path is the provider-specific secret path.
	Path string `yaml:"path" json:"path"`
}

// StoreConfig configures the identity store.
type StoreConfig struct {
	// Type is the store type (memory, redis).
	Type string `yaml:"type" json:"type"`

	// Redis configures the Redis store.
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the Redis identity store.
type RedisConfig struct {
	Address   string `yaml:"address" json:"address"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`

	// CircuitBreaker guards lookups.
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
}

// CircuitBreakerConfig configures the circuit breaker around the store.
type CircuitBreakerConfig struct {
	Threshold int           `yaml:"threshold" json:"threshold"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// Validate validates the API key configuration.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("apikey config is required")
	}
	if err := c.Route.validate(); err != nil {
		return fmt.Errorf("route: %w", err)
	}
	if err := c.Spec.validate(); err != nil {
		return fmt.Errorf("spec: %w", err)
	}
	if c.Clients.Provider == "" {
		return errors.New("clients.provider is required")
	}
	if c.Clients.Path == "" {
		return errors.New("clients.path is required")
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

func (c CheckpointConfig) validate() error {
	if len(c.Headers) == 0 && len(c.Query) == 0 {
		return errors.New("at least one header or query source is required")
	}
	for i, h := range c.Headers {
		if h == "" {
			return fmt.Errorf("headers[%d]: name is required", i)
		}
	}
	for i, q := range c.Query {
		if q == "" {
			return fmt.Errorf("query[%d]: name is required", i)
		}
	}
	return nil
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c == nil {
		return nil
	}

	switch c.Type {
	case "", StoreTypeMemory:
		return nil
	case StoreTypeRedis:
		if c.Redis == nil || c.Redis.Address == "" {
			return errors.New("redis.address is required for redis store")
		}
		if cb := c.Redis.CircuitBreaker; cb != nil {
			if cb.Threshold < 0 {
				return errors.New("redis.circuitBreaker.threshold must be non-negative")
			}
			if cb.Timeout < 0 {
				return errors.New("redis.circuitBreaker.timeout must be non-negative")
			}
		}
		return nil
	default:
		return fmt.Errorf("invalid store type: %s", c.Type)
	}
}

// GetEffectiveStoreType returns the configured store type or memory.
func (c *Config) GetEffectiveStoreType() string {
	if c.Store == nil || c.Store.Type == "" {
		return StoreTypeMemory
	}
	return c.Store.Type
}

// Extractor builds the credential extractor for the checkpoint config.
func (c CheckpointConfig) Extractor() *ConcatExtractor {
	return NewHeaderQueryExtractor(c.Headers, c.Query)
}

// DefaultConfig returns a default API key configuration.
func DefaultConfig() *Config {
	return &Config{
		Route: CheckpointConfig{
			Headers: []string{"X-API-Key"},
		},
		Spec: CheckpointConfig{
			Headers: []string{"X-API-Key"},
		},
		Clients: ClientsConfig{
			Provider: "local",
			Path:     "configs/clients.yaml",
		},
		Store: &StoreConfig{
			Type: StoreTypeMemory,
		},
	}
}
