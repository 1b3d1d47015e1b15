package config

import (
	"time"

	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/secrets"
)

// Config envelope constants.
const (
	APIVersion = "keygate.io/v1"
	Kind       = "KeyGate"
)

// Default values applied to unset fields.
const (
	DefaultServerAddress   = ":8080"
	DefaultMetricsAddress  = ":9090"
	DefaultMetricsPath     = "/metrics"
	DefaultServiceName     = "keygate"
	DefaultReadTimeout     = 5 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultLogOutput       = "stdout"
)

// GatewayConfig is the root configuration document.
type GatewayConfig struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`
}

// Metadata identifies the deployment.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Spec holds the service settings.
type Spec struct {
	Server  ServerConfig    `yaml:"server" json:"server"`
	Metrics MetricsConfig   `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig   `yaml:"tracing" json:"tracing"`
	Logging LoggingConfig   `yaml:"logging" json:"logging"`
	Secrets *secrets.Config `yaml:"secrets,omitempty" json:"secrets,omitempty"`
	APIKey  *apikey.Config  `yaml:"apikey,omitempty" json:"apikey,omitempty"`
}

// ServerConfig configures the authorization listener.
type ServerConfig struct {
	Address         string        `yaml:"address,omitempty" json:"address,omitempty"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     time.Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool     `yaml:"enabled" json:"enabled"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	OTLPEndpoint string   `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string   `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// GetSamplingRate returns the configured rate, 1.0 when unset.
func (t TracingConfig) GetSamplingRate() float64 {
	if t.SamplingRate == nil {
		return 1.0
	}
	return *t.SamplingRate
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// DefaultConfig returns a complete configuration with every default set.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{
		APIVersion: APIVersion,
		Kind:       Kind,
		Metadata:   Metadata{Name: DefaultServiceName},
		Spec: Spec{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields in place.
func (c *GatewayConfig) ApplyDefaults() {
	s := &c.Spec

	if s.Server.Address == "" {
		s.Server.Address = DefaultServerAddress
	}
	if s.Server.ReadTimeout == 0 {
		s.Server.ReadTimeout = DefaultReadTimeout
	}
	if s.Server.WriteTimeout == 0 {
		s.Server.WriteTimeout = DefaultWriteTimeout
	}
	if s.Server.IdleTimeout == 0 {
		s.Server.IdleTimeout = DefaultIdleTimeout
	}
	if s.Server.ShutdownTimeout == 0 {
		s.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if s.Metrics.Address == "" {
		s.Metrics.Address = DefaultMetricsAddress
	}
	if s.Metrics.Path == "" {
		s.Metrics.Path = DefaultMetricsPath
	}

	if s.Tracing.ServiceName == "" {
		s.Tracing.ServiceName = DefaultServiceName
	}

	if s.Logging.Level == "" {
		s.Logging.Level = DefaultLogLevel
	}
	if s.Logging.Format == "" {
		s.Logging.Format = DefaultLogFormat
	}
	if s.Logging.Output == "" {
		s.Logging.Output = DefaultLogOutput
	}

	if s.Secrets == nil {
		s.Secrets = &secrets.Config{}
	}

	if s.APIKey == nil {
		s.APIKey = apikey.DefaultConfig()
	}
	if s.APIKey.Store == nil {
		s.APIKey.Store = &apikey.StoreConfig{Type: apikey.StoreTypeMemory}
	}
}

// ClientsProvider returns the secrets provider type of the client secret.
func (c *GatewayConfig) ClientsProvider() secrets.ProviderType {
	if c.Spec.APIKey == nil {
		return ""
	}
	return secrets.ProviderType(c.Spec.APIKey.Clients.Provider)
}
