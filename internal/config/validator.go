package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/keygate/internal/auth/apikey"
	"github.com/vyrodovalexey/keygate/internal/secrets"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates keygate configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(config *GatewayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateServer(&config.Spec.Server, "spec.server")
	v.validateMetrics(&config.Spec.Metrics, &config.Spec.Server, "spec.metrics")
	v.validateTracing(&config.Spec.Tracing, "spec.tracing")
	v.validateLogging(&config.Spec.Logging, "spec.logging")
	v.validateAPIKey(config.Spec.APIKey, config.Spec.Secrets)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// validateRoot validates root-level fields.
func (v *Validator) validateRoot(config *GatewayConfig) {
	if config.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(config.APIVersion, "keygate.io/") {
		v.addError("apiVersion", "apiVersion must start with 'keygate.io/'")
	}

	if config.Kind == "" {
		v.addError("kind", "kind is required")
	} else if config.Kind != Kind {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", Kind))
	}

	if config.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateServer(server *ServerConfig, path string) {
	if server.Address == "" {
		v.addError(path+".address", "address is required")
	}
	if server.ReadTimeout < 0 {
		v.addError(path+".readTimeout", "readTimeout cannot be negative")
	}
	if server.WriteTimeout < 0 {
		v.addError(path+".writeTimeout", "writeTimeout cannot be negative")
	}
	if server.IdleTimeout < 0 {
		v.addError(path+".idleTimeout", "idleTimeout cannot be negative")
	}
	if server.ShutdownTimeout < 0 {
		v.addError(path+".shutdownTimeout", "shutdownTimeout cannot be negative")
	}
}

func (v *Validator) validateMetrics(metrics *MetricsConfig, server *ServerConfig, path string) {
	if !metrics.Enabled {
		return
	}
	if metrics.Path != "" && !strings.HasPrefix(metrics.Path, "/") {
		v.addError(path+".path", "metrics path must start with /")
	}
	if metrics.Address != "" && metrics.Address == server.Address {
		v.addError(path+".address", "metrics address must differ from server address")
	}
}

func (v *Validator) validateTracing(tracing *TracingConfig, path string) {
	rate := tracing.GetSamplingRate()
	if rate < 0 || rate > 1 {
		v.addError(path+".samplingRate", "samplingRate must be between 0 and 1")
	}
	if tracing.Enabled && tracing.OTLPEndpoint == "" {
		v.addError(path+".otlpEndpoint", "otlpEndpoint is required when tracing is enabled")
	}
}

func (v *Validator) validateLogging(logging *LoggingConfig, path string) {
	validLevels := map[string]bool{
		"":      true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(logging.Level)] {
		v.addError(path+".level", fmt.Sprintf("invalid log level: %s", logging.Level))
	}

	validFormats := map[string]bool{
		"":        true,
		"json":    true,
		"console": true,
	}
	if !validFormats[strings.ToLower(logging.Format)] {
		v.addError(path+".format", fmt.Sprintf("invalid log format: %s", logging.Format))
	}
}

func (v *Validator) validateAPIKey(apiKey *apikey.Config, secretsCfg *secrets.Config) {
	if apiKey == nil {
		v.addError("spec.apikey", "apikey section is required")
		return
	}
	if err := apiKey.Validate(); err != nil {
		v.addError("spec.apikey", err.Error())
	}
	if apiKey.Clients.Provider == "" {
		return
	}

	providerType, err := secrets.ValidateProviderType(apiKey.Clients.Provider)
	if err != nil {
		v.addError("spec.apikey.clients.provider", err.Error())
		return
	}
	if err := secretsCfg.Validate(providerType); err != nil {
		v.addError("spec.secrets", err.Error())
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
