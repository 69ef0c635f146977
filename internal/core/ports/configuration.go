package ports

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sufield/certkeeper/internal/core/domain"
	"github.com/sufield/certkeeper/internal/core/errors"
)

// Defaults applied when a configuration source leaves a value unset.
const (
	DefaultRefreshIntervalMinutes = 15
	DefaultKVMount                = "secret"
	DefaultSecretField            = "value"
	DefaultVaultTimeout           = 30 * time.Second
	DefaultMetricsAddress         = ":9464"
	DefaultKeystoreDirectory      = "/etc/certkeeper/keystore"
)

// Configuration represents the complete configuration for certkeeper.
type Configuration struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"omitempty,oneof=text json"`

	// RefreshIntervalMinutes is the delay between refresh cycles. Zero means
	// "as fast as the scheduler allows".
	RefreshIntervalMinutes int `mapstructure:"refresh_interval_minutes" yaml:"refresh_interval_minutes" validate:"min=0"`

	// Certificates are refreshed in order. Per-descriptor problems are
	// reported by the loader at refresh time and do not fail validation.
	Certificates []domain.Descriptor `mapstructure:"certificates" yaml:"certificates"`

	Vault    VaultConfig    `mapstructure:"vault" yaml:"vault"`
	Keystore KeystoreConfig `mapstructure:"keystore" yaml:"keystore"`
	Resolver ResolverConfig `mapstructure:"resolver" yaml:"resolver"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// VaultConfig configures the remote secret source.
type VaultConfig struct {
	// Token is the process-wide credential. Prefer VAULT_TOKEN over the file.
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	Namespace   string        `mapstructure:"namespace" yaml:"namespace,omitempty"`
	KVMount     string        `mapstructure:"kv_mount" yaml:"kv_mount" validate:"required"`
	SecretField string        `mapstructure:"secret_field" yaml:"secret_field" validate:"required"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`

	CACert             string `mapstructure:"ca_cert" yaml:"ca_cert,omitempty"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify,omitempty"`
}

// KeystoreConfig configures the local keystore source.
type KeystoreConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

// ResolverConfig tunes decryption key resolution.
type ResolverConfig struct {
	// FallbackMaxAge bounds the all-keys fallback to keys refreshed within the
	// window. Zero disables the bound.
	FallbackMaxAge time.Duration `mapstructure:"fallback_max_age" yaml:"fallback_max_age" validate:"min=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address" validate:"omitempty,hostname_port"`
}

// RefreshInterval returns the configured cadence as a duration.
func (c *Configuration) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// Validate checks the configuration as a whole. Certificate descriptors are
// deliberately left to the loader.
func (c *Configuration) Validate() error {
	if c == nil {
		return &errors.ValidationError{
			Field:   "configuration",
			Value:   nil,
			Message: "configuration cannot be nil",
		}
	}

	if err := domain.ValidateStruct(c); err != nil {
		if converted := domain.ConvertValidationErrors(err); len(converted) > 0 {
			first := converted[0]
			return &errors.ValidationError{
				Field:   first.Field,
				Value:   first.Value,
				Message: first.Message,
			}
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Address) == "" {
		return &errors.ValidationError{
			Field:   "metrics.address",
			Value:   c.Metrics.Address,
			Message: "metrics address is required when metrics are enabled",
		}
	}

	return nil
}

// DescriptorIssues reports every descriptor that will fail at refresh time.
// It is advisory: the loader skips these descriptors rather than failing.
func (c *Configuration) DescriptorIssues() []error {
	var issues []error
	seen := make(map[string]bool)

	for i, d := range c.Certificates {
		label := fmt.Sprintf("certificates[%d]", i)
		if d.Name != "" {
			label = fmt.Sprintf("%s (%s)", label, d.Name)
		}

		if strings.TrimSpace(d.Name) == "" {
			issues = append(issues, fmt.Errorf("%s: certificate_name is required", label))
		}
		key := strings.ToLower(d.Name)
		if d.Name != "" && seen[key] {
			issues = append(issues, fmt.Errorf("%s: duplicate certificate_name, later entries overwrite earlier ones", label))
		}
		seen[key] = true

		if _, err := d.SourceSpec(); err != nil {
			issues = append(issues, fmt.Errorf("%s: %w", label, err))
			continue
		}
		if err := domain.ValidateStruct(d); err != nil {
			for _, ve := range domain.ConvertValidationErrors(err) {
				issues = append(issues, fmt.Errorf("%s: %s %s", label, ve.Field, ve.Message))
			}
		}
	}

	return issues
}

// IsProductionReady checks if the configuration is suitable for production use.
func (c *Configuration) IsProductionReady() error {
	var validationErrors []error

	if strings.EqualFold(c.LogLevel, "debug") {
		validationErrors = append(validationErrors, errors.ErrVerboseLogging)
	}
	if c.Vault.InsecureSkipVerify {
		validationErrors = append(validationErrors, errors.ErrInsecureSkipVerify)
	}
	if c.Vault.Token != "" {
		validationErrors = append(validationErrors, errors.ErrTokenInConfigFile)
	}
	for _, d := range c.Certificates {
		if d.Type != domain.SourceTypeRemoteSecret {
			continue
		}
		if u, err := url.Parse(d.VaultURI); err == nil && u.Scheme == "http" {
			validationErrors = append(validationErrors, fmt.Errorf("%w: %s", errors.ErrPlaintextVault, d.Name))
		}
	}
	if len(c.Certificates) == 0 {
		validationErrors = append(validationErrors, errors.ErrNoCertificates)
	}

	return errors.NewProductionValidationError(validationErrors...)
}

// DefaultConfiguration returns a configuration with sensible defaults and no
// certificates.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		LogLevel:               "info",
		LogFormat:              "text",
		RefreshIntervalMinutes: DefaultRefreshIntervalMinutes,
		Vault: VaultConfig{
			KVMount:     DefaultKVMount,
			SecretField: DefaultSecretField,
			Timeout:     DefaultVaultTimeout,
		},
		Keystore: KeystoreConfig{
			Directory: DefaultKeystoreDirectory,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Address: DefaultMetricsAddress,
		},
	}
}

// ConfigurationProvider defines the interface for loading configurations.
type ConfigurationProvider interface {
	// LoadConfiguration loads configuration from the specified file path.
	// An empty path means defaults plus environment overrides.
	LoadConfiguration(ctx context.Context, path string) (*Configuration, error)
}
