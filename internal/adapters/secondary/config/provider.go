// Package config provides the file and environment backed configuration provider.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	internalconfig "github.com/sufield/certkeeper/internal/config"
	"github.com/sufield/certkeeper/internal/core/domain"
	coreerrors "github.com/sufield/certkeeper/internal/core/errors"
	"github.com/sufield/certkeeper/internal/core/ports"
)

// FileProvider loads configuration from an optional YAML file with
// CERTKEEPER_* environment overrides layered on top.
type FileProvider struct{}

// NewFileProvider creates provider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// LoadConfiguration loads config. An empty path yields defaults plus
// environment overrides.
func (p *FileProvider) LoadConfiguration(ctx context.Context, path string) (*ports.Configuration, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("configuration loading canceled: %w", ctx.Err())
		default:
		}
	}

	v := newViper()

	if strings.TrimSpace(path) != "" {
		absPath, err := filepath.Abs(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config file path: %w", err)
		}

		v.SetConfigFile(absPath)
		if filepath.Ext(absPath) == "" {
			v.SetConfigType("yaml")
		}

		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, coreerrors.NewDomainError(coreerrors.ErrMissingConfiguration,
					fmt.Errorf("config file %s: %w", path, err))
			}
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	config, err := decode(v)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in file %s: %w", path, err)
	}

	return config, nil
}

// GetDefaultConfiguration gets default.
func (p *FileProvider) GetDefaultConfiguration(_ context.Context) *ports.Configuration {
	return ports.DefaultConfiguration()
}

// newViper returns a viper instance primed with defaults for every scalar key,
// so that AutomaticEnv can override keys absent from the file.
func newViper() *viper.Viper {
	v := viper.New()

	defaults := ports.DefaultConfiguration()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_format", defaults.LogFormat)
	v.SetDefault("refresh_interval_minutes", defaults.RefreshIntervalMinutes)
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.kv_mount", defaults.Vault.KVMount)
	v.SetDefault("vault.secret_field", defaults.Vault.SecretField)
	v.SetDefault("vault.timeout", defaults.Vault.Timeout)
	v.SetDefault("vault.ca_cert", "")
	v.SetDefault("vault.insecure_skip_verify", false)
	v.SetDefault("keystore.directory", defaults.Keystore.Directory)
	v.SetDefault("resolver.fallback_max_age", defaults.Resolver.FallbackMaxAge)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.address", defaults.Metrics.Address)

	v.SetEnvPrefix(internalconfig.EnvPrefix)
	v.SetEnvKeyReplacer(internalconfig.EnvKeyReplacer)
	v.AutomaticEnv()

	return v
}

func decode(v *viper.Viper) (*ports.Configuration, error) {
	var config ports.Configuration
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		domain.SourceTypeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}
	return &config, nil
}
