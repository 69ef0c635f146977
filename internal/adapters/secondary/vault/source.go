// Package vault implements the remote secret source on top of the Vault KV v2
// secrets engine.
package vault

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"

	"github.com/sufield/certkeeper/internal/adapters/secondary/certdata"
	"github.com/sufield/certkeeper/internal/core/domain"
	coreerrors "github.com/sufield/certkeeper/internal/core/errors"
	"github.com/sufield/certkeeper/internal/core/ports"
)

// SourceConfig holds configuration for the Vault secret source.
type SourceConfig struct {
	Token       string
	Namespace   string
	KVMount     string
	SecretField string
	Timeout     time.Duration

	CACert             string
	InsecureSkipVerify bool

	// Password protects PKCS#12 blobs. Vault-issued blobs have none.
	Password string
}

// SourceConfigFrom maps the application configuration onto SourceConfig.
// An empty token falls back to VAULT_TOKEN.
func SourceConfigFrom(cfg ports.VaultConfig) SourceConfig {
	token := cfg.Token
	if token == "" {
		token = os.Getenv(api.EnvVaultToken)
	}
	return SourceConfig{
		Token:              token,
		Namespace:          cfg.Namespace,
		KVMount:            cfg.KVMount,
		SecretField:        cfg.SecretField,
		Timeout:            cfg.Timeout,
		CACert:             cfg.CACert,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
}

// SecretSource fetches base64 certificate blobs from Vault. One API client is
// kept per vault address and shared by every descriptor that names it.
type SecretSource struct {
	cfg    SourceConfig
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*api.Client
}

// NewSecretSource creates a secret source. Clients are created lazily.
func NewSecretSource(cfg SourceConfig, logger *slog.Logger) (*SecretSource, error) {
	if strings.TrimSpace(cfg.KVMount) == "" {
		return nil, fmt.Errorf("kv mount cannot be empty")
	}
	if strings.TrimSpace(cfg.SecretField) == "" {
		return nil, fmt.Errorf("secret field cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SecretSource{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*api.Client),
	}, nil
}

// FetchSecret implements ports.RemoteSecretSource. A secret whose configured
// field is missing or empty yields (nil, nil).
func (s *SecretSource) FetchSecret(ctx context.Context, vaultURI, secretName string) (*domain.KeyMaterial, error) {
	client, err := s.client(vaultURI)
	if err != nil {
		return nil, coreerrors.NewDomainError(coreerrors.ErrSourceUnavailable, err)
	}

	secret, err := client.KVv2(s.cfg.KVMount).Get(ctx, secretName)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, api.ErrSecretNotFound) {
			return nil, coreerrors.NewDomainError(coreerrors.ErrCertificateNotFound,
				fmt.Errorf("secret %q at %s", secretName, vaultURI))
		}
		return nil, coreerrors.NewDomainError(coreerrors.ErrSourceUnavailable,
			fmt.Errorf("failed to read secret %q from %s: %w", secretName, vaultURI, err))
	}

	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	raw, ok := secret.Data[s.cfg.SecretField]
	if !ok || raw == nil {
		s.logger.Debug("Secret has no certificate field",
			"secret_name", secretName,
			"secret_field", s.cfg.SecretField)
		return nil, nil
	}

	value, ok := raw.(string)
	if !ok {
		return nil, coreerrors.NewDomainError(coreerrors.ErrInvalidCertificateData,
			fmt.Errorf("secret %q field %q is %T, want string", secretName, s.cfg.SecretField, raw))
	}
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	material, err := certdata.DecodeBase64(value, s.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("secret %q: %w", secretName, err)
	}
	return material, nil
}

// client returns the cached client for address, creating it on first use.
func (s *SecretSource) client(address string) (*api.Client, error) {
	key := strings.TrimRight(strings.TrimSpace(address), "/")

	s.mu.RLock()
	if client, ok := s.clients[key]; ok {
		s.mu.RUnlock()
		return client, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[key]; ok {
		return client, nil
	}

	client, err := s.newClient(key)
	if err != nil {
		return nil, err
	}

	s.clients[key] = client
	s.logger.Info("Vault client created", "vault_uri", key)
	return client, nil
}

func (s *SecretSource) newClient(address string) (*api.Client, error) {
	config := api.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", config.Error)
	}
	config.Address = address
	// The refresh cadence is the retry policy.
	config.MaxRetries = 0

	if s.cfg.Timeout > 0 {
		config.Timeout = s.cfg.Timeout
	}

	if s.cfg.CACert != "" {
		if err := config.ConfigureTLS(&api.TLSConfig{
			CACert:   s.cfg.CACert,
			Insecure: s.cfg.InsecureSkipVerify,
		}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	} else if s.cfg.InsecureSkipVerify {
		config.HttpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for lab setups
		}
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client for %s: %w", address, err)
	}

	if s.cfg.Token != "" {
		client.SetToken(s.cfg.Token)
	}
	if s.cfg.Namespace != "" {
		client.SetNamespace(s.cfg.Namespace)
	}

	return client, nil
}
