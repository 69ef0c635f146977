// Package app wires the certificate store, its sources, the refresh loop and
// the decryption key resolver into one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sufield/certkeeper/internal/adapters/metrics"
	"github.com/sufield/certkeeper/internal/adapters/secondary/keystore"
	"github.com/sufield/certkeeper/internal/adapters/secondary/vault"
	"github.com/sufield/certkeeper/internal/core/ports"
	"github.com/sufield/certkeeper/internal/core/services"
	"github.com/sufield/certkeeper/internal/shutdown"
)

// RefreshTaskName labels the refresh loop in logs.
const RefreshTaskName = "certificate-refresh"

// Options wires an Application. Remote and Local override the sources built
// from Config and exist for tests and embedding.
type Options struct {
	Config   *ports.Configuration
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Remote   ports.RemoteSecretSource
	Local    ports.LocalKeystoreSource

	// ShutdownGracePeriod bounds Run's teardown. Zero uses the default.
	ShutdownGracePeriod time.Duration
}

// Application owns every long-lived component.
type Application struct {
	config   *ports.Configuration
	logger   *slog.Logger
	registry *prometheus.Registry

	Store    *services.CertificateStore
	Loader   *services.CertificateLoader
	Resolver *services.DecryptionKeyResolver

	runner      *services.ScheduledRunner
	gracePeriod time.Duration
}

// New builds an Application from configuration. It performs no I/O.
func New(opts Options) (*Application, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	var reporter services.MetricsReporter = services.NoOpMetrics{}
	registry := opts.Registry
	if cfg.Metrics.Enabled {
		if registry == nil {
			registry = prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		reporter = metrics.NewPrometheusMetrics(registry)
	}

	remote := opts.Remote
	if remote == nil {
		source, err := vault.NewSecretSource(vault.SourceConfigFrom(cfg.Vault), logger.With("source", "vault"))
		if err != nil {
			return nil, fmt.Errorf("failed to create vault source: %w", err)
		}
		remote = source
	}

	local := opts.Local
	if local == nil {
		store, err := keystore.NewDirectoryStore(cfg.Keystore.Directory, "", logger.With("source", "keystore"))
		if err != nil {
			return nil, fmt.Errorf("failed to create keystore: %w", err)
		}
		local = store
	}

	store := services.NewCertificateStore(logger, reporter)
	store.Subscribe(func(e services.RotationEvent) {
		logger.Warn("Certificate rotated",
			"certificate_name", e.Name,
			"old_thumbprint", e.OldThumbprint,
			"thumbprint", e.NewThumbprint)
	})

	loader, err := services.NewCertificateLoader(services.LoaderConfig{
		Descriptors:     cfg.Certificates,
		RefreshInterval: cfg.RefreshInterval(),
		Store:           store,
		Remote:          remote,
		Local:           local,
		Metrics:         reporter,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate loader: %w", err)
	}

	resolver, err := services.NewDecryptionKeyResolver(store, cfg.Resolver.FallbackMaxAge, reporter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create decryption key resolver: %w", err)
	}

	runner, err := services.NewScheduledRunner(RefreshTaskName, loader, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh runner: %w", err)
	}

	return &Application{
		config:      cfg,
		logger:      logger,
		registry:    registry,
		Store:       store,
		Loader:      loader,
		Resolver:    resolver,
		runner:      runner,
		gracePeriod: opts.ShutdownGracePeriod,
	}, nil
}

// RefreshOnce runs a single refresh cycle.
func (a *Application) RefreshOnce(ctx context.Context) (services.RefreshResult, error) {
	return a.Loader.RefreshAll(ctx)
}

// Registry returns the Prometheus registry, or nil when metrics are disabled.
func (a *Application) Registry() *prometheus.Registry {
	return a.registry
}

// Run starts the refresh loop and, when enabled, the metrics endpoint, then
// blocks until ctx is cancelled or the loop dies. A dead loop is reported as
// a *services.FatalError so the caller can exit non-zero.
func (a *Application) Run(ctx context.Context) error {
	coordinator := shutdown.NewCoordinator(&shutdown.Config{
		GracePeriod: a.gracePeriod,
		Logger:      a.logger,
	})

	var serverErr <-chan error
	if a.config.Metrics.Enabled {
		server := NewMetricsServer(a.config.Metrics.Address, a.registry, a.Store, a.logger)
		errCh, err := server.Start()
		if err != nil {
			return err
		}
		serverErr = errCh
		coordinator.RegisterShutdownFunc("metrics-server", server.Shutdown)
	}

	task := a.runner.Start(ctx)
	coordinator.RegisterServer(RefreshTaskName, task)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown requested")
	case <-task.Done():
		runErr = task.Err()
	case err := <-serverErr:
		runErr = fmt.Errorf("metrics server failed: %w", err)
	}

	shutdownErr := coordinator.Shutdown(context.WithoutCancel(ctx))

	var fatal *services.FatalError
	if errors.As(shutdownErr, &fatal) && runErr == nil {
		runErr = fatal
		shutdownErr = nil
	}
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}
