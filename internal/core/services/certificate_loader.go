package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sufield/certkeeper/internal/core/domain"
	coreerrors "github.com/sufield/certkeeper/internal/core/errors"
	"github.com/sufield/certkeeper/internal/core/ports"
)

// Failure reasons attached to DescriptorFailure and the failure metric.
const (
	ReasonMissingField = "missing_field"
	ReasonUnknownType  = "unknown_type"
	ReasonSourceError  = "source_error"
	ReasonNotFound     = "not_found"
	ReasonEmptyResult  = "empty_result"
	ReasonInvalidData  = "invalid_data"
)

// DescriptorFailure records why one descriptor was skipped in a cycle.
type DescriptorFailure struct {
	Name   string
	Type   domain.SourceType
	Reason string
	Err    error
}

// RefreshResult summarizes one refresh cycle.
type RefreshResult struct {
	CycleID      string
	Loaded       int
	AllSucceeded bool
	Failures     []DescriptorFailure
	Duration     time.Duration
}

// CertificateLoader runs refresh cycles: every configured descriptor is
// fetched from its source and upserted into the store. Per-descriptor failures
// are isolated and summarized; they never abort the cycle.
type CertificateLoader struct {
	descriptors []domain.Descriptor
	interval    time.Duration
	store       *CertificateStore
	remote      ports.RemoteSecretSource
	local       ports.LocalKeystoreSource
	metrics     MetricsReporter
	logger      *slog.Logger
}

// LoaderConfig wires a CertificateLoader.
type LoaderConfig struct {
	Descriptors     []domain.Descriptor
	RefreshInterval time.Duration
	Store           *CertificateStore
	Remote          ports.RemoteSecretSource
	Local           ports.LocalKeystoreSource
	Metrics         MetricsReporter
	Logger          *slog.Logger
}

// NewCertificateLoader validates the wiring and returns a loader. Either source
// may be nil when no descriptor needs it; descriptors that do will fail at
// refresh time.
func NewCertificateLoader(cfg LoaderConfig) (*CertificateLoader, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("certificate store cannot be nil")
	}
	if cfg.RefreshInterval < 0 {
		return nil, fmt.Errorf("refresh interval cannot be negative: %v", cfg.RefreshInterval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoOpMetrics{}
	}

	descriptors := make([]domain.Descriptor, len(cfg.Descriptors))
	copy(descriptors, cfg.Descriptors)

	return &CertificateLoader{
		descriptors: descriptors,
		interval:    cfg.RefreshInterval,
		store:       cfg.Store,
		remote:      cfg.Remote,
		local:       cfg.Local,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// Invoke implements WorkUnit: one refresh cycle followed by the configured
// interval.
func (l *CertificateLoader) Invoke(ctx context.Context) (time.Duration, error) {
	if _, err := l.RefreshAll(ctx); err != nil {
		return 0, err
	}
	return l.interval, nil
}

// RefreshAll loads every descriptor once, in order. The returned error is
// non-nil only when ctx was cancelled mid-cycle.
func (l *CertificateLoader) RefreshAll(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	result := RefreshResult{
		CycleID:      uuid.NewString(),
		AllSucceeded: true,
	}
	logger := l.logger.With("cycle_id", result.CycleID)

	logger.Info("Begin certificate refresh", "certificates", len(l.descriptors))

	for _, d := range l.descriptors {
		if err := ctx.Err(); err != nil {
			result.AllSucceeded = false
			result.Duration = time.Since(start)
			logger.Warn("Certificate refresh interrupted", "loaded", result.Loaded, "error", err)
			return result, err
		}

		if failure := l.load(ctx, logger, d); failure != nil {
			if ctx.Err() != nil && isContextError(failure.Err) {
				result.AllSucceeded = false
				result.Duration = time.Since(start)
				logger.Warn("Certificate refresh interrupted", "loaded", result.Loaded, "error", ctx.Err())
				return result, ctx.Err()
			}

			result.AllSucceeded = false
			result.Failures = append(result.Failures, *failure)
			l.metrics.RecordDescriptorFailure(string(d.Type), failure.Reason)
			continue
		}
		result.Loaded++
	}

	result.Duration = time.Since(start)
	l.metrics.RecordRefresh(result.AllSucceeded, result.Duration.Seconds())

	logger.Info("Finish certificate refresh",
		"loaded", result.Loaded,
		"failed", len(result.Failures),
		"all_succeeded", result.AllSucceeded,
		"duration", result.Duration)

	return result, nil
}

// load handles one descriptor and returns nil on success.
func (l *CertificateLoader) load(ctx context.Context, logger *slog.Logger, d domain.Descriptor) *DescriptorFailure {
	logger = logger.With("certificate_name", d.Name, "certificate_type", string(d.Type))
	logger.Info("Loading certificate")

	fail := func(reason string, err error) *DescriptorFailure {
		return &DescriptorFailure{Name: d.Name, Type: d.Type, Reason: reason, Err: err}
	}

	spec, err := d.SourceSpec()
	if err != nil {
		if errors.Is(err, coreerrors.ErrUnknownSourceType) {
			logger.Warn("Unknown certificate type found in configuration")
			return fail(ReasonUnknownType, err)
		}
		logger.Error("Loading certificate failed: descriptor is incomplete", "error", err)
		return fail(ReasonMissingField, err)
	}

	material, err := l.fetch(ctx, logger, spec)
	if err != nil {
		reason := ReasonSourceError
		switch {
		case errors.Is(err, coreerrors.ErrCertificateNotFound):
			reason = ReasonNotFound
		case errors.Is(err, coreerrors.ErrInvalidCertificateData):
			reason = ReasonInvalidData
		}
		logger.Warn("Unable to load certificate", "reason", reason, "error", err)
		return fail(reason, err)
	}

	if material == nil || material.Certificate == nil {
		logger.Warn("Loading certificate failed because the certificate was empty")
		return fail(ReasonEmptyResult, coreerrors.NewDomainError(coreerrors.ErrEmptySecret,
			fmt.Errorf("certificate %q", d.Name)))
	}

	entry, err := domain.NewCertificateEntry(d.Name, material)
	if err != nil {
		logger.Warn("Unable to build certificate entry", "error", err)
		return fail(ReasonInvalidData, err)
	}
	switch {
	case entry.IsExpired():
		logger.Warn("Loaded certificate has expired", "thumbprint", entry.Thumbprint, "expires_at", entry.ExpiresAt())
	case l.interval > 0 && entry.IsExpiringWithin(l.interval):
		logger.Warn("Loaded certificate expires before the next refresh",
			"thumbprint", entry.Thumbprint,
			"expires_in", entry.TimeToExpiry().Round(time.Second))
	}

	l.store.Upsert(d.Name, entry)
	return nil
}

// fetch dispatches on the resolved source variant.
func (l *CertificateLoader) fetch(ctx context.Context, logger *slog.Logger, spec domain.SourceSpec) (*domain.KeyMaterial, error) {
	switch s := spec.(type) {
	case domain.RemoteSecretSpec:
		if l.remote == nil {
			return nil, coreerrors.NewDomainError(coreerrors.ErrSourceUnavailable,
				fmt.Errorf("no remote secret source configured"))
		}
		logger.Info("Fetching certificate from remote secret source",
			"vault_uri", s.VaultURI,
			"secret_name", s.SecretName)
		return l.remote.FetchSecret(ctx, s.VaultURI, s.SecretName)

	case domain.LocalKeystoreSpec:
		if l.local == nil {
			return nil, coreerrors.NewDomainError(coreerrors.ErrSourceUnavailable,
				fmt.Errorf("no local keystore configured"))
		}
		logger.Info("Looking up certificate in local keystore", "thumbprint", s.Thumbprint)
		material, found, err := l.local.FindByThumbprint(ctx, s.Thumbprint)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, coreerrors.NewDomainError(coreerrors.ErrCertificateNotFound,
				fmt.Errorf("thumbprint %s", s.Thumbprint))
		}
		return material, nil

	default:
		return nil, coreerrors.NewDomainError(coreerrors.ErrUnknownSourceType,
			fmt.Errorf("unhandled source spec %T", spec))
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
