// Package ports defines interfaces for core services and domain boundaries.
package ports

import (
	"context"

	"github.com/sufield/certkeeper/internal/core/domain"
)

// RemoteSecretSource fetches certificates stored as secrets in a remote secret
// store. Implementations must not retry within a single call; the refresh
// cadence is the retry mechanism.
type RemoteSecretSource interface {
	// FetchSecret returns the decoded key material. A secret that exists but
	// has an empty value yields (nil, nil).
	FetchSecret(ctx context.Context, vaultURI, secretName string) (*domain.KeyMaterial, error)
}

// LocalKeystoreSource looks certificates up in a read-only local keystore.
type LocalKeystoreSource interface {
	// FindByThumbprint returns the first certificate whose thumbprint matches.
	// A missing certificate is reported by found == false, not by an error.
	FindByThumbprint(ctx context.Context, thumbprint string) (material *domain.KeyMaterial, found bool, err error)
}

// DecryptionKeySnapshotter is the read side of the certificate store used by
// token decryption.
type DecryptionKeySnapshotter interface {
	SnapshotDecryptionKeys() []domain.DecryptionKey
}
