// Package domain holds the certificate cache's value types and descriptor rules.
package domain

import (
	"crypto"
	"crypto/sha1" //nolint:gosec // X.509 thumbprints are SHA-1 by convention
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// KeyMaterial is what a certificate source hands back: the public certificate
// and, when the source carries one, its private key.
type KeyMaterial struct {
	Certificate *x509.Certificate   // Leaf certificate
	PrivateKey  crypto.PrivateKey   // Optional; nil for public-only material
	Chain       []*x509.Certificate // Intermediates, leaf-to-root order
}

// HasPrivateKey reports whether the material can decrypt.
func (m *KeyMaterial) HasPrivateKey() bool {
	return m != nil && m.PrivateKey != nil
}

// CertificateEntry is one named certificate held by the store.
type CertificateEntry struct {
	Name       string
	Thumbprint string
	KeyID      string
	Material   *KeyMaterial
	// UpdatedAt is stamped by the store on every upsert.
	UpdatedAt time.Time
}

// NewCertificateEntry derives the thumbprint and key id for material and
// returns an entry named name.
func NewCertificateEntry(name string, material *KeyMaterial) (*CertificateEntry, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("certificate name cannot be empty")
	}
	if material == nil || material.Certificate == nil {
		return nil, fmt.Errorf("certificate %q has no key material", name)
	}

	return &CertificateEntry{
		Name:       name,
		Thumbprint: Thumbprint(material.Certificate),
		KeyID:      KeyID(material.Certificate),
		Material:   material,
	}, nil
}

// Thumbprint returns the upper-case hex SHA-1 digest of the certificate DER.
func Thumbprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	sum := sha1.Sum(cert.Raw) //nolint:gosec // thumbprint, not a security boundary
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// KeyID returns the JOSE x5t value for the certificate: the unpadded
// base64url SHA-1 digest of its DER encoding.
func KeyID(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	sum := sha1.Sum(cert.Raw) //nolint:gosec // x5t is defined over SHA-1
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NormalizeThumbprint upper-cases a thumbprint and strips the separators that
// certificate tooling commonly prints, including the invisible left-to-right
// mark that Windows certificate dialogs prepend on copy.
func NormalizeThumbprint(thumbprint string) string {
	replacer := strings.NewReplacer(" ", "", ":", "", "\u200e", "")
	return strings.ToUpper(replacer.Replace(strings.TrimSpace(thumbprint)))
}

// ExpiresAt returns the certificate's expiration time.
func (e *CertificateEntry) ExpiresAt() time.Time {
	if e.certificate() == nil {
		return time.Time{}
	}
	return e.Material.Certificate.NotAfter
}

// IsExpired returns true if the certificate has expired.
func (e *CertificateEntry) IsExpired() bool {
	if e.certificate() == nil {
		return true // Treat missing certificate as expired
	}
	return time.Now().After(e.Material.Certificate.NotAfter)
}

// TimeToExpiry returns the duration until the certificate expires.
func (e *CertificateEntry) TimeToExpiry() time.Duration {
	if e.certificate() == nil {
		return 0
	}
	return time.Until(e.Material.Certificate.NotAfter)
}

// IsExpiringWithin returns true if the certificate expires within the given threshold.
func (e *CertificateEntry) IsExpiringWithin(threshold time.Duration) bool {
	if e.certificate() == nil {
		return true
	}
	return time.Until(e.Material.Certificate.NotAfter) <= threshold
}

// DecryptionKey converts the entry into the snapshot form handed to the resolver.
func (e *CertificateEntry) DecryptionKey() DecryptionKey {
	key := DecryptionKey{
		Name:       e.Name,
		KeyID:      e.KeyID,
		Thumbprint: e.Thumbprint,
		UpdatedAt:  e.UpdatedAt,
	}
	if e.Material != nil {
		key.Certificate = e.Material.Certificate
		key.PrivateKey = e.Material.PrivateKey
	}
	return key
}

func (e *CertificateEntry) certificate() *x509.Certificate {
	if e == nil || e.Material == nil {
		return nil
	}
	return e.Material.Certificate
}

// DecryptionKey is a point-in-time view of one entry's key material.
type DecryptionKey struct {
	Name        string
	KeyID       string
	Thumbprint  string
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
	UpdatedAt   time.Time
}
