// Package certdata decodes certificate blobs as they are stored in secret
// backends and on disk.
package certdata

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/sufield/certkeeper/internal/core/domain"
	"github.com/sufield/certkeeper/internal/core/errors"
)

// DecodeBase64 decodes a secret value: base64 text wrapping a PKCS#12
// archive, a PEM bundle or a bare DER certificate. Surrounding whitespace
// and line breaks are ignored.
func DecodeBase64(value string, password string) (*domain.KeyMaterial, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "-----BEGIN") {
		return Decode([]byte(trimmed), password)
	}

	compact := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, trimmed)

	raw, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(compact); err != nil {
			return nil, errors.NewDomainError(errors.ErrInvalidCertificateData,
				fmt.Errorf("secret value is not base64: %w", err))
		}
	}
	return Decode(raw, password)
}

// Decode parses raw certificate bytes. PEM is tried first, then PKCS#12,
// then a single DER certificate.
func Decode(raw []byte, password string) (*domain.KeyMaterial, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.NewDomainError(errors.ErrInvalidCertificateData, fmt.Errorf("empty certificate data"))
	}

	if bytes.Contains(raw, []byte("-----BEGIN")) {
		return DecodePEM(raw)
	}

	material, p12Err := decodePKCS12(raw, password)
	if p12Err == nil {
		return material, nil
	}

	cert, derErr := x509.ParseCertificate(raw)
	if derErr != nil {
		return nil, errors.NewDomainError(errors.ErrInvalidCertificateData,
			fmt.Errorf("neither PKCS#12 (%v) nor DER (%v)", p12Err, derErr))
	}
	return &domain.KeyMaterial{Certificate: cert}, nil
}

// DecodePEM reads every CERTIFICATE block and the first private key block.
// The first certificate is the leaf.
func DecodePEM(raw []byte) (*domain.KeyMaterial, error) {
	var (
		certs []*x509.Certificate
		key   crypto.PrivateKey
	)

	rest := raw
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, errors.NewDomainError(errors.ErrInvalidCertificateData,
					fmt.Errorf("failed to parse certificate block: %w", err))
			}
			certs = append(certs, cert)

		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			if key != nil {
				continue
			}
			parsed, err := parsePrivateKey(block)
			if err != nil {
				return nil, errors.NewDomainError(errors.ErrInvalidCertificateData, err)
			}
			key = parsed
		}
	}

	if len(certs) == 0 {
		return nil, errors.NewDomainError(errors.ErrInvalidCertificateData, fmt.Errorf("no CERTIFICATE block found"))
	}

	return &domain.KeyMaterial{
		Certificate: certs[0],
		PrivateKey:  key,
		Chain:       certs[1:],
	}, nil
}

func decodePKCS12(raw []byte, password string) (*domain.KeyMaterial, error) {
	key, cert, chain, err := pkcs12.DecodeChain(raw, password)
	if err != nil {
		// Some exporters emit certificate-only archives without a key bag.
		certs, trustErr := pkcs12.DecodeTrustStore(raw, password)
		if trustErr != nil || len(certs) == 0 {
			return nil, err
		}
		return &domain.KeyMaterial{Certificate: certs[0], Chain: certs[1:]}, nil
	}

	return &domain.KeyMaterial{
		Certificate: cert,
		PrivateKey:  key,
		Chain:       chain,
	}, nil
}

func parsePrivateKey(block *pem.Block) (crypto.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return key, nil
	}
}
