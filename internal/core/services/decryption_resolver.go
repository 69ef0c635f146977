package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/sufield/certkeeper/internal/core/domain"
	"github.com/sufield/certkeeper/internal/core/ports"
)

// Algorithms accepted when parsing inbound encrypted tokens.
var (
	SupportedKeyAlgorithms = []jose.KeyAlgorithm{
		jose.RSA_OAEP,
		jose.RSA_OAEP_256,
		jose.RSA1_5,
		jose.ECDH_ES,
		jose.ECDH_ES_A128KW,
		jose.ECDH_ES_A256KW,
	}
	SupportedContentEncryption = []jose.ContentEncryption{
		jose.A128GCM,
		jose.A192GCM,
		jose.A256GCM,
		jose.A128CBC_HS256,
		jose.A192CBC_HS384,
		jose.A256CBC_HS512,
	}
)

// headerX5t is the JOSE certificate thumbprint header.
const headerX5t jose.HeaderKey = "x5t"

// ErrNoDecryptionKeys is returned by DecryptToken when the store is empty.
var ErrNoDecryptionKeys = errors.New("no decryption keys available")

// DecryptionKeyResolver picks decryption key candidates for an inbound token.
// It only reads the store's snapshot and never performs I/O.
type DecryptionKeyResolver struct {
	keys           ports.DecryptionKeySnapshotter
	fallbackMaxAge time.Duration
	metrics        MetricsReporter
	logger         *slog.Logger
	now            func() time.Time
}

// NewDecryptionKeyResolver creates a resolver over keys. A positive
// fallbackMaxAge limits the all-keys fallback to recently refreshed keys.
func NewDecryptionKeyResolver(keys ports.DecryptionKeySnapshotter, fallbackMaxAge time.Duration, metrics MetricsReporter, logger *slog.Logger) (*DecryptionKeyResolver, error) {
	if keys == nil {
		return nil, fmt.Errorf("key snapshotter cannot be nil")
	}
	if fallbackMaxAge < 0 {
		return nil, fmt.Errorf("fallback max age cannot be negative: %v", fallbackMaxAge)
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DecryptionKeyResolver{
		keys:           keys,
		fallbackMaxAge: fallbackMaxAge,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Resolve returns the candidate keys for a token. kidHint, when set, wins over
// the token's own key identifier claim. A match yields exactly one key;
// otherwise every key is returned so a rotation race or a non-standard issuer
// still decrypts.
func (r *DecryptionKeyResolver) Resolve(kidHint, tokenKeyID string) []domain.DecryptionKey {
	keyID := kidHint
	if keyID == "" {
		keyID = tokenKeyID
	}

	keys := r.keys.SnapshotDecryptionKeys()

	if keyID != "" {
		for _, key := range keys {
			if key.KeyID == keyID {
				r.metrics.RecordResolution(ResolutionMatch)
				r.logger.Debug("Decryption key found in the store",
					"key_id", keyID,
					"certificate_name", key.Name)
				return []domain.DecryptionKey{key}
			}
		}
	}

	if len(keys) == 0 {
		r.metrics.RecordResolution(ResolutionEmpty)
		r.logger.Warn("No decryption keys loaded", "key_id", keyID)
		return nil
	}

	candidates := r.fallback(keys)
	r.metrics.RecordResolution(ResolutionFallback)
	r.logger.Warn("Could not find a loaded key for key id, returning fallback decryption keys",
		"key_id", keyID,
		"kid_hint", kidHint,
		"candidates", len(candidates))
	return candidates
}

// ResolveToken reads the key identifier from a compact JWE header and
// resolves it. The kid header is preferred, then x5t. A token that cannot be
// parsed resolves as if it carried no key identifier.
func (r *DecryptionKeyResolver) ResolveToken(token, kidHint string) []domain.DecryptionKey {
	return r.Resolve(kidHint, TokenKeyID(token))
}

// DecryptToken tries each candidate in order and returns the plaintext from
// the first key that decrypts the token.
func (r *DecryptionKeyResolver) DecryptToken(token, kidHint string) ([]byte, domain.DecryptionKey, error) {
	object, err := jose.ParseEncryptedCompact(token, SupportedKeyAlgorithms, SupportedContentEncryption)
	if err != nil {
		return nil, domain.DecryptionKey{}, fmt.Errorf("failed to parse encrypted token: %w", err)
	}

	candidates := r.Resolve(kidHint, headerKeyID(object.Header))
	if len(candidates) == 0 {
		return nil, domain.DecryptionKey{}, ErrNoDecryptionKeys
	}

	var errs []error
	for _, key := range candidates {
		if key.PrivateKey == nil {
			errs = append(errs, fmt.Errorf("%s: no private key", key.Name))
			continue
		}
		plaintext, err := object.Decrypt(key.PrivateKey)
		if err == nil {
			return plaintext, key, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", key.Name, err))
	}

	return nil, domain.DecryptionKey{}, fmt.Errorf("no candidate key decrypted the token: %w", errors.Join(errs...))
}

// fallback applies the optional recency window. If the window would leave no
// candidates the full set is returned, so a stalled refresh never turns into
// an outage.
func (r *DecryptionKeyResolver) fallback(keys []domain.DecryptionKey) []domain.DecryptionKey {
	if r.fallbackMaxAge <= 0 {
		return keys
	}

	cutoff := r.now().Add(-r.fallbackMaxAge)
	recent := make([]domain.DecryptionKey, 0, len(keys))
	for _, key := range keys {
		if !key.UpdatedAt.Before(cutoff) {
			recent = append(recent, key)
		}
	}

	if len(recent) == 0 {
		r.logger.Warn("No decryption keys refreshed within fallback window, using all keys",
			"fallback_max_age", r.fallbackMaxAge)
		return keys
	}
	return recent
}

// TokenKeyID extracts kid, or failing that x5t, from a compact JWE header.
func TokenKeyID(token string) string {
	if token == "" {
		return ""
	}
	object, err := jose.ParseEncryptedCompact(token, SupportedKeyAlgorithms, SupportedContentEncryption)
	if err != nil {
		return ""
	}
	return headerKeyID(object.Header)
}

func headerKeyID(header jose.Header) string {
	if header.KeyID != "" {
		return header.KeyID
	}
	if x5t, ok := header.ExtraHeaders[headerX5t].(string); ok {
		return x5t
	}
	return ""
}
