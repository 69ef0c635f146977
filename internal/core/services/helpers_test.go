package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sufield/certkeeper/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMaterial returns a self-signed RSA certificate with its private key.
func newTestMaterial(t *testing.T, commonName string) *domain.KeyMaterial {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &domain.KeyMaterial{Certificate: cert, PrivateKey: key}
}

// recordingMetrics captures calls for assertions.
type recordingMetrics struct {
	NoOpMetrics

	mu          sync.Mutex
	upserts     []string
	resolutions []string
	failures    []string
	refreshes   []bool
	hits        int
	misses      int
	size        int
}

func (m *recordingMetrics) RecordCacheHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *recordingMetrics) RecordCacheMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *recordingMetrics) RecordUpsert(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, outcome)
}

func (m *recordingMetrics) SetStoreSize(entries int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size = entries
}

func (m *recordingMetrics) RecordRefresh(allSucceeded bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, allSucceeded)
}

func (m *recordingMetrics) RecordDescriptorFailure(sourceType, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, sourceType+"/"+reason)
}

func (m *recordingMetrics) RecordResolution(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolutions = append(m.resolutions, outcome)
}
