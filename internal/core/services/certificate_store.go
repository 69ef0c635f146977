// Package services contains the certificate store, the refresh loop that feeds
// it, and the decryption key resolver that reads it.
package services

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sufield/certkeeper/internal/core/domain"
)

// RotationEvent describes a rotation: an existing name whose thumbprint changed.
// The event is informational; subscribers that need the new material should
// read it from the store.
type RotationEvent struct {
	Name          string
	OldThumbprint string
	NewThumbprint string
	At            time.Time
}

// RotationListener is notified synchronously on the writer's goroutine.
// A slow listener delays every later upsert in the same refresh cycle.
type RotationListener func(RotationEvent)

type subscription struct {
	id       uint64
	listener RotationListener
}

// CertificateStore is the process-wide, concurrency-safe certificate cache.
// Entries are immutable once stored; an upsert swaps the pointer for a name,
// so readers always observe either the old or the new entry in full.
type CertificateStore struct {
	mu      sync.RWMutex
	entries map[string]*domain.CertificateEntry

	subMu       sync.RWMutex
	subscribers []subscription
	nextSubID   uint64

	logger  *slog.Logger
	metrics MetricsReporter
	now     func() time.Time
}

// NewCertificateStore creates an empty store.
func NewCertificateStore(logger *slog.Logger, metrics MetricsReporter) *CertificateStore {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}

	return &CertificateStore{
		entries: make(map[string]*domain.CertificateEntry),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Subscribe registers a rotation listener and returns a function that removes
// it. Calling the returned function more than once is harmless.
func (s *CertificateStore) Subscribe(listener RotationListener) (unsubscribe func()) {
	if listener == nil {
		return func() {}
	}

	s.subMu.Lock()
	s.nextSubID++
	id := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: id, listener: listener})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Upsert stores entry under name, replacing any previous entry. Listeners
// are notified once, after the write is visible, when the name already held
// an entry with a different thumbprint.
func (s *CertificateStore) Upsert(name string, entry *domain.CertificateEntry) {
	if entry == nil {
		s.logger.Error("Refusing to store nil certificate entry", "certificate_name", name)
		return
	}

	stored := *entry
	if stored.Name == "" {
		stored.Name = name
	}
	stored.UpdatedAt = s.now()

	key := storeKey(name)

	s.mu.Lock()
	previous, existed := s.entries[key]
	s.entries[key] = &stored
	size := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetStoreSize(size)
	if !stored.ExpiresAt().IsZero() {
		s.metrics.UpdateCertExpiry(stored.Name, float64(stored.ExpiresAt().Unix()))
	}

	switch {
	case !existed:
		s.metrics.RecordUpsert(UpsertAdded)
		s.logger.Info("Adding certificate",
			"certificate_name", stored.Name,
			"thumbprint", stored.Thumbprint)

	case previous.Thumbprint != stored.Thumbprint:
		s.metrics.RecordUpsert(UpsertRotated)
		s.logger.Info("Updating certificate",
			"certificate_name", stored.Name,
			"old_thumbprint", previous.Thumbprint,
			"thumbprint", stored.Thumbprint)
		s.notify(RotationEvent{
			Name:          stored.Name,
			OldThumbprint: previous.Thumbprint,
			NewThumbprint: stored.Thumbprint,
			At:            stored.UpdatedAt,
		})

	default:
		s.metrics.RecordUpsert(UpsertUnchanged)
		s.logger.Debug("Certificate unchanged",
			"certificate_name", stored.Name,
			"thumbprint", stored.Thumbprint)
	}
}

// Get returns the entry stored under name. Lookups are case-insensitive.
func (s *CertificateStore) Get(name string) (*domain.CertificateEntry, bool) {
	s.mu.RLock()
	entry, ok := s.entries[storeKey(name)]
	s.mu.RUnlock()

	if !ok {
		s.metrics.RecordCacheMiss()
		s.logger.Debug("Certificate not found in store", "certificate_name", name)
		return nil, false
	}

	s.metrics.RecordCacheHit()
	return entry, true
}

// SnapshotDecryptionKeys returns a copy of every stored entry's key material,
// ordered by name. Each element is consistent with one upsert; the slice as a
// whole may straddle an in-flight refresh.
func (s *CertificateStore) SnapshotDecryptionKeys() []domain.DecryptionKey {
	s.mu.RLock()
	keys := make([]domain.DecryptionKey, 0, len(s.entries))
	for _, entry := range s.entries {
		keys = append(keys, entry.DecryptionKey())
	}
	s.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i].Name) < strings.ToLower(keys[j].Name)
	})
	return keys
}

// Len returns the number of distinct names held.
func (s *CertificateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Names returns the stored names, sorted.
func (s *CertificateStore) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.entries))
	for _, entry := range s.entries {
		names = append(names, entry.Name)
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names
}

func (s *CertificateStore) notify(event RotationEvent) {
	s.subMu.RLock()
	subscribers := make([]subscription, len(s.subscribers))
	copy(subscribers, s.subscribers)
	s.subMu.RUnlock()

	for _, sub := range subscribers {
		sub.listener(event)
	}
}

func storeKey(name string) string {
	return strings.ToLower(name)
}
