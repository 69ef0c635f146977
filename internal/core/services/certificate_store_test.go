package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/certkeeper/internal/core/domain"
)

func entryWithThumbprint(name, thumbprint string) *domain.CertificateEntry {
	return &domain.CertificateEntry{Name: name, Thumbprint: thumbprint, KeyID: "kid-" + thumbprint}
}

func TestCertificateStore_UpsertAddDoesNotNotify(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	var events []RotationEvent
	store.Subscribe(func(e RotationEvent) { events = append(events, e) })

	store.Upsert("encryption", entryWithThumbprint("encryption", "AA11"))

	assert.Empty(t, events)
	assert.Equal(t, 1, store.Len())
}

func TestCertificateStore_UpsertRotationNotifiesOnce(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	var events []RotationEvent
	store.Subscribe(func(e RotationEvent) { events = append(events, e) })

	store.Upsert("encryption", entryWithThumbprint("encryption", "AA11"))
	store.Upsert("encryption", entryWithThumbprint("encryption", "BB22"))

	require.Len(t, events, 1)
	assert.Equal(t, "encryption", events[0].Name)
	assert.Equal(t, "AA11", events[0].OldThumbprint)
	assert.Equal(t, "BB22", events[0].NewThumbprint)

	entry, ok := store.Get("encryption")
	require.True(t, ok)
	assert.Equal(t, "BB22", entry.Thumbprint)
}

func TestCertificateStore_UpsertSameThumbprintReplacesSilently(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	store.now = func() time.Time { return first }

	notified := 0
	store.Subscribe(func(RotationEvent) { notified++ })

	store.Upsert("encryption", entryWithThumbprint("encryption", "AA11"))
	store.now = func() time.Time { return second }
	store.Upsert("encryption", entryWithThumbprint("encryption", "AA11"))

	assert.Zero(t, notified)

	entry, ok := store.Get("encryption")
	require.True(t, ok)
	assert.Equal(t, second, entry.UpdatedAt)
}

func TestCertificateStore_NamesAreCaseInsensitive(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	store.Upsert("Prod", entryWithThumbprint("Prod", "AA11"))
	store.Upsert("PROD", entryWithThumbprint("PROD", "AA11"))

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("prod")
	assert.True(t, ok)
}

func TestCertificateStore_Unsubscribe(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	var a, b int
	unsubscribeA := store.Subscribe(func(RotationEvent) { a++ })
	store.Subscribe(func(RotationEvent) { b++ })

	store.Upsert("n", entryWithThumbprint("n", "AA11"))
	store.Upsert("n", entryWithThumbprint("n", "BB22"))

	unsubscribeA()
	unsubscribeA()

	store.Upsert("n", entryWithThumbprint("n", "CC33"))

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestCertificateStore_ListenerSeesNewEntry(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	var seen string
	store.Subscribe(func(e RotationEvent) {
		entry, ok := store.Get(e.Name)
		if ok {
			seen = entry.Thumbprint
		}
	})

	store.Upsert("n", entryWithThumbprint("n", "AA11"))
	store.Upsert("n", entryWithThumbprint("n", "BB22"))

	assert.Equal(t, "BB22", seen)
}

func TestCertificateStore_NilEntryIgnored(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	store.Upsert("n", nil)

	assert.Zero(t, store.Len())
}

func TestCertificateStore_SnapshotDecryptionKeys(t *testing.T) {
	metrics := &recordingMetrics{}
	store := NewCertificateStore(discardLogger(), metrics)

	store.Upsert("b", entryWithThumbprint("b", "BB22"))
	store.Upsert("a", entryWithThumbprint("a", "AA11"))
	store.Upsert("b", entryWithThumbprint("b", "CC33"))

	keys := store.SnapshotDecryptionKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, "a", keys[0].Name)
	assert.Equal(t, "b", keys[1].Name)
	assert.Equal(t, "CC33", keys[1].Thumbprint)

	assert.Equal(t, []string{UpsertAdded, UpsertAdded, UpsertRotated}, metrics.upserts)
	assert.Equal(t, 2, metrics.size)
	assert.Equal(t, []string{"a", "b"}, store.Names())
}

func TestCertificateStore_GetRecordsHitsAndMisses(t *testing.T) {
	metrics := &recordingMetrics{}
	store := NewCertificateStore(discardLogger(), metrics)
	store.Upsert("a", entryWithThumbprint("a", "AA11"))

	_, ok := store.Get("a")
	assert.True(t, ok)
	_, ok = store.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
}

func TestCertificateStore_ConcurrentAccess(t *testing.T) {
	store := NewCertificateStore(discardLogger(), nil)

	var mu sync.Mutex
	rotations := 0
	store.Subscribe(func(RotationEvent) {
		mu.Lock()
		rotations++
		mu.Unlock()
	})

	const writers = 8
	const rounds = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			name := fmt.Sprintf("cert-%d", w)
			for i := 0; i < rounds; i++ {
				store.Upsert(name, entryWithThumbprint(name, fmt.Sprintf("%04X", i)))
			}
		}(w)
	}
	for r := 0; r < writers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				for _, key := range store.SnapshotDecryptionKeys() {
					assert.NotEmpty(t, key.Thumbprint)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers, store.Len())
	assert.Equal(t, writers*(rounds-1), rotations)
}
