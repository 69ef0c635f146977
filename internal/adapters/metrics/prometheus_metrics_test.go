package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/certkeeper/internal/core/services"
)

func TestPrometheusMetrics_StoreCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordUpsert(services.UpsertAdded)
	m.RecordUpsert(services.UpsertRotated)
	m.RecordUpsert(services.UpsertRotated)
	m.SetStoreSize(3)
	m.UpdateCertExpiry("encryption", 1.8e9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.upserts.WithLabelValues(services.UpsertRotated)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.storeSize))
	assert.Equal(t, 1.8e9, testutil.ToFloat64(m.certExpiry.WithLabelValues("encryption")))
}

func TestPrometheusMetrics_Refresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordRefresh(true, 0.2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lastRefresh))

	m.RecordRefresh(false, 0.4)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.lastRefresh))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("false")))

	m.RecordDescriptorFailure("local-keystore-source", services.ReasonNotFound)
	m.RecordDescriptorFailure("", services.ReasonUnknownType)

	expected := `
# HELP certkeeper_descriptor_failures_total Total number of certificates skipped during refresh
# TYPE certkeeper_descriptor_failures_total counter
certkeeper_descriptor_failures_total{reason="not_found",source_type="local-keystore-source"} 1
certkeeper_descriptor_failures_total{reason="unknown_type",source_type="unset"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "certkeeper_descriptor_failures_total"))
}

func TestPrometheusMetrics_Resolutions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.RecordResolution(services.ResolutionMatch)
	m.RecordResolution(services.ResolutionFallback)
	m.RecordResolution(services.ResolutionFallback)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues(services.ResolutionMatch)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutions.WithLabelValues(services.ResolutionFallback)))
}

func TestNewPrometheusMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusMetrics(reg)

	assert.Panics(t, func() { NewPrometheusMetrics(reg) })
}
