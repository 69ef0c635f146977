// Package metrics provides Prometheus-based implementations of service metrics reporting.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sufield/certkeeper/internal/core/services"
)

const namespace = "certkeeper"

// PrometheusMetrics implements services.MetricsReporter using Prometheus.
type PrometheusMetrics struct {
	// Certificate store metrics
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	upserts     *prometheus.CounterVec // outcome: added, rotated, unchanged
	storeSize   prometheus.Gauge
	certExpiry  *prometheus.GaugeVec

	// Refresh cycle metrics
	refreshes          *prometheus.CounterVec // all_succeeded: true, false
	refreshDuration    prometheus.Histogram
	lastRefresh        prometheus.Gauge
	descriptorFailures *prometheus.CounterVec

	// Decryption key resolution
	resolutions *prometheus.CounterVec // outcome: match, fallback, empty
}

// NewPrometheusMetrics registers the certkeeper collectors with reg and returns
// a reporter. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_cache_hits_total",
			Help:      "Total number of certificate store lookups that found an entry",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_cache_misses_total",
			Help:      "Total number of certificate store lookups that found nothing",
		}),
		upserts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cert_upserts_total",
			Help:      "Total number of certificate store writes by outcome",
		}, []string{"outcome"}),
		storeSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cert_store_entries",
			Help:      "Number of certificates currently held",
		}),
		certExpiry: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cert_expiry_timestamp_seconds",
			Help:      "Unix timestamp when the stored certificate will expire",
		}, []string{"certificate_name"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Total number of completed refresh cycles",
		}, []string{"all_succeeded"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refresh cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		lastRefresh: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_success",
			Help:      "1 if the most recent refresh cycle loaded every certificate, 0 otherwise",
		}),
		descriptorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "descriptor_failures_total",
			Help:      "Total number of certificates skipped during refresh",
		}, []string{"source_type", "reason"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_resolutions_total",
			Help:      "Total number of decryption key resolutions by outcome",
		}, []string{"outcome"}),
	}
}

// RecordCacheHit records a store hit.
func (m *PrometheusMetrics) RecordCacheHit() {
	m.cacheHits.Inc()
}

// RecordCacheMiss records a store miss.
func (m *PrometheusMetrics) RecordCacheMiss() {
	m.cacheMisses.Inc()
}

// RecordUpsert records a store write.
func (m *PrometheusMetrics) RecordUpsert(outcome string) {
	m.upserts.WithLabelValues(outcome).Inc()
}

// SetStoreSize updates the entry count.
func (m *PrometheusMetrics) SetStoreSize(entries int) {
	m.storeSize.Set(float64(entries))
}

// UpdateCertExpiry updates the certificate expiry timestamp.
func (m *PrometheusMetrics) UpdateCertExpiry(name string, expiryTime float64) {
	m.certExpiry.WithLabelValues(name).Set(expiryTime)
}

// RecordRefresh records a completed refresh cycle.
func (m *PrometheusMetrics) RecordRefresh(allSucceeded bool, duration float64) {
	m.refreshes.WithLabelValues(strconv.FormatBool(allSucceeded)).Inc()
	m.refreshDuration.Observe(duration)
	if allSucceeded {
		m.lastRefresh.Set(1)
	} else {
		m.lastRefresh.Set(0)
	}
}

// RecordDescriptorFailure records a skipped descriptor.
func (m *PrometheusMetrics) RecordDescriptorFailure(sourceType, reason string) {
	if sourceType == "" {
		sourceType = "unset"
	}
	m.descriptorFailures.WithLabelValues(sourceType, reason).Inc()
}

// RecordResolution records a key resolution.
func (m *PrometheusMetrics) RecordResolution(outcome string) {
	m.resolutions.WithLabelValues(outcome).Inc()
}

var _ services.MetricsReporter = (*PrometheusMetrics)(nil)
