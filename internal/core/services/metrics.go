package services

// Upsert outcomes reported to MetricsReporter.RecordUpsert.
const (
	UpsertAdded     = "added"
	UpsertRotated   = "rotated"
	UpsertUnchanged = "unchanged"
)

// Resolution outcomes reported to MetricsReporter.RecordResolution.
const (
	ResolutionMatch    = "match"
	ResolutionFallback = "fallback"
	ResolutionEmpty    = "empty"
)

// MetricsReporter interface for reporting metrics
type MetricsReporter interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordUpsert(outcome string)
	SetStoreSize(entries int)
	UpdateCertExpiry(name string, expiryTime float64)
	RecordRefresh(allSucceeded bool, duration float64)
	RecordDescriptorFailure(sourceType, reason string)
	RecordResolution(outcome string)
}

// NoOpMetrics implements MetricsReporter with no-op methods for when metrics are disabled
type NoOpMetrics struct{}

// RecordCacheHit no-op implementation
func (NoOpMetrics) RecordCacheHit() {}

// RecordCacheMiss no-op implementation
func (NoOpMetrics) RecordCacheMiss() {}

// RecordUpsert no-op implementation
func (NoOpMetrics) RecordUpsert(outcome string) {}

// SetStoreSize no-op implementation
func (NoOpMetrics) SetStoreSize(entries int) {}

// UpdateCertExpiry no-op implementation
func (NoOpMetrics) UpdateCertExpiry(name string, expiryTime float64) {}

// RecordRefresh no-op implementation
func (NoOpMetrics) RecordRefresh(allSucceeded bool, duration float64) {}

// RecordDescriptorFailure no-op implementation
func (NoOpMetrics) RecordDescriptorFailure(sourceType, reason string) {}

// RecordResolution no-op implementation
func (NoOpMetrics) RecordResolution(outcome string) {}
