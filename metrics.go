package ragkit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    cascadeCounter  prometheus.Counter
//	    fusionHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordCascade(strategy string, duration time.Duration, err error) {
//	    p.cascadeCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordCascade is called after each cascade run.
	// strategy is the strategy the cascade settled on, err is nil if successful.
	RecordCascade(strategy string, duration time.Duration, err error)

	// RecordFusion is called after each fusion operation.
	RecordFusion(strategy string, duration time.Duration, err error)

	// RecordCacheGet is called after each cache lookup.
	// hit is true when a payload was served from any tier.
	RecordCacheGet(hit bool, duration time.Duration, err error)

	// RecordCacheSet is called after each cache write.
	// stored is false when a policy gate rejected the write.
	RecordCacheSet(stored bool, duration time.Duration, err error)

	// RecordInvalidate is called after each invalidation.
	// removed is the number of distinct keys removed.
	RecordInvalidate(removed int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCascade(string, time.Duration, error) {}
func (NoopMetricsCollector) RecordFusion(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordCacheGet(bool, time.Duration, error)  {}
func (NoopMetricsCollector) RecordCacheSet(bool, time.Duration, error)  {}
func (NoopMetricsCollector) RecordInvalidate(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CascadeCount      atomic.Int64
	CascadeErrors     atomic.Int64
	CascadeTotalNanos atomic.Int64
	FusionCount       atomic.Int64
	FusionErrors      atomic.Int64
	FusionTotalNanos  atomic.Int64
	CacheGetCount     atomic.Int64
	CacheGetHits      atomic.Int64
	CacheGetErrors    atomic.Int64
	CacheSetCount     atomic.Int64
	CacheSetStored    atomic.Int64
	CacheSetErrors    atomic.Int64
	InvalidateCount   atomic.Int64
	InvalidateRemoved atomic.Int64
}

// RecordCascade implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCascade(strategy string, duration time.Duration, err error) {
	b.CascadeCount.Add(1)
	b.CascadeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CascadeErrors.Add(1)
	}
}

// RecordFusion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFusion(strategy string, duration time.Duration, err error) {
	b.FusionCount.Add(1)
	b.FusionTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FusionErrors.Add(1)
	}
}

// RecordCacheGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheGet(hit bool, duration time.Duration, err error) {
	b.CacheGetCount.Add(1)
	if hit {
		b.CacheGetHits.Add(1)
	}
	if err != nil {
		b.CacheGetErrors.Add(1)
	}
}

// RecordCacheSet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheSet(stored bool, duration time.Duration, err error) {
	b.CacheSetCount.Add(1)
	if stored {
		b.CacheSetStored.Add(1)
	}
	if err != nil {
		b.CacheSetErrors.Add(1)
	}
}

// RecordInvalidate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidate(removed int, duration time.Duration, err error) {
	b.InvalidateCount.Add(1)
	b.InvalidateRemoved.Add(int64(removed))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CascadeCount:      b.CascadeCount.Load(),
		CascadeErrors:     b.CascadeErrors.Load(),
		CascadeAvgNanos:   avgNanos(&b.CascadeTotalNanos, &b.CascadeCount),
		FusionCount:       b.FusionCount.Load(),
		FusionErrors:      b.FusionErrors.Load(),
		FusionAvgNanos:    avgNanos(&b.FusionTotalNanos, &b.FusionCount),
		CacheGetCount:     b.CacheGetCount.Load(),
		CacheGetHits:      b.CacheGetHits.Load(),
		CacheGetErrors:    b.CacheGetErrors.Load(),
		CacheSetCount:     b.CacheSetCount.Load(),
		CacheSetStored:    b.CacheSetStored.Load(),
		CacheSetErrors:    b.CacheSetErrors.Load(),
		InvalidateCount:   b.InvalidateCount.Load(),
		InvalidateRemoved: b.InvalidateRemoved.Load(),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CascadeCount      int64
	CascadeErrors     int64
	CascadeAvgNanos   int64
	FusionCount       int64
	FusionErrors      int64
	FusionAvgNanos    int64
	CacheGetCount     int64
	CacheGetHits      int64
	CacheGetErrors    int64
	CacheSetCount     int64
	CacheSetStored    int64
	CacheSetErrors    int64
	InvalidateCount   int64
	InvalidateRemoved int64
}
