package ragkit

import (
	"log/slog"

	"github.com/hupe1980/ragkit/cache"
	"github.com/hupe1980/ragkit/cache/store"
	"github.com/hupe1980/ragkit/cascade"
	"github.com/hupe1980/ragkit/compliance"
	"github.com/hupe1980/ragkit/confidence"
	"github.com/hupe1980/ragkit/fusion"
	"github.com/hupe1980/ragkit/ratelimit"
)

type options struct {
	fusionConfig     fusion.Config
	scorer           fusion.CrossRelevanceScorer
	confidenceConfig confidence.Config
	domainSet        *confidence.CategorySet
	contextSet       *confidence.CategorySet
	cascadeConfig    cascade.Config
	lexical          cascade.LexicalSearcher
	semantic         cascade.SemanticSearcher
	cacheConfig      cache.Config
	warm             store.Store
	cold             store.Store
	neighbor         cache.NeighborResolver
	rateLimitConfig  *ratelimit.Config
	classifier       compliance.Classifier
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Engine constructor behavior.
//
// Options exist so every threshold is reachable without exploding the API
// surface; unset options keep the documented defaults.
type Option func(*options)

// WithFusionConfig overrides the fusion thresholds (variance cutoffs,
// cross-candidate cap, cross-score floor, RRF k).
func WithFusionConfig(cfg fusion.Config) Option {
	return func(o *options) {
		o.fusionConfig = cfg
	}
}

// WithCrossRelevanceScorer wires a pairwise relevance model into fusion.
// Without one, fusion never leaves cosine-only ranking.
func WithCrossRelevanceScorer(s fusion.CrossRelevanceScorer) Option {
	return func(o *options) {
		o.scorer = s
	}
}

// WithConfidenceConfig overrides the confidence weights and thresholds.
func WithConfidenceConfig(cfg confidence.Config) Option {
	return func(o *options) {
		o.confidenceConfig = cfg
	}
}

// WithDomainCategories replaces the default domain term category set.
func WithDomainCategories(cs *confidence.CategorySet) Option {
	return func(o *options) {
		o.domainSet = cs
	}
}

// WithContextCategories replaces the default context signal category set.
func WithContextCategories(cs *confidence.CategorySet) Option {
	return func(o *options) {
		o.contextSet = cs
	}
}

// WithCascadeConfig overrides the cascade decision thresholds.
func WithCascadeConfig(cfg cascade.Config) Option {
	return func(o *options) {
		o.cascadeConfig = cfg
	}
}

// WithLexicalSearcher wires the cheap first-pass searcher.
func WithLexicalSearcher(s cascade.LexicalSearcher) Option {
	return func(o *options) {
		o.lexical = s
	}
}

// WithSemanticSearcher wires the vector searcher used by HYBRID and
// VECTOR_ONLY strategies. Without one, the cascade never escalates beyond
// the lexical pass.
func WithSemanticSearcher(s cascade.SemanticSearcher) Option {
	return func(o *options) {
		o.semantic = s
	}
}

// WithCacheConfig overrides the cache tuning knobs (tier capacity, TTL,
// promotion thresholds, key fields, backfill mode).
func WithCacheConfig(cfg cache.Config) Option {
	return func(o *options) {
		o.cacheConfig = cfg
	}
}

// WithWarmStore wires the shared WARM tier store.
func WithWarmStore(s store.Store) Option {
	return func(o *options) {
		o.warm = s
	}
}

// WithColdStore wires the persistent COLD tier store.
func WithColdStore(s store.Store) Option {
	return func(o *options) {
		o.cold = s
	}
}

// WithNeighborResolver enables cluster fallback for cache misses.
func WithNeighborResolver(r cache.NeighborResolver) Option {
	return func(o *options) {
		o.neighbor = r
	}
}

// WithRateLimit enables per-caller token bucket rate limiting on the cache
// paths.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(o *options) {
		o.rateLimitConfig = &cfg
	}
}

// WithComplianceClassifier enables the compliance gate on the cache paths.
// The gate fails closed: a classifier error blocks the operation.
func WithComplianceClassifier(c compliance.Classifier) Option {
	return func(o *options) {
		o.classifier = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ragkit.BasicMetricsCollector{}
//	eng, _ := ragkit.New(ragkit.WithMetricsCollector(metrics))
//	// ... use eng ...
//	stats := metrics.GetStats()
//	fmt.Printf("Cascades: %d, Avg latency: %dns\n", stats.CascadeCount, stats.CascadeAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// If nil is passed, logging stays disabled.
//
// Example with JSON logging:
//
//	logger := ragkit.NewJSONLogger(slog.LevelInfo)
//	eng, _ := ragkit.New(ragkit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fusionConfig:     fusion.DefaultConfig(),
		confidenceConfig: confidence.DefaultConfig(),
		cascadeConfig:    cascade.DefaultConfig(),
		cacheConfig:      cache.DefaultConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
