// Package ragkit provides the retrieval-quality and response-caching engine
// of a retrieval-augmented QA backend.
//
// Ragkit combines four concerns behind one facade:
//
//   - Score fusion: multi-signal candidate ranking with variance-driven
//     strategy selection (cosine-only, cross-relevance, hybrid RRF)
//   - Confidence evaluation: text match, domain term coverage and context
//     relevance blended into one retrieval confidence score
//   - Search cascade: a cheap lexical pass whose confidence decides whether
//     a semantic pass runs at all (TEXT_ONLY, HYBRID, VECTOR_ONLY)
//   - Response caching: three tiers (FAST LRU, WARM TTL, COLD persistent)
//     with promotion, tag/pattern invalidation, per-caller rate limiting and
//     a fail-closed compliance gate
//
// # Quick Start
//
// Create an engine with searchers and a persistent cold tier:
//
//	ctx := context.Background()
//	eng, err := ragkit.New(
//	    ragkit.WithLexicalSearcher(lexical),
//	    ragkit.WithSemanticSearcher(semantic),
//	    ragkit.WithWarmStore(store.NewMemory(0)),
//	    ragkit.WithColdStore(coldStore),
//	    ragkit.WithRateLimit(ratelimit.DefaultConfig()),
//	    ragkit.WithComplianceClassifier(classifier),
//	)
//	if err != nil {
//	    panic(err)
//	}
//
// Run the cascade and fuse the results:
//
//	res, err := eng.RunCascade(ctx, "what is diabetes", cascade.SearchConfig{TopK: 10})
//	ranked, analysis, err := eng.FuseAndRank(ctx, "what is diabetes", res.Items, 5)
//
// Cache the rendered answer:
//
//	set, err := eng.CacheSet(ctx, "what is diabetes", cache.Request{
//	    Caller: "tenant-1",
//	    Tags:   []string{"health"},
//	}, payload)
//
// Every threshold is reachable through options; see options.go.
package ragkit

import (
	"context"
	"time"

	"github.com/hupe1980/ragkit/cache"
	"github.com/hupe1980/ragkit/cascade"
	"github.com/hupe1980/ragkit/compliance"
	"github.com/hupe1980/ragkit/confidence"
	"github.com/hupe1980/ragkit/fusion"
	"github.com/hupe1980/ragkit/model"
	"github.com/hupe1980/ragkit/ratelimit"
)

// Engine is the facade over fusion, confidence, cascade and cache.
type Engine struct {
	fusion     *fusion.Engine
	evaluator  *confidence.Evaluator
	controller *cascade.Controller
	cache      *cache.ResponseCache
	metrics    MetricsCollector
	logger     *Logger
}

// New creates an Engine. Searchers, tier stores, rate limiting and
// compliance are all optional; an Engine without searchers still serves the
// fusion, confidence and cache operations.
func New(optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)

	evaluator := confidence.NewEvaluator(opts.confidenceConfig, opts.domainSet, opts.contextSet)

	var limiter *ratelimit.Limiter
	if opts.rateLimitConfig != nil {
		limiter = ratelimit.New(*opts.rateLimitConfig)
	}

	var gate *compliance.Gate
	if opts.classifier != nil {
		gate = compliance.NewGate(opts.classifier, opts.logger.Logger)
	}

	var controller *cascade.Controller
	if opts.lexical != nil || opts.semantic != nil {
		controller = cascade.NewController(opts.cascadeConfig, opts.lexical, opts.semantic, evaluator, opts.logger.Logger)
	}

	return &Engine{
		fusion:     fusion.NewEngine(opts.fusionConfig, opts.scorer),
		evaluator:  evaluator,
		controller: controller,
		cache:      cache.New(opts.cacheConfig, opts.warm, opts.cold, limiter, gate, opts.neighbor, opts.logger.Logger),
		metrics:    opts.metricsCollector,
		logger:     opts.logger,
	}, nil
}

// EvaluateConfidence scores how trustworthy the lexical results are for the
// query. Pure; callable concurrently.
func (e *Engine) EvaluateConfidence(query string, results []model.ScoredItem, expectedCount int) model.ConfidenceScore {
	return e.evaluator.Evaluate(query, results, expectedCount)
}

// RunCascade executes the confidence-driven search cascade for query.
func (e *Engine) RunCascade(ctx context.Context, query string, sc cascade.SearchConfig) (*cascade.Result, error) {
	start := time.Now()
	if e.controller == nil {
		err := translateError(cascade.ErrNoSearcher)
		e.metrics.RecordCascade("", time.Since(start), err)
		return nil, err
	}

	res, err := e.controller.Run(ctx, query, sc)
	duration := time.Since(start)
	if err != nil {
		err = translateError(err)
		e.metrics.RecordCascade("", duration, err)
		e.logger.LogCascade(ctx, "", 0, err)
		return nil, err
	}
	e.metrics.RecordCascade(res.Strategy.String(), duration, nil)
	e.logger.LogCascade(ctx, res.Strategy.String(), len(res.Items), nil)
	return res, nil
}

// FuseAndRank combines the items' signals into fused scores, sorts
// descending and truncates to topK (topK <= 0 keeps everything).
func (e *Engine) FuseAndRank(ctx context.Context, query string, items []model.ScoredItem, topK int) ([]model.ScoredItem, fusion.Analysis, error) {
	start := time.Now()
	ranked, analysis, err := e.fusion.FuseAndRank(ctx, query, items, topK)
	duration := time.Since(start)
	if err != nil {
		err = translateError(err)
		e.metrics.RecordFusion("", duration, err)
		e.logger.LogFusion(ctx, "", len(items), 0, err)
		return nil, fusion.Analysis{}, err
	}
	e.metrics.RecordFusion(analysis.Strategy.String(), duration, nil)
	e.logger.LogFusion(ctx, analysis.Strategy.String(), len(items), len(ranked), nil)
	return ranked, analysis, nil
}

// CacheGet looks the query up across the cache tiers. Policy outcomes (rate
// limited, compliance blocked) surface as fields on the result, not as
// errors.
func (e *Engine) CacheGet(ctx context.Context, query string, req cache.Request) (cache.GetResult, error) {
	start := time.Now()
	res, err := e.cache.Get(ctx, query, req)
	duration := time.Since(start)
	if err != nil {
		err = translateError(err)
		e.metrics.RecordCacheGet(false, duration, err)
		e.logger.LogCacheGet(ctx, "", false, "", err)
		return cache.GetResult{}, err
	}
	e.metrics.RecordCacheGet(res.Found, duration, nil)
	e.logger.LogCacheGet(ctx, compliance.KeyRef(res.Key), res.Found, res.Tier.String(), nil)
	return res, nil
}

// CacheSet stores the payload across all cache tiers. The computed key is
// always returned, even when the write was rejected by a gate.
func (e *Engine) CacheSet(ctx context.Context, query string, req cache.Request, payload []byte) (cache.SetResult, error) {
	start := time.Now()
	res, err := e.cache.Set(ctx, query, req, payload)
	duration := time.Since(start)
	if err != nil {
		err = translateError(err)
		e.metrics.RecordCacheSet(false, duration, err)
		e.logger.LogCacheSet(ctx, "", false, err)
		return cache.SetResult{}, err
	}
	e.metrics.RecordCacheSet(res.Stored, duration, nil)
	e.logger.LogCacheSet(ctx, compliance.KeyRef(res.Key), res.Stored, nil)
	return res, nil
}

// CacheInvalidate removes cache entries matching the glob pattern and/or
// carrying any of the tags, across all tiers. Returns the number of distinct
// keys removed.
func (e *Engine) CacheInvalidate(ctx context.Context, pattern string, tags []string) (int, error) {
	start := time.Now()
	removed, err := e.cache.Invalidate(ctx, pattern, tags)
	duration := time.Since(start)
	if err != nil {
		err = translateError(err)
		e.metrics.RecordInvalidate(0, duration, err)
		e.logger.LogInvalidate(ctx, 0, err)
		return 0, err
	}
	e.metrics.RecordInvalidate(removed, duration, nil)
	e.logger.LogInvalidate(ctx, removed, nil)
	return removed, nil
}

// CacheStats returns a snapshot of cache behavior.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}
