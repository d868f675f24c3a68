// Package cache implements the three-tier response cache: an in-process
// FAST tier (LRU, size-bounded), a shared WARM tier (TTL) and a persistent
// COLD tier (manual invalidation only).
//
// Reads probe FAST, WARM, COLD in order and promote hot entries toward
// faster tiers. Writes land in FAST synchronously and fan out to WARM and
// COLD. Both paths are gated by a per-caller token bucket and a compliance
// classifier; gate outcomes are structured results, not errors, so callers
// can tell "no data" from "blocked by policy".
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ragkit/cache/store"
	"github.com/hupe1980/ragkit/compliance"
	"github.com/hupe1980/ragkit/model"
	"github.com/hupe1980/ragkit/ratelimit"
)

var (
	// ErrInvalidQuery is returned for blank queries. Rejected before any
	// bucket consumption or tier access.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNothingToInvalidate is returned when Invalidate gets neither a
	// pattern nor tags.
	ErrNothingToInvalidate = errors.New("invalidate needs a pattern or tags")
)

// Metadata key annotating payloads served via cluster fallback.
const MetaNeighborKey = "neighbor_key"

// Config holds the cache tuning knobs.
type Config struct {
	// FastCapacity bounds the FAST tier entry count.
	FastCapacity int
	// WarmTTL is the WARM tier entry lifetime.
	WarmTTL time.Duration
	// PromoteToFastAfter is the access count at which a WARM/COLD hit is
	// copied into FAST.
	PromoteToFastAfter int64
	// PromoteToWarmAfter is the access count at which a COLD hit is copied
	// into WARM.
	PromoteToWarmAfter int64
	// KeyUserFields whitelists the user-context fields that enter the
	// cache key (e.g. "age_band", "locale").
	KeyUserFields []string
	// AsyncBackfill makes the WARM/COLD writes of Set fire-and-forget:
	// Set returns once FAST is written, trading durability for latency.
	// Off by default; the trade is explicit, never silent.
	AsyncBackfill bool
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		FastCapacity:       1024,
		WarmTTL:            6 * time.Hour,
		PromoteToFastAfter: 3,
		PromoteToWarmAfter: 2,
		KeyUserFields:      []string{"age_band", "locale"},
	}
}

// GetResult is the structured outcome of a Get.
type GetResult struct {
	Payload []byte
	Found   bool
	// Key is the computed cache key, also set on misses.
	Key string
	// Tier is where the hit came from, TierUnknown on miss.
	Tier model.Tier
	// RateLimited marks a silent miss caused by the token bucket.
	RateLimited bool
	// ComplianceBlocked marks a miss caused by the query being flagged.
	ComplianceBlocked bool
	// NeighborKey is set when a clustered neighbor's payload was served.
	NeighborKey string
}

// SetResult is the structured outcome of a Set. The key is always returned,
// stored=false tells the caller nothing was written.
type SetResult struct {
	Key               string
	Stored            bool
	RateLimited       bool
	ComplianceBlocked bool
}

// ResponseCache is the three-tier cache.
type ResponseCache struct {
	cfg  Config
	fast *fastTier
	warm store.Store
	cold store.Store

	limiter  *ratelimit.Limiter
	gate     *compliance.Gate
	neighbor NeighborResolver
	index    *tagIndex
	logger   *slog.Logger

	promotions     atomic.Int64
	warmHits       atomic.Int64
	warmMisses     atomic.Int64
	coldHits       atomic.Int64
	coldMisses     atomic.Int64
	neighborServes atomic.Int64
	rateBlocks     atomic.Int64

	now func() time.Time // test hook
}

// New creates a ResponseCache. warm and cold may be nil; the affected tier
// is then skipped on both paths. limiter and gate may be nil to disable the
// respective check. neighbor may be nil to disable cluster fallback.
func New(cfg Config, warm, cold store.Store, limiter *ratelimit.Limiter, gate *compliance.Gate, neighbor NeighborResolver, logger *slog.Logger) *ResponseCache {
	def := DefaultConfig()
	if cfg.FastCapacity <= 0 {
		cfg.FastCapacity = def.FastCapacity
	}
	if cfg.WarmTTL <= 0 {
		cfg.WarmTTL = def.WarmTTL
	}
	if cfg.PromoteToFastAfter <= 0 {
		cfg.PromoteToFastAfter = def.PromoteToFastAfter
	}
	if cfg.PromoteToWarmAfter <= 0 {
		cfg.PromoteToWarmAfter = def.PromoteToWarmAfter
	}
	if cfg.KeyUserFields == nil {
		cfg.KeyUserFields = def.KeyUserFields
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResponseCache{
		cfg:      cfg,
		fast:     newFastTier(cfg.FastCapacity),
		warm:     warm,
		cold:     cold,
		limiter:  limiter,
		gate:     gate,
		neighbor: neighbor,
		index:    newTagIndex(),
		logger:   logger,
		now:      time.Now,
	}
}

// Get looks the query up across the tiers.
//
// Policy outcomes (rate limited, compliance blocked) surface as fields on
// the result, not as errors; both count as misses for the caller's control
// flow. Only invalid input returns an error.
func (c *ResponseCache) Get(ctx context.Context, query string, req Request) (GetResult, error) {
	if strings.TrimSpace(query) == "" {
		return GetResult{}, ErrInvalidQuery
	}
	key := ComputeKey(query, req, c.cfg.KeyUserFields)
	res := GetResult{Key: key}

	if c.limiter != nil && !c.limiter.Allow(req.Caller) {
		c.rateBlocks.Add(1)
		res.RateLimited = true
		return res, nil
	}
	if c.gate != nil && !c.gate.Check(ctx, query, key) {
		res.ComplianceBlocked = true
		return res, nil
	}

	now := c.now()

	// FAST
	if e, ok := c.fast.get(key, now); ok {
		res.Payload = e.Payload
		res.Found = true
		res.Tier = model.TierFast
		return res, nil
	}

	// WARM
	if e, ok := c.probe(ctx, c.warm, key, &c.warmHits, &c.warmMisses); ok {
		c.touch(ctx, c.warm, e, now)
		if e.AccessCount >= c.cfg.PromoteToFastAfter {
			c.promote(e)
		}
		res.Payload = e.Payload
		res.Found = true
		res.Tier = model.TierWarm
		return res, nil
	}

	// COLD
	if e, ok := c.probe(ctx, c.cold, key, &c.coldHits, &c.coldMisses); ok {
		c.touch(ctx, c.cold, e, now)
		if e.AccessCount >= c.cfg.PromoteToWarmAfter && c.warm != nil {
			warmCopy := e.Clone()
			warmCopy.Tier = model.TierWarm
			warmCopy.ExpiresAt = now.Add(c.cfg.WarmTTL)
			if err := c.warm.Set(ctx, warmCopy); err != nil {
				c.logger.Warn("warm promotion failed", "key_ref", compliance.KeyRef(key), "error", err)
			} else {
				c.promotions.Add(1)
			}
		}
		if e.AccessCount >= c.cfg.PromoteToFastAfter {
			c.promote(e)
		}
		res.Payload = e.Payload
		res.Found = true
		res.Tier = model.TierCold
		return res, nil
	}

	// The key is in no tier: drop any stale tag-index entry so the index
	// doesn't accumulate keys whose copies expired or were evicted.
	c.index.remove(key)

	// Cluster fallback: serve a neighbor's answer, annotated, unpromoted.
	if c.neighbor != nil {
		if nk, ok := c.neighbor.Neighbor(ctx, query, key); ok {
			if e, ok := c.lookupUnrecorded(ctx, nk); ok {
				c.neighborServes.Add(1)
				res.Payload = e.Payload
				res.Found = true
				res.Tier = e.Tier
				res.NeighborKey = nk
				return res, nil
			}
		}
	}

	return res, nil
}

// Set stores the payload across all tiers.
//
// The computed key is always returned, even when rate limited or blocked,
// so the caller can correlate. A flagged query or payload writes nothing.
func (c *ResponseCache) Set(ctx context.Context, query string, req Request, payload []byte) (SetResult, error) {
	if strings.TrimSpace(query) == "" {
		return SetResult{}, ErrInvalidQuery
	}
	key := ComputeKey(query, req, c.cfg.KeyUserFields)
	res := SetResult{Key: key}

	if c.limiter != nil && !c.limiter.Allow(req.Caller) {
		c.rateBlocks.Add(1)
		res.RateLimited = true
		return res, nil
	}
	if c.gate != nil {
		if !c.gate.Check(ctx, query, key) || !c.gate.Check(ctx, string(payload), key) {
			res.ComplianceBlocked = true
			return res, nil
		}
	}

	now := c.now()
	entry := &model.CacheEntry{
		Key:               key,
		Payload:           append([]byte(nil), payload...),
		Tags:              append([]string(nil), req.Tags...),
		CreatedAt:         now,
		LastAccessed:      now,
		ComplianceCleared: true,
	}

	evicted := c.fast.set(entry.Clone())
	c.index.add(key, entry.Tags)
	if c.warm == nil && c.cold == nil {
		// FAST is the only tier: an evicted key is gone everywhere.
		for _, k := range evicted {
			c.index.remove(k)
		}
	}

	backfill := func() error {
		g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
		if c.warm != nil {
			warmCopy := entry.Clone()
			warmCopy.Tier = model.TierWarm
			warmCopy.ExpiresAt = now.Add(c.cfg.WarmTTL)
			g.Go(func() error {
				if err := c.warm.Set(gctx, warmCopy); err != nil {
					c.logger.Warn("warm write failed", "key_ref", compliance.KeyRef(key), "error", err)
				}
				return nil
			})
		}
		if c.cold != nil {
			coldCopy := entry.Clone()
			coldCopy.Tier = model.TierCold
			g.Go(func() error {
				if err := c.cold.Set(gctx, coldCopy); err != nil {
					c.logger.Warn("cold write failed", "key_ref", compliance.KeyRef(key), "error", err)
				}
				return nil
			})
		}
		return g.Wait()
	}
	if c.cfg.AsyncBackfill {
		go backfill() //nolint:errcheck // tier errors are logged, never returned
	} else {
		_ = backfill()
	}

	res.Stored = true
	return res, nil
}

// Invalidate removes entries matching the glob pattern and/or carrying any
// of the tags, across all tiers. Returns the number of distinct keys
// removed from at least one tier.
func (c *ResponseCache) Invalidate(ctx context.Context, pattern string, tags []string) (int, error) {
	if pattern == "" && len(tags) == 0 {
		return 0, ErrNothingToInvalidate
	}

	victims := make(map[string]struct{})
	for _, k := range c.index.keysForTags(tags) {
		victims[k] = struct{}{}
	}
	if pattern != "" {
		for _, k := range c.index.keysMatching(pattern) {
			victims[k] = struct{}{}
		}
		for _, k := range matchStoreKeys(ctx, c.warm, pattern) {
			victims[k] = struct{}{}
		}
		for _, k := range matchStoreKeys(ctx, c.cold, pattern) {
			victims[k] = struct{}{}
		}
		for _, k := range c.fast.keys() {
			if ok := globMatch(pattern, k); ok {
				victims[k] = struct{}{}
			}
		}
	}

	removed := 0
	for key := range victims {
		// Stores treat deleting an absent key as success, so presence is
		// checked first: only keys actually held in some tier count.
		hit := c.fast.delete(key)
		if c.warm != nil {
			if _, err := c.warm.Get(ctx, key); err == nil {
				hit = true
			}
			_ = c.warm.Delete(ctx, key)
		}
		if c.cold != nil {
			if _, err := c.cold.Get(ctx, key); err == nil {
				hit = true
			}
			_ = c.cold.Delete(ctx, key)
		}
		c.index.remove(key)
		if hit {
			removed++
		}
	}
	return removed, nil
}

// Stats returns a snapshot of cache behavior.
func (c *ResponseCache) Stats() Stats {
	s := Stats{
		Fast: TierStats{Hits: c.fast.hits.Load(), Misses: c.fast.misses.Load()},
		Warm: TierStats{Hits: c.warmHits.Load(), Misses: c.warmMisses.Load()},
		Cold: TierStats{Hits: c.coldHits.Load(), Misses: c.coldMisses.Load()},

		NeighborServes:  c.neighborServes.Load(),
		Promotions:      c.promotions.Load(),
		Evictions:       c.fast.evictions.Load(),
		RateLimitBlocks: c.rateBlocks.Load(),
	}
	if c.gate != nil {
		s.ComplianceExclusions = c.gate.Blocked()
	}
	return s
}

// probe reads key from a tier store, treating store errors and expired
// entries as misses. A tier being unreachable never fails the call; the
// next tier is checked instead.
func (c *ResponseCache) probe(ctx context.Context, s store.Store, key string, hits, misses *atomic.Int64) (*model.CacheEntry, bool) {
	if s == nil {
		return nil, false
	}
	e, err := s.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("tier read failed", "key_ref", compliance.KeyRef(key), "error", err)
		}
		misses.Add(1)
		return nil, false
	}
	hits.Add(1)
	return e, true
}

// touch bumps access bookkeeping and writes it back, best effort.
func (c *ResponseCache) touch(ctx context.Context, s store.Store, e *model.CacheEntry, now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
	if err := s.Set(ctx, e); err != nil {
		c.logger.Debug("access bookkeeping write failed", "key_ref", compliance.KeyRef(e.Key), "error", err)
	}
}

// promote copies an entry into the FAST tier.
func (c *ResponseCache) promote(e *model.CacheEntry) {
	fastCopy := e.Clone()
	fastCopy.ExpiresAt = time.Time{} // FAST is bounded by size, not TTL
	c.fast.set(fastCopy)
	c.promotions.Add(1)
}

// lookupUnrecorded probes all tiers without counters, promotion or access
// bookkeeping. Used for neighbor fallback.
func (c *ResponseCache) lookupUnrecorded(ctx context.Context, key string) (*model.CacheEntry, bool) {
	if e, ok := c.fast.peek(key); ok {
		return e, true
	}
	for _, s := range []store.Store{c.warm, c.cold} {
		if s == nil {
			continue
		}
		if e, err := s.Get(ctx, key); err == nil {
			return e, true
		}
	}
	return nil, false
}

func matchStoreKeys(ctx context.Context, s store.Store, pattern string) []string {
	if s == nil {
		return nil
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, k := range keys {
		if globMatch(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}
