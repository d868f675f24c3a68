package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/ragkit/cache/store"
	"github.com/hupe1980/ragkit/compliance"
	"github.com/hupe1980/ragkit/model"
	"github.com/hupe1980/ragkit/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore wraps a Store and counts operations.
type countingStore struct {
	store.Store
	gets, sets, deletes int
}

func (c *countingStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	c.gets++
	return c.Store.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, e *model.CacheEntry) error {
	c.sets++
	return c.Store.Set(ctx, e)
}

func (c *countingStore) Delete(ctx context.Context, key string) error {
	c.deletes++
	return c.Store.Delete(ctx, key)
}

type blockingClassifier struct {
	blockSubstring string
}

func (b blockingClassifier) Classify(ctx context.Context, text string) (compliance.Verdict, error) {
	if b.blockSubstring != "" && strings.Contains(text, b.blockSubstring) {
		return compliance.Verdict{Risk: compliance.RiskHigh, SafeToCache: false}, nil
	}
	return compliance.Verdict{Risk: compliance.RiskNone, SafeToCache: true}, nil
}

type staticNeighbor struct{ key string }

func (s staticNeighbor) Neighbor(ctx context.Context, query, key string) (string, bool) {
	return s.key, s.key != ""
}

func newTestCache(t *testing.T, cfg Config) (*ResponseCache, *countingStore, *countingStore) {
	t.Helper()
	warm := &countingStore{Store: store.NewMemory(0)}
	cold := &countingStore{Store: store.NewMemory(0)}
	c := New(cfg, warm, cold, nil, nil, nil, nil)
	t.Cleanup(func() {
		_ = warm.Close()
		_ = cold.Close()
	})
	return c, warm, cold
}

func TestSetThenGet_RoundTrip(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	ctx := context.Background()
	req := Request{Caller: "api", Tags: []string{"health"}}

	set, err := c.Set(ctx, "what is diabetes", req, []byte("answer"))
	require.NoError(t, err)
	require.True(t, set.Stored)
	require.NotEmpty(t, set.Key)

	got, err := c.Get(ctx, "what is diabetes", req)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, []byte("answer"), got.Payload)
	assert.Equal(t, model.TierFast, got.Tier)
	assert.Equal(t, set.Key, got.Key)
}

func TestGet_TagPermutationHitsSameEntry(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.Set(ctx, "q", Request{Tags: []string{"a", "b"}}, []byte("v"))
	require.NoError(t, err)

	got, err := c.Get(ctx, "q", Request{Tags: []string{"b", "a"}})
	require.NoError(t, err)
	assert.True(t, got.Found)
}

func TestGet_InvalidQueryNoSideEffects(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 1, RefillPerMinute: 1})
	c := New(Config{}, nil, nil, limiter, nil, nil, nil)

	_, err := c.Get(context.Background(), "  ", Request{Caller: "x"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, 0, limiter.Len(), "no bucket consumption on invalid input")
}

func TestGet_RateLimitedSkipsTiers(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 10, RefillPerMinute: 1})
	warm := &countingStore{Store: store.NewMemory(0)}
	c := New(Config{}, warm, nil, limiter, nil, nil, nil)
	ctx := context.Background()
	req := Request{Caller: "greedy"}

	for i := 0; i < 10; i++ {
		_, err := c.Get(ctx, "q", req)
		require.NoError(t, err)
	}
	warmGetsBefore := warm.gets

	res, err := c.Get(ctx, "q", req)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.RateLimited)
	assert.Equal(t, warmGetsBefore, warm.gets, "11th call must not consult any tier")
	assert.Equal(t, int64(1), c.Stats().RateLimitBlocks)
}

func TestSet_RateLimitedReturnsKey(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{Capacity: 1, RefillPerMinute: 1})
	c, warm, cold := newTestCacheWithLimiter(t, limiter)
	ctx := context.Background()
	req := Request{Caller: "writer"}

	first, err := c.Set(ctx, "q", req, []byte("v"))
	require.NoError(t, err)
	require.True(t, first.Stored)

	second, err := c.Set(ctx, "q", req, []byte("v"))
	require.NoError(t, err)
	assert.False(t, second.Stored)
	assert.True(t, second.RateLimited)
	assert.Equal(t, first.Key, second.Key, "key is returned even when rate limited")
	assert.Equal(t, 1, warm.sets)
	assert.Equal(t, 1, cold.sets)
}

func newTestCacheWithLimiter(t *testing.T, limiter *ratelimit.Limiter) (*ResponseCache, *countingStore, *countingStore) {
	t.Helper()
	warm := &countingStore{Store: store.NewMemory(0)}
	cold := &countingStore{Store: store.NewMemory(0)}
	c := New(Config{}, warm, cold, limiter, nil, nil, nil)
	t.Cleanup(func() {
		_ = warm.Close()
		_ = cold.Close()
	})
	return c, warm, cold
}

func TestSet_ComplianceBlockedWritesNothing(t *testing.T) {
	gate := compliance.NewGate(blockingClassifier{blockSubstring: "ssn"}, nil)
	warm := &countingStore{Store: store.NewMemory(0)}
	cold := &countingStore{Store: store.NewMemory(0)}
	c := New(Config{}, warm, cold, nil, gate, nil, nil)
	ctx := context.Background()

	res, err := c.Set(ctx, "harmless question", Request{}, []byte("the ssn is 123-45-6789"))
	require.NoError(t, err)

	assert.False(t, res.Stored)
	assert.True(t, res.ComplianceBlocked)
	assert.Equal(t, 0, warm.sets)
	assert.Equal(t, 0, cold.sets)
	assert.Equal(t, 0, c.fast.len())

	// The payload is unreachable afterwards.
	got, err := c.Get(ctx, "harmless question", Request{})
	require.NoError(t, err)
	assert.False(t, got.Found)
}

func TestGet_FlaggedQueryIsMiss(t *testing.T) {
	gate := compliance.NewGate(blockingClassifier{blockSubstring: "forbidden"}, nil)
	c := New(Config{}, nil, nil, nil, gate, nil, nil)

	res, err := c.Get(context.Background(), "forbidden question", Request{})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.ComplianceBlocked)
	assert.Equal(t, int64(1), c.Stats().ComplianceExclusions)
}

func TestGet_WarmHitAndPromotion(t *testing.T) {
	cfg := Config{PromoteToFastAfter: 2}
	c, warm, _ := newTestCache(t, cfg)
	ctx := context.Background()
	req := Request{}

	set, err := c.Set(ctx, "q", req, []byte("v"))
	require.NoError(t, err)

	// Drop the FAST copy so the next read must go to WARM.
	c.fast.delete(set.Key)

	got, err := c.Get(ctx, "q", req)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, model.TierWarm, got.Tier)
	assert.Equal(t, 1, warm.gets)

	// access_count is now 1 (< 2): not promoted yet.
	_, inFast := c.fast.peek(set.Key)
	assert.False(t, inFast)

	got, err = c.Get(ctx, "q", req)
	require.NoError(t, err)
	assert.Equal(t, model.TierWarm, got.Tier)

	// Second warm hit crossed the threshold: promoted into FAST.
	_, inFast = c.fast.peek(set.Key)
	assert.True(t, inFast)

	got, err = c.Get(ctx, "q", req)
	require.NoError(t, err)
	assert.Equal(t, model.TierFast, got.Tier)
	assert.GreaterOrEqual(t, c.Stats().Promotions, int64(1))
}

func TestGet_ColdHitPromotesToWarm(t *testing.T) {
	cfg := Config{PromoteToWarmAfter: 1, PromoteToFastAfter: 100}
	c, warm, cold := newTestCache(t, cfg)
	ctx := context.Background()

	set, err := c.Set(ctx, "q", Request{}, []byte("v"))
	require.NoError(t, err)

	// Strip the entry from FAST and WARM; only COLD keeps it.
	c.fast.delete(set.Key)
	require.NoError(t, warm.Store.Delete(ctx, set.Key))

	got, err := c.Get(ctx, "q", Request{})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, model.TierCold, got.Tier)
	assert.Equal(t, 1, cold.gets)

	// Promoted copy now sits in WARM with a TTL.
	e, err := warm.Store.Get(ctx, set.Key)
	require.NoError(t, err)
	assert.Equal(t, model.TierWarm, e.Tier)
	assert.False(t, e.ExpiresAt.IsZero())
}

func TestGet_TierOrderFastWarmCold(t *testing.T) {
	c, warm, cold := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.Set(ctx, "q", Request{}, []byte("v"))
	require.NoError(t, err)

	// A FAST hit consults nothing else.
	_, err = c.Get(ctx, "q", Request{})
	require.NoError(t, err)
	assert.Equal(t, 0, warm.gets)
	assert.Equal(t, 0, cold.gets)
}

func TestGet_WarmExpiryFallsThroughToCold(t *testing.T) {
	ctx := context.Background()
	warm := store.NewMemory(0)
	cold := store.NewMemory(0)
	c := New(Config{}, warm, cold, nil, nil, nil, nil)

	key := ComputeKey("q", Request{}, c.cfg.KeyUserFields)
	// WARM copy already past its TTL; COLD copy has none.
	require.NoError(t, warm.Set(ctx, &model.CacheEntry{
		Key:       key,
		Payload:   []byte("v"),
		Tier:      model.TierWarm,
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, cold.Set(ctx, &model.CacheEntry{
		Key:     key,
		Payload: []byte("v"),
		Tier:    model.TierCold,
	}))

	got, err := c.Get(ctx, "q", Request{})
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, model.TierCold, got.Tier)
}

func TestGet_NeighborFallback(t *testing.T) {
	ctx := context.Background()
	warm := &countingStore{Store: store.NewMemory(0)}

	// Seed a neighbor entry directly in WARM.
	require.NoError(t, warm.Store.Set(ctx, &model.CacheEntry{
		Key:     "neighbor-key",
		Payload: []byte("neighbor answer"),
		Tier:    model.TierWarm,
	}))

	c := New(Config{}, warm, nil, nil, nil, staticNeighbor{key: "neighbor-key"}, nil)

	got, err := c.Get(ctx, "unseen question", Request{})
	require.NoError(t, err)

	assert.True(t, got.Found)
	assert.Equal(t, []byte("neighbor answer"), got.Payload)
	assert.Equal(t, "neighbor-key", got.NeighborKey)
	assert.Equal(t, int64(1), c.Stats().NeighborServes)

	// Substituted answers are never promoted under the missed key.
	_, inFast := c.fast.peek(got.Key)
	assert.False(t, inFast)
	_, inFast = c.fast.peek("neighbor-key")
	assert.False(t, inFast)
}

func TestInvalidate_ByTag(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.Set(ctx, "q1", Request{Tags: []string{"health"}}, []byte("v1"))
	require.NoError(t, err)
	_, err = c.Set(ctx, "q2", Request{Tags: []string{"health", "faq"}}, []byte("v2"))
	require.NoError(t, err)
	_, err = c.Set(ctx, "q3", Request{Tags: []string{"billing"}}, []byte("v3"))
	require.NoError(t, err)

	n, err := c.Invalidate(ctx, "", []string{"health"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _ := c.Get(ctx, "q1", Request{Tags: []string{"health"}})
	assert.False(t, got.Found)
	got, _ = c.Get(ctx, "q3", Request{Tags: []string{"billing"}})
	assert.True(t, got.Found)
}

func TestInvalidate_ByPattern(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	ctx := context.Background()

	set, err := c.Set(ctx, "q1", Request{}, []byte("v1"))
	require.NoError(t, err)

	n, err := c.Invalidate(ctx, set.Key[:8]+"*", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := c.Get(ctx, "q1", Request{})
	assert.False(t, got.Found)
}

func TestInvalidate_NeedsPatternOrTags(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	_, err := c.Invalidate(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrNothingToInvalidate)
}

func TestStats_HitRates(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	ctx := context.Background()

	_, err := c.Set(ctx, "q", Request{}, []byte("v"))
	require.NoError(t, err)

	_, _ = c.Get(ctx, "q", Request{})    // fast hit
	_, _ = c.Get(ctx, "miss", Request{}) // full miss

	s := c.Stats()
	assert.Equal(t, int64(1), s.Fast.Hits)
	assert.Equal(t, int64(1), s.Fast.Misses)
	assert.Equal(t, 0.5, s.Fast.HitRate())
	assert.Equal(t, int64(1), s.Warm.Misses)
	assert.Equal(t, int64(1), s.Cold.Misses)
}

func TestSet_TierStoreFailureDegrades(t *testing.T) {
	warm := &countingStore{Store: store.NewMemory(0)}
	c := New(Config{}, warm, failingStore{}, nil, nil, nil, nil)
	ctx := context.Background()

	res, err := c.Set(ctx, "q", Request{}, []byte("v"))
	require.NoError(t, err, "a down COLD tier must not fail the write")
	assert.True(t, res.Stored)

	got, err := c.Get(ctx, "q", Request{})
	require.NoError(t, err)
	assert.True(t, got.Found)
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) Set(ctx context.Context, e *model.CacheEntry) error {
	return context.DeadlineExceeded
}
func (failingStore) Delete(ctx context.Context, key string) error { return nil }
func (failingStore) Keys(ctx context.Context) ([]string, error) {
	return nil, context.DeadlineExceeded
}
func (failingStore) Close() error { return nil }

func TestGet_FastHitPayloadSurvivesEviction(t *testing.T) {
	c := New(Config{FastCapacity: 1}, nil, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := c.Set(ctx, "q1", Request{}, []byte("answer one"))
	require.NoError(t, err)

	got, err := c.Get(ctx, "q1", Request{})
	require.NoError(t, err)
	require.True(t, got.Found)

	// Writing q2 evicts q1 and scrubs the tier's copy. The payload already
	// handed to the caller must stay intact.
	_, err = c.Set(ctx, "q2", Request{}, []byte("answer two"))
	require.NoError(t, err)

	assert.Equal(t, []byte("answer one"), got.Payload)
}

func TestSet_EvictionPrunesIndexWhenFastIsOnlyTier(t *testing.T) {
	c := New(Config{FastCapacity: 1}, nil, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := c.Set(ctx, "q1", Request{Tags: []string{"t"}}, []byte("v1"))
	require.NoError(t, err)
	set2, err := c.Set(ctx, "q2", Request{Tags: []string{"t"}}, []byte("v2"))
	require.NoError(t, err)

	// q1 was evicted from the only tier, so the tag index dropped it too.
	assert.ElementsMatch(t, []string{set2.Key}, c.index.keysForTags([]string{"t"}))

	removed, err := c.Invalidate(ctx, "", []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestInvalidate_StaleIndexEntryNotCounted(t *testing.T) {
	c, _, _ := newTestCache(t, Config{})
	c.index.add("stale-key", []string{"t"})

	removed, err := c.Invalidate(context.Background(), "", []string{"t"})
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Empty(t, c.index.keysForTags([]string{"t"}))
}

func TestGet_FullMissPrunesIndex(t *testing.T) {
	c, warm, cold := newTestCache(t, Config{})
	ctx := context.Background()

	set, err := c.Set(ctx, "q1", Request{Tags: []string{"t"}}, []byte("v"))
	require.NoError(t, err)

	// Drop every copy behind the cache's back.
	require.True(t, c.fast.delete(set.Key))
	require.NoError(t, warm.Delete(ctx, set.Key))
	require.NoError(t, cold.Delete(ctx, set.Key))

	got, err := c.Get(ctx, "q1", Request{Tags: []string{"t"}})
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.Empty(t, c.index.keysForTags([]string{"t"}))
}
