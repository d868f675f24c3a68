package model

import (
	"fmt"
	"time"
)

// Well-known signal names on a ScoredItem.
//
// Collaborators may attach additional signals; fusion only requires that the
// names used for ranking exist on the items being ranked.
const (
	SignalLexical        = "lexical"
	SignalSemantic       = "semantic"
	SignalCrossRelevance = "cross_relevance"
)

// ScoredItem represents one retrieved candidate.
//
// Identity is SourceID; a result list must not contain two items with the
// same SourceID. Fusion enforces this before combining signals.
type ScoredItem struct {
	// SourceID is the stable identifier of the underlying document/chunk.
	SourceID string
	// Content is the retrieved text.
	Content string
	// Signals holds named relevance scores (e.g. lexical, semantic,
	// cross_relevance). Scales differ per signal; fusion normalizes.
	Signals map[string]float64
	// FusedScore is the final comparable score after fusion.
	FusedScore float64
	// Metadata carries genuinely variable extra attributes (observability
	// tags, substitution notes). Core fields never live here.
	Metadata map[string]any
}

// Signal returns the named signal score and whether it is present.
func (s ScoredItem) Signal(name string) (float64, bool) {
	v, ok := s.Signals[name]
	return v, ok
}

// BestScore returns the score used for ordering when no fusion has run:
// the fused score if set, otherwise semantic over lexical.
func (s ScoredItem) BestScore() float64 {
	if s.FusedScore != 0 {
		return s.FusedScore
	}
	if v, ok := s.Signals[SignalSemantic]; ok {
		return v
	}
	return s.Signals[SignalLexical]
}

// SetMeta sets a metadata attribute, allocating the map on first use.
func (s *ScoredItem) SetMeta(key string, value any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any, 2)
	}
	s.Metadata[key] = value
}

// ConfidenceScore is the multi-dimensional confidence of a first-pass result
// set against its query. Computed fresh per query; never persisted.
type ConfidenceScore struct {
	// Overall is the blended confidence in [0,1].
	Overall float64
	// TextMatch measures direct query/content term overlap in [0,1].
	TextMatch float64
	// DomainTermCoverage measures domain vocabulary coverage in [0,1].
	DomainTermCoverage float64
	// ContextRelevance measures conversational/contextual fit in [0,1].
	ContextRelevance float64
	// ResultCount is the raw number of results evaluated.
	ResultCount int
	// TopScore is the raw lexical score of the best result.
	TopScore float64
}

// Tier identifies a cache tier.
type Tier uint8

const (
	TierUnknown Tier = iota
	// TierFast is the in-process tier: no TTL, bounded by size, LRU evicted.
	TierFast
	// TierWarm is the shared tier: TTL-expired.
	TierWarm
	// TierCold is the persistent tier: manual invalidation only.
	TierCold
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// CacheEntry is one cached response.
type CacheEntry struct {
	// Key is the deterministic cache key digest.
	Key string
	// Payload is the opaque result blob.
	Payload []byte
	// Tier records which tier this copy of the entry lives in.
	Tier Tier
	// Tags are invalidation tags attached at Set time.
	Tags []string

	CreatedAt time.Time
	// ExpiresAt is zero for tiers without TTL (FAST, COLD).
	ExpiresAt    time.Time
	LastAccessed time.Time
	AccessCount  int64

	// ComplianceCleared records that the compliance gate passed at Set time.
	ComplianceCleared bool

	// Metadata carries variable extra attributes.
	Metadata map[string]any
}

// Expired reports whether the entry has a TTL and it has passed.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Clone returns a deep copy of the entry. Tier stores hand out clones so
// callers can mutate access bookkeeping without racing the store.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Payload = append([]byte(nil), e.Payload...)
	cp.Tags = append([]string(nil), e.Tags...)
	if e.Metadata != nil {
		cp.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
