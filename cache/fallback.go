package cache

import "context"

// NeighborResolver finds a semantically clustered "neighbor query" whose
// cached answer can stand in when the exact key misses on every tier.
//
// It is a pluggable strategy: the cache consults it only after all tiers
// miss, serves the neighbor's payload annotated with the substitution and
// never promotes it, so the neighbor's key is not confused with the missed
// one. Clustering itself (embeddings, query logs) lives behind the
// implementation.
type NeighborResolver interface {
	// Neighbor returns the cache key of a close-enough neighbor query,
	// ok=false when none qualifies.
	Neighbor(ctx context.Context, query string, key string) (neighborKey string, ok bool)
}
