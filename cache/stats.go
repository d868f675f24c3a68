package cache

// TierStats is one tier's hit accounting.
type TierStats struct {
	Hits   int64
	Misses int64
}

// HitRate returns hits/(hits+misses), 0 with no traffic.
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats is a point-in-time snapshot of cache behavior.
type Stats struct {
	Fast TierStats
	Warm TierStats
	Cold TierStats

	// ComplianceExclusions counts gate-blocked reads and writes.
	ComplianceExclusions int64
	// RateLimitBlocks counts calls rejected by the per-caller limiter.
	RateLimitBlocks int64
	// NeighborServes counts cluster-fallback answers.
	NeighborServes int64
	// Promotions counts entries copied into a faster tier on hit.
	Promotions int64
	// Evictions counts FAST tier LRU evictions.
	Evictions int64
}
