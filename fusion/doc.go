// Package fusion normalizes and combines relevance scores from multiple
// sources into a single comparable ranking.
//
// The normalization primitives (MinMax, ZScore, PercentileRank) and
// ReciprocalRankFusion are pure functions. The Engine layers an adaptive
// strategy selector on top: score dispersion of the candidate set decides
// whether plain normalization suffices or the cross-relevance model is worth
// its cost. After fusion the Engine reports variance reduction and quality
// improvement so callers can verify fusion actually helped.
package fusion
