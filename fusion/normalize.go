package fusion

import (
	"math"
	"sort"
)

// MinMax rescales scores to [0,1]. If all scores are equal, every element
// maps to 0.5 since no ordering information exists.
func MinMax(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// ZScore standardizes scores to zero mean and unit variance. With fewer than
// two elements or zero variance the input is returned unchanged (stddev
// treated as 1).
func ZScore(scores []float64) []float64 {
	if len(scores) < 2 {
		return append([]float64(nil), scores...)
	}
	mean := Mean(scores)
	v := Variance(scores)
	if v == 0 {
		return append([]float64(nil), scores...)
	}
	std := math.Sqrt(v)
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = (s - mean) / std
	}
	return out
}

// PercentileRank maps each score to the fraction of the list that is <= it.
func PercentileRank(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	out := make([]float64, len(scores))
	n := float64(len(scores))
	for i, s := range scores {
		// Index just past the last element <= s.
		le := sort.Search(len(sorted), func(j int) bool { return sorted[j] > s })
		out[i] = float64(le) / n
	}
	return out
}

// ReciprocalRankFusion combines positional score lists by summed reciprocal
// rank: each list contributes 1/(k+rank) per item, rank starting at 1 for the
// highest score. Lists must be equal length; index i refers to the same item
// in every list. Ties keep their input order.
//
// With L lists every fused score lies in (0, L/k].
func ReciprocalRankFusion(scoreLists [][]float64, k int) []float64 {
	if len(scoreLists) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultRRFK
	}
	n := len(scoreLists[0])
	fused := make([]float64, n)
	idx := make([]int, n)
	for _, list := range scoreLists {
		if len(list) != n {
			continue // skip malformed list rather than fail the fusion
		}
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return list[idx[a]] > list[idx[b]] })
		for rank, i := range idx {
			fused[i] += 1.0 / float64(k+rank+1)
		}
	}
	return fused
}

// Mean returns the arithmetic mean, 0 for an empty list.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Variance returns the population variance, 0 for lists shorter than 2.
func Variance(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	mean := Mean(scores)
	var sum float64
	for _, s := range scores {
		d := s - mean
		sum += d * d
	}
	return sum / float64(len(scores))
}
