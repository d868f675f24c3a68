package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMax(t *testing.T) {
	out := MinMax([]float64{1, 3, 2})
	assert.Equal(t, []float64{0, 1, 0.5}, out)
}

func TestMinMax_AllEqual(t *testing.T) {
	out := MinMax([]float64{2, 2, 2})
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, out)
}

func TestMinMax_Empty(t *testing.T) {
	assert.Nil(t, MinMax(nil))
}

func TestZScore(t *testing.T) {
	out := ZScore([]float64{1, 2, 3})
	// Mean 2, population stddev sqrt(2/3).
	assert.InDelta(t, 0, out[1], 1e-9)
	assert.InDelta(t, -out[0], out[2], 1e-9)
	assert.Greater(t, out[2], 0.0)
}

func TestZScore_Degenerate(t *testing.T) {
	// Fewer than 2 elements: unchanged.
	assert.Equal(t, []float64{5}, ZScore([]float64{5}))
	// Zero variance: unchanged.
	assert.Equal(t, []float64{2, 2, 2}, ZScore([]float64{2, 2, 2}))
}

func TestPercentileRank(t *testing.T) {
	out := PercentileRank([]float64{10, 20, 30, 40})
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.0}, out)
}

func TestPercentileRank_Ties(t *testing.T) {
	out := PercentileRank([]float64{1, 1, 2})
	// Both 1s have two elements <= them.
	assert.InDelta(t, 2.0/3.0, out[0], 1e-9)
	assert.InDelta(t, 2.0/3.0, out[1], 1e-9)
	assert.InDelta(t, 1.0, out[2], 1e-9)
}

func TestReciprocalRankFusion(t *testing.T) {
	// Item 0 ranks first in both lists, item 2 last in both.
	fused := ReciprocalRankFusion([][]float64{
		{0.9, 0.5, 0.1},
		{10, 5, 1},
	}, 60)

	assert.InDelta(t, 2.0/61.0, fused[0], 1e-9)
	assert.InDelta(t, 2.0/62.0, fused[1], 1e-9)
	assert.InDelta(t, 2.0/63.0, fused[2], 1e-9)
}

func TestReciprocalRankFusion_Bounds(t *testing.T) {
	lists := [][]float64{
		{0.3, 0.9, 0.1, 0.5},
		{2, 1, 4, 3},
		{0.5, 0.5, 0.5, 0.5},
	}
	fused := ReciprocalRankFusion(lists, 60)
	upper := float64(len(lists)) / 60.0
	for i, f := range fused {
		assert.Greater(t, f, 0.0, "item %d", i)
		assert.LessOrEqual(t, f, upper, "item %d", i)
	}
}

func TestVariance(t *testing.T) {
	assert.Equal(t, 0.0, Variance([]float64{5}))
	assert.InDelta(t, 2.0/3.0, Variance([]float64{1, 2, 3}), 1e-9)
}
