package fusion

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/ragkit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	scores []float64
	err    error
	calls  int
}

func (s *stubScorer) Score(ctx context.Context, query string, contents []string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.scores[:len(contents)], nil
}

func lexItems(scores ...float64) []model.ScoredItem {
	items := make([]model.ScoredItem, len(scores))
	for i, s := range scores {
		items[i] = model.ScoredItem{
			SourceID: string(rune('a' + i)),
			Content:  "content",
			Signals:  map[string]float64{model.SignalLexical: s},
		}
	}
	return items
}

func TestChooseStrategy(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		variance float64
		xAvail   bool
		count    int
		want     Strategy
	}{
		{"low variance", 0.05, true, 10, StrategyCosineOnly},
		{"high variance small set", 0.4, true, 10, StrategyCrossOnly},
		{"high variance large set", 0.4, true, 50, StrategyHybridWeighted},
		{"mid variance with model", 0.2, true, 10, StrategyHybridWeighted},
		{"no model", 0.4, false, 10, StrategyCosineOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ChooseStrategy(tt.variance, tt.xAvail, tt.count))
		})
	}
}

func TestFuseAndRank_CosineOnly(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	// Tight scores -> low variance -> MinMax only.
	items, analysis, err := e.FuseAndRank(context.Background(), "q", lexItems(0.50, 0.52, 0.48), 0)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, StrategyCosineOnly, analysis.Strategy)
	assert.Equal(t, "b", items[0].SourceID)
	assert.Equal(t, 1.0, items[0].FusedScore)
	assert.Equal(t, 0.0, items[2].FusedScore)
}

func TestFuseAndRank_CrossOnly(t *testing.T) {
	scorer := &stubScorer{scores: []float64{0.9, 0.1, 0.8}}
	e := NewEngine(DefaultConfig(), scorer)

	// Wide spread -> variance above the high cutoff, small set, model up.
	items, analysis, err := e.FuseAndRank(context.Background(), "q", lexItems(0.1, 2.0, 0.5), 0)
	require.NoError(t, err)

	assert.Equal(t, StrategyCrossOnly, analysis.Strategy)
	// 0.1 is below the 0.2 threshold and gets dropped.
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].SourceID)
	assert.Equal(t, 0.9, items[0].FusedScore)
	assert.Equal(t, 0.8, items[1].Signals[model.SignalCrossRelevance])
}

func TestFuseAndRank_HybridKeepsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCrossCandidates = 2 // force the hybrid branch for 3 items
	scorer := &stubScorer{scores: []float64{0.0, 0.9, 0.5}}
	e := NewEngine(cfg, scorer)

	items, analysis, err := e.FuseAndRank(context.Background(), "q", lexItems(0.1, 2.0, 0.5), 0)
	require.NoError(t, err)

	assert.Equal(t, StrategyHybridWeighted, analysis.Strategy)
	// Floor threshold is 0: even the 0.0 cross score stays in.
	assert.Len(t, items, 3)
	// Top item ranks first on both signals.
	assert.Equal(t, "b", items[0].SourceID)
}

func TestFuseAndRank_ScorerFailureDegrades(t *testing.T) {
	scorer := &stubScorer{err: errors.New("model down")}
	e := NewEngine(DefaultConfig(), scorer)

	items, analysis, err := e.FuseAndRank(context.Background(), "q", lexItems(0.1, 2.0, 0.5), 0)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, StrategyCosineOnly, analysis.Strategy)
	assert.Equal(t, 1, scorer.calls)
}

func TestFuseAndRank_VarianceReductionNeverNegative(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	inputs := [][]float64{
		{0.1, 0.9},
		{1, 1, 1, 1},
		{0.2, 0.4, 0.6, 0.8, 1.0},
		{5, -3, 0.5, 12},
	}
	for _, scores := range inputs {
		_, analysis, err := e.FuseAndRank(context.Background(), "q", lexItems(scores...), 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, analysis.VarianceReduction, 0.0)
	}
}

func TestFuseAndRank_DuplicateSourceID(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	items := lexItems(0.5, 0.6)
	items[1].SourceID = items[0].SourceID

	_, _, err := e.FuseAndRank(context.Background(), "q", items, 0)
	assert.ErrorIs(t, err, ErrDuplicateSourceID)
}

func TestFuseAndRank_TopK(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	items, _, err := e.FuseAndRank(context.Background(), "q", lexItems(0.1, 0.2, 0.3, 0.4), 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "d", items[0].SourceID)
}

func TestFuseAndRank_Empty(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	items, analysis, err := e.FuseAndRank(context.Background(), "q", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0.0, analysis.VarianceReduction)
}

func TestFuseAndRank_DoesNotMutateInput(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)
	in := lexItems(0.1, 0.9)
	_, _, err := e.FuseAndRank(context.Background(), "q", in, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, in[0].FusedScore)
	assert.Equal(t, 0.0, in[1].FusedScore)
}

func TestFuseAndRank_AnalysisCoversFullSetBeforeTopK(t *testing.T) {
	e := NewEngine(DefaultConfig(), nil)

	items, analysis, err := e.FuseAndRank(context.Background(), "q", lexItems(0.2, 0.4, 0.6), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// MinMax over all three candidates is [0, 0.5, 1]; truncating to one
	// result must not collapse the reported after-stats.
	assert.InDelta(t, 1.0/6.0, analysis.VarianceAfter, 1e-9)
	assert.InDelta(t, 0.5, analysis.MeanAfter, 1e-9)
}
