package fusion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/ragkit/model"
)

var (
	// ErrDuplicateSourceID is returned when a candidate list carries the
	// same SourceID twice. Identity must be unique before fusion.
	ErrDuplicateSourceID = errors.New("duplicate source id in candidate list")
)

// CrossRelevanceScorer produces pairwise query-document relevance scores from
// a dedicated relevance model. Expensive; the Engine calls it only when the
// chosen strategy needs it.
type CrossRelevanceScorer interface {
	Score(ctx context.Context, query string, contents []string) ([]float64, error)
}

// Analysis reports what fusion did and whether it helped.
type Analysis struct {
	Strategy       Strategy
	VarianceBefore float64
	VarianceAfter  float64
	// VarianceReduction is max(0, VarianceBefore-VarianceAfter).
	VarianceReduction float64
	MeanBefore        float64
	MeanAfter         float64
	// QualityImprovement is the relative change of mean/(1+variance),
	// 0 when the before-term is 0.
	QualityImprovement float64
}

// Engine fuses multi-signal candidate lists into a single ranking.
type Engine struct {
	cfg    Config
	scorer CrossRelevanceScorer // nil when no cross-relevance model is wired
}

// NewEngine creates a fusion engine. scorer may be nil; strategies then fall
// back to normalization-only fusion.
func NewEngine(cfg Config, scorer CrossRelevanceScorer) *Engine {
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	if cfg.MaxCrossCandidates <= 0 {
		cfg.MaxCrossCandidates = DefaultConfig().MaxCrossCandidates
	}
	return &Engine{cfg: cfg, scorer: scorer}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// FuseAndRank combines the items' signals into fused scores, sorts descending
// and truncates to topK (topK <= 0 keeps everything).
//
// A failing cross-relevance scorer degrades to normalization-only fusion; it
// never fails the call.
func (e *Engine) FuseAndRank(ctx context.Context, query string, items []model.ScoredItem, topK int) ([]model.ScoredItem, Analysis, error) {
	if len(items) == 0 {
		return nil, Analysis{Strategy: StrategyCosineOnly}, nil
	}
	if err := checkUniqueSourceIDs(items); err != nil {
		return nil, Analysis{}, err
	}

	before := baseScores(items)
	analysis := Analysis{
		VarianceBefore: Variance(before),
		MeanBefore:     Mean(before),
	}

	strategy := e.cfg.ChooseStrategy(analysis.VarianceBefore, e.scorer != nil, len(items))

	out := cloneItems(items)
	switch strategy {
	case StrategyCrossOnly, StrategyHybridWeighted:
		cross, err := e.crossScores(ctx, query, out)
		if err != nil {
			// Degrade: the model being down must not sink the ranking.
			strategy = StrategyCosineOnly
			applyMinMax(out, before)
			break
		}
		if strategy == StrategyCrossOnly {
			out = applyCrossOnly(out, cross, e.cfg.CrossScoreThreshold)
		} else {
			applyHybridWeighted(out, before, cross, e.cfg.RRFK)
		}
	default:
		applyMinMax(out, before)
	}
	analysis.Strategy = strategy

	sort.SliceStable(out, func(a, b int) bool { return out[a].FusedScore > out[b].FusedScore })

	// The after-stats are taken over the full fused set so the analysis
	// measures fusion alone, not the topK truncation below.
	after := fusedScores(out)
	analysis.VarianceAfter = Variance(after)
	analysis.MeanAfter = Mean(after)
	analysis.VarianceReduction = analysis.VarianceBefore - analysis.VarianceAfter
	if analysis.VarianceReduction < 0 {
		analysis.VarianceReduction = 0
	}
	analysis.QualityImprovement = qualityImprovement(analysis)

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, analysis, nil
}

func (e *Engine) crossScores(ctx context.Context, query string, items []model.ScoredItem) ([]float64, error) {
	contents := make([]string, len(items))
	for i, it := range items {
		contents[i] = it.Content
	}
	scores, err := e.scorer.Score(ctx, query, contents)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(items) {
		return nil, fmt.Errorf("cross scorer returned %d scores for %d items", len(scores), len(items))
	}
	for i := range items {
		if items[i].Signals == nil {
			items[i].Signals = make(map[string]float64, 1)
		}
		items[i].Signals[model.SignalCrossRelevance] = scores[i]
	}
	return scores, nil
}

func applyMinMax(items []model.ScoredItem, scores []float64) {
	norm := MinMax(scores)
	for i := range items {
		items[i].FusedScore = norm[i]
	}
}

func applyCrossOnly(items []model.ScoredItem, cross []float64, threshold float64) []model.ScoredItem {
	kept := items[:0]
	for i := range items {
		if cross[i] < threshold {
			continue
		}
		items[i].FusedScore = cross[i]
		kept = append(kept, items[i])
	}
	return kept
}

func applyHybridWeighted(items []model.ScoredItem, base, cross []float64, k int) {
	fused := ReciprocalRankFusion([][]float64{base, cross}, k)
	for i := range items {
		items[i].FusedScore = fused[i]
	}
}

func qualityImprovement(a Analysis) float64 {
	before := a.MeanBefore / (1 + a.VarianceBefore)
	if before == 0 {
		return 0
	}
	after := a.MeanAfter / (1 + a.VarianceAfter)
	return (after - before) / before
}

func checkUniqueSourceIDs(items []model.ScoredItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.SourceID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateSourceID, it.SourceID)
		}
		seen[it.SourceID] = struct{}{}
	}
	return nil
}

func baseScores(items []model.ScoredItem) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = it.BestScore()
	}
	return out
}

func fusedScores(items []model.ScoredItem) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = it.FusedScore
	}
	return out
}

func cloneItems(items []model.ScoredItem) []model.ScoredItem {
	out := make([]model.ScoredItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Signals != nil {
			s := make(map[string]float64, len(out[i].Signals))
			for k, v := range out[i].Signals {
				s[k] = v
			}
			out[i].Signals = s
		}
	}
	return out
}
