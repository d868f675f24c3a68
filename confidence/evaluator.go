// Package confidence scores a first-pass (lexical) result set against its
// query. The cascade controller uses the score to decide whether the more
// expensive semantic pass is worth running.
//
// Evaluate is a pure function of its inputs: no I/O, no side effects.
package confidence

import (
	"strings"

	"github.com/hupe1980/ragkit/model"
)

// Config holds the evaluator weights and knobs. Zero values are replaced by
// the defaults from DefaultConfig.
type Config struct {
	// TopN is how many leading results feed the per-result signals.
	TopN int

	// CategoryIncrement is the coverage contribution of one matched
	// category, capped at 1.0 overall.
	CategoryIncrement float64
	// NeutralCoverage is returned for domain coverage when the query has no
	// domain terms at all, so generic queries are not penalized.
	NeutralCoverage float64
	// Amplification boosts the query x result coverage product before
	// clamping.
	Amplification float64

	// Text-match blend weights (exact overlap / fuzzy overlap / lexical
	// score).
	ExactWeight   float64
	FuzzyWeight   float64
	LexicalWeight float64

	// Context-relevance blend weights (query side / result side).
	QueryContextWeight  float64
	ResultContextWeight float64

	// Overall blend weights.
	TextMatchWeight float64
	DomainWeight    float64
	ContextWeight   float64
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() Config {
	return Config{
		TopN:                3,
		CategoryIncrement:   0.2,
		NeutralCoverage:     0.5,
		Amplification:       1.5,
		ExactWeight:         0.6,
		FuzzyWeight:         0.3,
		LexicalWeight:       0.1,
		QueryContextWeight:  0.4,
		ResultContextWeight: 0.6,
		TextMatchWeight:     0.5,
		DomainWeight:        0.3,
		ContextWeight:       0.2,
	}
}

// Evaluator computes multi-dimensional confidence scores.
type Evaluator struct {
	cfg     Config
	domain  *CategorySet
	context *CategorySet
}

// NewEvaluator creates an evaluator. Nil category sets fall back to the
// built-in defaults.
func NewEvaluator(cfg Config, domain, contextSet *CategorySet) *Evaluator {
	def := DefaultConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.CategoryIncrement <= 0 {
		cfg.CategoryIncrement = def.CategoryIncrement
	}
	if cfg.NeutralCoverage <= 0 {
		cfg.NeutralCoverage = def.NeutralCoverage
	}
	if cfg.Amplification <= 0 {
		cfg.Amplification = def.Amplification
	}
	if cfg.ExactWeight+cfg.FuzzyWeight+cfg.LexicalWeight == 0 {
		cfg.ExactWeight, cfg.FuzzyWeight, cfg.LexicalWeight = def.ExactWeight, def.FuzzyWeight, def.LexicalWeight
	}
	if cfg.QueryContextWeight+cfg.ResultContextWeight == 0 {
		cfg.QueryContextWeight, cfg.ResultContextWeight = def.QueryContextWeight, def.ResultContextWeight
	}
	if cfg.TextMatchWeight+cfg.DomainWeight+cfg.ContextWeight == 0 {
		cfg.TextMatchWeight, cfg.DomainWeight, cfg.ContextWeight = def.TextMatchWeight, def.DomainWeight, def.ContextWeight
	}
	if domain == nil {
		domain = DefaultDomainCategories()
	}
	if contextSet == nil {
		contextSet = DefaultContextCategories()
	}
	return &Evaluator{cfg: cfg, domain: domain, context: contextSet}
}

// Evaluate scores results against query. expectedCount is the result count a
// healthy search would return; sparser sets scale the overall score down.
// Empty results yield the zero ConfidenceScore.
func (ev *Evaluator) Evaluate(query string, results []model.ScoredItem, expectedCount int) model.ConfidenceScore {
	if len(results) == 0 {
		return model.ConfidenceScore{}
	}
	top := results
	if len(top) > ev.cfg.TopN {
		top = top[:ev.cfg.TopN]
	}

	score := model.ConfidenceScore{
		ResultCount: len(results),
		TopScore:    topLexicalScore(results),
	}
	score.TextMatch = ev.textMatch(query, top)
	score.DomainTermCoverage = ev.domainCoverage(query, top)
	score.ContextRelevance = ev.contextRelevance(query, top)

	overall := ev.cfg.TextMatchWeight*score.TextMatch +
		ev.cfg.DomainWeight*score.DomainTermCoverage +
		ev.cfg.ContextWeight*score.ContextRelevance
	if expectedCount > 0 {
		overall *= min(float64(len(results))/float64(expectedCount), 1.0)
	}
	score.Overall = clamp01(overall)
	return score
}

// textMatch blends exact term overlap, fuzzy substring overlap and the
// result's own lexical score, averaged over the top results.
func (ev *Evaluator) textMatch(query string, top []model.ScoredItem) float64 {
	terms := tokenize(query)
	if len(terms) == 0 {
		return 0
	}
	var sum float64
	for _, item := range top {
		content := strings.ToLower(item.Content)
		contentTerms := tokenSet(content)

		exact, fuzzy := 0, 0
		for _, t := range terms {
			if _, ok := contentTerms[t]; ok {
				exact++
			}
			if strings.Contains(content, t) {
				fuzzy++
			}
		}
		exactRatio := float64(exact) / float64(len(terms))
		fuzzyRatio := float64(fuzzy) / float64(len(terms))
		lexical := clamp01(item.Signals[model.SignalLexical])

		sum += ev.cfg.ExactWeight*exactRatio + ev.cfg.FuzzyWeight*fuzzyRatio + ev.cfg.LexicalWeight*lexical
	}
	return clamp01(sum / float64(len(top)))
}

// domainCoverage combines query-side and result-side domain term coverage.
// A query with no domain terms returns the neutral value so the signal never
// penalizes generic queries.
func (ev *Evaluator) domainCoverage(query string, top []model.ScoredItem) float64 {
	queryCov := ev.coverage(ev.domain, query)
	if queryCov == 0 {
		return ev.cfg.NeutralCoverage
	}
	var resultSum float64
	for _, item := range top {
		resultSum += ev.coverage(ev.domain, item.Content)
	}
	resultCov := resultSum / float64(len(top))
	return clamp01(queryCov * resultCov * ev.cfg.Amplification)
}

// contextRelevance blends query-side and result-side contextual coverage.
func (ev *Evaluator) contextRelevance(query string, top []model.ScoredItem) float64 {
	queryScore := ev.coverage(ev.context, query)
	var resultSum float64
	for _, item := range top {
		resultSum += ev.coverage(ev.context, item.Content)
	}
	resultAvg := resultSum / float64(len(top))
	return clamp01(ev.cfg.QueryContextWeight*queryScore + ev.cfg.ResultContextWeight*resultAvg)
}

func (ev *Evaluator) coverage(cs *CategorySet, text string) float64 {
	return min(float64(cs.Matches(text))*ev.cfg.CategoryIncrement, 1.0)
}

func topLexicalScore(results []model.ScoredItem) float64 {
	var top float64
	for _, r := range results {
		if s, ok := r.Signal(model.SignalLexical); ok && s > top {
			top = s
		}
	}
	return top
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(text) {
		set[t] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
