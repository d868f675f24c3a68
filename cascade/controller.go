// Package cascade decides how hard to search. A cheap lexical pass always
// runs first; its confidence score picks one of three strategies for the
// rest of the query: keep the lexical results, add a semantic pass and merge,
// or discard the lexical pass and go semantic-only.
package cascade

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/hupe1980/ragkit/confidence"
	"github.com/hupe1980/ragkit/model"
)

var (
	// ErrEmptyQuery is returned for blank queries before any collaborator
	// is consulted.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNoSearcher is returned when neither pass can run.
	ErrNoSearcher = errors.New("no searcher available")
)

// Config holds the cascade decision thresholds.
type Config struct {
	// HighConfidence: at or above, the lexical results stand on their own.
	HighConfidence float64
	// MediumConfidence: at or above, lexical is worth keeping but the
	// semantic pass still runs (HYBRID). Below, lexical is discarded.
	MediumConfidence float64
	// DomainConfidenceThreshold: above, the query is clearly in-domain and
	// lexical matching is trusted more.
	DomainConfidenceThreshold float64
	// ContextConfidenceThreshold: above, the query is conversational and
	// always benefits from the semantic pass.
	ContextConfidenceThreshold float64
}

// DefaultConfig returns the default cascade thresholds.
func DefaultConfig() Config {
	return Config{
		HighConfidence:             0.75,
		MediumConfidence:           0.45,
		DomainConfidenceThreshold:  0.7,
		ContextConfidenceThreshold: 0.6,
	}
}

// Decide maps a confidence score to a strategy.
//
// In-domain queries trust lexical matching: TEXT_ONLY at high confidence,
// HYBRID otherwise. Contextual queries always take the semantic pass.
// Everything else escalates monotonically as confidence drops.
func (c Config) Decide(score model.ConfidenceScore) Strategy {
	switch {
	case score.DomainTermCoverage > c.DomainConfidenceThreshold:
		if score.Overall >= c.HighConfidence {
			return StrategyTextOnly
		}
		return StrategyHybrid
	case score.ContextRelevance > c.ContextConfidenceThreshold:
		return StrategyHybrid
	case score.Overall >= c.HighConfidence:
		return StrategyTextOnly
	case score.Overall >= c.MediumConfidence:
		return StrategyHybrid
	default:
		return StrategyVectorOnly
	}
}

// Controller runs the confidence-driven search cascade.
type Controller struct {
	cfg       Config
	lexical   LexicalSearcher
	semantic  SemanticSearcher
	evaluator *confidence.Evaluator
	logger    *slog.Logger
}

// NewController creates a cascade controller. semantic may be nil; the
// controller then never escalates beyond the lexical pass. A nil evaluator
// gets the default one, a nil logger discards output.
func NewController(cfg Config, lexical LexicalSearcher, semantic SemanticSearcher, evaluator *confidence.Evaluator, logger *slog.Logger) *Controller {
	if evaluator == nil {
		evaluator = confidence.NewEvaluator(confidence.DefaultConfig(), nil, nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		cfg:       cfg,
		lexical:   lexical,
		semantic:  semantic,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Run executes the cascade for query. The context cancels in-flight passes;
// a cancelled run returns ctx.Err() with no partial results.
func (c *Controller) Run(ctx context.Context, query string, sc SearchConfig) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if c.lexical == nil && c.semantic == nil {
		return nil, ErrNoSearcher
	}
	if sc.TopK <= 0 {
		sc.TopK = 10
	}
	if sc.ExpectedCount <= 0 {
		sc.ExpectedCount = sc.TopK
	}

	res := &Result{State: StateInitial}

	var lexItems []model.ScoredItem
	if c.lexical != nil {
		var err error
		lexItems, err = c.lexical.Search(ctx, query, sc.TopK)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Lexical backend down: the semantic pass can still serve.
			c.logger.Warn("lexical pass failed, escalating to vector-only", "error", err)
			if c.semantic == nil {
				return nil, err
			}
			lexItems = nil
		}
	}
	res.State = StateLexicalDone
	res.Confidence = c.evaluator.Evaluate(query, lexItems, sc.ExpectedCount)

	res.Strategy = c.cfg.Decide(res.Confidence)
	if c.semantic == nil {
		res.Strategy = StrategyTextOnly
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch res.Strategy {
	case StrategyTextOnly:
		res.Items = lexItems
	case StrategyHybrid:
		semItems, err := c.semantic.Search(ctx, query, sc.Embedding, sc.TopK)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("semantic pass failed, degrading to lexical results", "error", err)
			res.Degraded = true
			res.Items = lexItems
			break
		}
		res.Items = mergeResults(lexItems, semItems)
	case StrategyVectorOnly:
		semItems, err := c.semantic.Search(ctx, query, sc.Embedding, sc.TopK)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("semantic pass failed, degrading to lexical results", "error", err)
			res.Degraded = true
			res.Items = lexItems
			break
		}
		res.Items = semItems
	}

	c.tagItems(res)
	res.State = StateDone

	c.logger.Debug("cascade done",
		"strategy", res.Strategy.String(),
		"confidence", res.Confidence.Overall,
		"results", len(res.Items),
		"degraded", res.Degraded,
	)
	return res, nil
}

// mergeResults de-duplicates on SourceID with semantic results taking
// priority, then sorts by whichever score is present.
func mergeResults(lexical, semantic []model.ScoredItem) []model.ScoredItem {
	merged := make([]model.ScoredItem, 0, len(lexical)+len(semantic))
	seen := make(map[string]struct{}, len(semantic))
	for _, it := range semantic {
		seen[it.SourceID] = struct{}{}
		merged = append(merged, it)
	}
	for _, it := range lexical {
		if _, dup := seen[it.SourceID]; dup {
			continue
		}
		merged = append(merged, it)
	}
	sort.SliceStable(merged, func(a, b int) bool {
		return merged[a].BestScore() > merged[b].BestScore()
	})
	return merged
}

func (c *Controller) tagItems(res *Result) {
	for i := range res.Items {
		res.Items[i].SetMeta(MetaStrategy, res.Strategy.String())
		res.Items[i].SetMeta(MetaConfidence, res.Confidence.Overall)
	}
}
