package cascade

import (
	"context"
	"fmt"

	"github.com/hupe1980/ragkit/model"
)

// LexicalSearcher is the cheap text-match search collaborator.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]model.ScoredItem, error)
}

// SemanticSearcher is the expensive embedding-based search collaborator.
// The embedding is produced outside this core and passed through.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, embedding []float32, topK int) ([]model.ScoredItem, error)
}

// State tracks cascade progress, mostly for observability and tests.
type State uint8

const (
	StateInitial State = iota
	StateLexicalDone
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateLexicalDone:
		return "lexical_done"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Strategy is the search strategy picked after the lexical pass, ordered by
// cost: TEXT_ONLY < HYBRID < VECTOR_ONLY in additional work.
type Strategy uint8

const (
	StrategyUnknown Strategy = iota
	// StrategyTextOnly returns the lexical results unchanged.
	StrategyTextOnly
	// StrategyHybrid runs the semantic pass and merges both sets.
	StrategyHybrid
	// StrategyVectorOnly discards the lexical pass entirely.
	StrategyVectorOnly
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyTextOnly:
		return "text_only"
	case StrategyHybrid:
		return "hybrid"
	case StrategyVectorOnly:
		return "vector_only"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// Metadata keys stamped on every returned item.
const (
	MetaStrategy   = "cascade_strategy"
	MetaConfidence = "cascade_confidence"
)

// SearchConfig parameterizes one cascade run.
type SearchConfig struct {
	// TopK is the number of results requested per pass.
	TopK int
	// ExpectedCount feeds the confidence evaluator's sparsity penalty.
	// Defaults to TopK.
	ExpectedCount int
	// Embedding is the query embedding for the semantic pass, produced by
	// an external embedder. May be nil if the semantic backend can embed
	// on its own.
	Embedding []float32
}

// Result is the outcome of a cascade run.
type Result struct {
	Items      []model.ScoredItem
	Strategy   Strategy
	Confidence model.ConfidenceScore
	// Degraded is set when the semantic pass failed and the controller fell
	// back to lexical-only results.
	Degraded bool
	// State is the terminal state, StateDone on any successful return.
	State State
}
