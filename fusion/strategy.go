package fusion

import "fmt"

// Strategy identifies a fusion strategy.
type Strategy uint8

const (
	StrategyUnknown Strategy = iota
	// StrategyCosineOnly normalizes the existing scores (MinMax) and keeps
	// the incoming ranking. Chosen when scores already agree (low variance)
	// or no cross-relevance model is available.
	StrategyCosineOnly
	// StrategyCrossOnly replaces scores with cross-relevance model scores,
	// thresholded. Chosen for small, high-dispersion candidate sets where
	// the expensive model pays off most.
	StrategyCrossOnly
	// StrategyHybridWeighted fuses the existing scores with cross-relevance
	// scores via reciprocal rank fusion, keeping all items (recall first).
	StrategyHybridWeighted
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategyCosineOnly:
		return "cosine_only"
	case StrategyCrossOnly:
		return "cross_only"
	case StrategyHybridWeighted:
		return "hybrid_weighted"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// DefaultRRFK is the conventional k constant for reciprocal rank fusion.
const DefaultRRFK = 60

// Config holds the fusion tuning knobs. All thresholds are explicit so the
// decision logic stays testable.
type Config struct {
	// LowVariance: below this, scores agree and MinMax is enough.
	LowVariance float64
	// HighVariance: above this (with a small candidate set), the
	// cross-relevance model replaces the scores outright.
	HighVariance float64
	// MaxCrossCandidates bounds how many items StrategyCrossOnly may score.
	MaxCrossCandidates int
	// CrossScoreThreshold drops items below it under StrategyCrossOnly.
	// StrategyHybridWeighted always uses a floor of 0.
	CrossScoreThreshold float64
	// RRFK is the k constant for reciprocal rank fusion.
	RRFK int
}

// DefaultConfig returns the default fusion configuration.
func DefaultConfig() Config {
	return Config{
		LowVariance:         0.1,
		HighVariance:        0.3,
		MaxCrossCandidates:  20,
		CrossScoreThreshold: 0.2,
		RRFK:                DefaultRRFK,
	}
}

// ChooseStrategy picks a fusion strategy from the measured score variance of
// the candidate set, cross-relevance model availability and candidate count.
func (c Config) ChooseStrategy(variance float64, crossAvailable bool, count int) Strategy {
	switch {
	case variance < c.LowVariance:
		return StrategyCosineOnly
	case variance > c.HighVariance && crossAvailable && count <= c.MaxCrossCandidates:
		return StrategyCrossOnly
	case crossAvailable:
		return StrategyHybridWeighted
	default:
		return StrategyCosineOnly
	}
}
