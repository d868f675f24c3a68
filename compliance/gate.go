// Package compliance gates what the response cache is allowed to persist.
// The actual sensitive-content detection lives in an external classifier;
// this package wraps it with blocking policy, counters and an audit trail
// that never records raw content.
package compliance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// RiskLevel is the classifier's severity verdict.
type RiskLevel uint8

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

// String returns the risk level name.
func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return fmt.Sprintf("risk(%d)", uint8(r))
	}
}

// Verdict is the classifier outcome for one piece of text.
type Verdict struct {
	Risk        RiskLevel
	SafeToCache bool
}

// Classifier detects content that must not be cached.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// NoopClassifier clears everything. Use it to disable the gate.
type NoopClassifier struct{}

// Classify reports every text as safe.
func (NoopClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	return Verdict{Risk: RiskNone, SafeToCache: true}, nil
}

// Gate applies the classifier verdict to cache reads and writes.
//
// The gate fails closed: a classifier error counts as not safe. Blocked
// checks are recorded in the audit log with a truncated key digest, never
// the content itself.
type Gate struct {
	classifier Classifier
	logger     *slog.Logger

	blocked atomic.Int64
}

// NewGate creates a Gate. A nil classifier clears everything; a nil logger
// discards audit output.
func NewGate(classifier Classifier, logger *slog.Logger) *Gate {
	if classifier == nil {
		classifier = NoopClassifier{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gate{classifier: classifier, logger: logger}
}

// Check reports whether text may be cached. key is only used for the audit
// reference; pass the cache key of the offending request.
func (g *Gate) Check(ctx context.Context, text, key string) bool {
	verdict, err := g.classifier.Classify(ctx, text)
	if err != nil {
		g.blocked.Add(1)
		g.logger.Warn("compliance classifier unavailable, failing closed",
			"key_ref", KeyRef(key),
			"error", err,
		)
		return false
	}
	if !verdict.SafeToCache {
		g.blocked.Add(1)
		g.logger.Info("compliance gate blocked cache entry",
			"key_ref", KeyRef(key),
			"risk", verdict.Risk.String(),
		)
		return false
	}
	return true
}

// Blocked returns how many checks were blocked so far.
func (g *Gate) Blocked() int64 {
	return g.blocked.Load()
}

// KeyRef returns a truncated, non-reversible reference for audit logs.
func KeyRef(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
