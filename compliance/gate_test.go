package compliance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubClassifier struct {
	verdict Verdict
	err     error
}

func (s stubClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	return s.verdict, s.err
}

func TestGate_Safe(t *testing.T) {
	g := NewGate(stubClassifier{verdict: Verdict{Risk: RiskNone, SafeToCache: true}}, nil)
	assert.True(t, g.Check(context.Background(), "benign answer", "key-1"))
	assert.Equal(t, int64(0), g.Blocked())
}

func TestGate_Blocked(t *testing.T) {
	g := NewGate(stubClassifier{verdict: Verdict{Risk: RiskHigh, SafeToCache: false}}, nil)
	assert.False(t, g.Check(context.Background(), "sensitive", "key-1"))
	assert.Equal(t, int64(1), g.Blocked())
}

func TestGate_ClassifierErrorFailsClosed(t *testing.T) {
	g := NewGate(stubClassifier{err: errors.New("classifier down")}, nil)
	assert.False(t, g.Check(context.Background(), "anything", "key-1"))
	assert.Equal(t, int64(1), g.Blocked())
}

func TestGate_NilClassifierClearsEverything(t *testing.T) {
	g := NewGate(nil, nil)
	assert.True(t, g.Check(context.Background(), "anything", "key-1"))
}

func TestGate_AuditNeverLogsContent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	g := NewGate(stubClassifier{verdict: Verdict{Risk: RiskHigh, SafeToCache: false}}, logger)

	g.Check(context.Background(), "patient social security number", "the-cache-key")

	out := buf.String()
	assert.NotContains(t, out, "patient")
	assert.NotContains(t, out, "the-cache-key")
	assert.Contains(t, out, KeyRef("the-cache-key"))
	assert.Contains(t, out, "risk=high")
}

func TestKeyRef_TruncatedAndStable(t *testing.T) {
	assert.Len(t, KeyRef("abc"), 12)
	assert.Equal(t, KeyRef("abc"), KeyRef("abc"))
	assert.NotEqual(t, KeyRef("abc"), KeyRef("abd"))
}
