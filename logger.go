package ragkit

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with ragkit-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// LogCascade logs a cascade run.
func (l *Logger) LogCascade(ctx context.Context, strategy string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cascade failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cascade completed",
			"strategy", strategy,
			"results", results,
		)
	}
}

// LogFusion logs a fusion operation.
func (l *Logger) LogFusion(ctx context.Context, strategy string, in, out int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fusion failed",
			"candidates", in,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fusion completed",
			"strategy", strategy,
			"candidates", in,
			"ranked", out,
		)
	}
}

// LogCacheGet logs a cache lookup. keyRef is the truncated key reference,
// never the raw query.
func (l *Logger) LogCacheGet(ctx context.Context, keyRef string, found bool, tier string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache get failed",
			"key_ref", keyRef,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache get completed",
			"key_ref", keyRef,
			"found", found,
			"tier", tier,
		)
	}
}

// LogCacheSet logs a cache write.
func (l *Logger) LogCacheSet(ctx context.Context, keyRef string, stored bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache set failed",
			"key_ref", keyRef,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache set completed",
			"key_ref", keyRef,
			"stored", stored,
		)
	}
}

// LogInvalidate logs a cache invalidation.
func (l *Logger) LogInvalidate(ctx context.Context, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "invalidation failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "invalidation completed",
			"removed", removed,
		)
	}
}
