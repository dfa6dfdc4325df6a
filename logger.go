package bitslab

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bitslab-specific context.
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

// WithSymbol adds a symbol field to the logger.
func (l *Logger) WithSymbol(sym Symbol) *Logger {
	return &Logger{
		Logger: l.Logger.With("symbol", uint64(sym)),
	}
}

// LogPages logs arena page traffic caused by one allocator operation.
func (l *Logger) LogPages(ctx context.Context, acquired, released uint64, pages uint32) {
	if acquired > 0 {
		l.DebugContext(ctx, "page acquired",
			"count", acquired,
			"pages", pages,
		)
	}
	if released > 0 {
		l.DebugContext(ctx, "page released",
			"count", released,
			"pages", pages,
		)
	}
}

// LogRelease logs the release of a symbol.
func (l *Logger) LogRelease(ctx context.Context, sym Symbol, bits uint64) {
	l.DebugContext(ctx, "symbol released",
		"symbol", uint64(sym),
		"bits", bits,
	)
}

// LogSaveImage logs an image save operation.
func (l *Logger) LogSaveImage(ctx context.Context, name string, pages uint32, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "image save failed",
			"name", name,
			"pages", pages,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "image saved",
			"name", name,
			"pages", pages,
			"bytes", bytes,
		)
	}
}

// LogLoadImage logs an image load operation.
func (l *Logger) LogLoadImage(ctx context.Context, name string, pages uint32, symbols uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "image load failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "image loaded",
			"name", name,
			"pages", pages,
			"symbols", symbols,
		)
	}
}
