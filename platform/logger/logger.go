// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// CycleIDKey is the context key for the orchestration cycle ID
	CycleIDKey contextKey = "cycle_id"
	// WorkerIDKey is the context key for the dispatch worker ID
	WorkerIDKey contextKey = "worker_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports cycle_id and worker_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if cycleID, ok := ctx.Value(CycleIDKey).(string); ok && cycleID != "" {
		newLogger = newLogger.WithCycleID(cycleID)
	}

	if workerID, ok := ctx.Value(WorkerIDKey).(string); ok && workerID != "" {
		newLogger = newLogger.WithWorkerID(workerID)
	}

	return newLogger
}

// WithCycleID returns a logger with the orchestration cycle ID
func (l *Logger) WithCycleID(cycleID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("cycle_id", cycleID)),
	}
}

// WithWorkerID returns a logger with the dispatch worker ID
func (l *Logger) WithWorkerID(workerID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("worker_id", workerID)),
	}
}

// DispatchOutcome logs the outcome of one dispatch attempt
func (l *Logger) DispatchOutcome(leadID, channel, outcome, providerID string) {
	l.Info("dispatch_outcome",
		slog.String("lead_id", leadID),
		slog.String("channel", channel),
		slog.String("outcome", outcome),
		slog.String("provider_id", providerID),
	)
}

// DispatchError logs a classified dispatch failure
func (l *Logger) DispatchError(leadID, channel, class string, err error) {
	l.Warn("dispatch_error",
		slog.String("lead_id", leadID),
		slog.String("channel", channel),
		slog.String("class", class),
		slog.String("error", err.Error()),
	)
}

// CycleSummary logs the result of one orchestration cycle
func (l *Logger) CycleSummary(cycleID string, claimed, released int, byOutcome map[string]int, duration time.Duration) {
	attrs := []any{
		slog.String("cycle_id", cycleID),
		slog.Int("claimed", claimed),
		slog.Int("released", released),
		slog.Duration("duration", duration),
	}
	for outcome, count := range byOutcome {
		attrs = append(attrs, slog.Int("outcome_"+outcome, count))
	}
	l.Info("cycle_summary", attrs...)
}

// StoreError logs lead store errors
func (l *Logger) StoreError(operation string, err error) {
	l.Error("store_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
