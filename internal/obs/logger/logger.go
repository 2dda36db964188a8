// Package logger wraps slog with the contextual fields EDGELESS components
// key their state on (node_id, domain_id, workflow_id, instance_id),
// ported from the teacher's common/logger.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with contextual fields.
type Logger struct {
	*slog.Logger
}

// New creates a new logger for the given level/format ("json" or "text").
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	default:
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
			AddSource:  false,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext returns a logger with trace_id from context, if present.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if traceID := ctx.Value(traceIDKey{}); traceID != nil {
		return &Logger{Logger: l.With("trace_id", traceID)}
	}
	return l
}

type traceIDKey struct{}

// WithNodeId adds node_id to the logger's context.
func (l *Logger) WithNodeId(nodeID string) *Logger {
	return &Logger{Logger: l.With("node_id", nodeID)}
}

// WithDomainId adds domain_id to the logger's context.
func (l *Logger) WithDomainId(domainID string) *Logger {
	return &Logger{Logger: l.With("domain_id", domainID)}
}

// WithWorkflowId adds workflow_id to the logger's context.
func (l *Logger) WithWorkflowId(workflowID string) *Logger {
	return &Logger{Logger: l.With("workflow_id", workflowID)}
}

// WithInstanceId adds instance_id to the logger's context.
func (l *Logger) WithInstanceId(instanceID string) *Logger {
	return &Logger{Logger: l.With("instance_id", instanceID)}
}

// WithFields returns a logger with additional fields merged in.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...)}
}

// Error logs an error with a stack trace attached.
func (l *Logger) Error(msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.Error(msg, args...)
}

// ErrorContext logs an error with context and a stack trace attached.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	args = append(args, "stack", string(debug.Stack()))
	l.Logger.ErrorContext(ctx, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
