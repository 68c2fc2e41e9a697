// Package logger provides structured logging for the routing core.
//
// It wraps log/slog with a process-wide default logger, LOG_LEVEL-based
// verbosity control, automatic API-key redaction, and helpers for the
// events the router cares about: backend invocations, their outcomes,
// and cache activity.
package logger

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
)

// DefaultLogger is the global structured logger instance.
// It is safe for concurrent use.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(NewContextHandler(handler))
}

// SetLevel replaces the default logger with one at the given level.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(NewContextHandler(handler))
}

// SetVerbose enables debug-level logging when verbose is true.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// Debug logs a debug-level message.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// BackendCall logs a backend invocation attempt.
func BackendCall(backend, capability string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"backend", backend,
		"capability", capability,
	)
	allAttrs = append(allAttrs, attrs...)
	Debug("backend call", allAttrs...)
}

// BackendResponse logs a successful backend invocation.
func BackendResponse(backend, capability string, latency time.Duration, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"backend", backend,
		"capability", capability,
		"latency_ms", latency.Milliseconds(),
	)
	allAttrs = append(allAttrs, attrs...)
	Debug("backend response", allAttrs...)
}

// BackendFailure logs a failed backend invocation. The router falls over
// to the next backend after this, so it is a warning, not an error.
func BackendFailure(backend, capability string, err error, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"backend", backend,
		"capability", capability,
		"error", err,
	)
	allAttrs = append(allAttrs, attrs...)
	Warn("backend call failed", allAttrs...)
}

// apiKeyPatterns matches common credential formats that must never reach logs.
var apiKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),     // OpenAI-style keys
	regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),   // Google API keys
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`), // Bearer tokens
}

// RedactSensitiveData removes API keys and bearer tokens from a string,
// preserving a short prefix for debugging.
func RedactSensitiveData(input string) string {
	result := input
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}
