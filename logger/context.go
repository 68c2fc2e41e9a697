package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for fields that identify a request as it crosses the
// router, providers, and stores.
const (
	// ContextKeyRequestID identifies an individual capability request.
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeySessionID identifies the conversation session (chat only).
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyCapability identifies the requested capability.
	ContextKeyCapability contextKey = "capability"

	// ContextKeyBackend identifies the backend currently being tried.
	ContextKeyBackend contextKey = "backend"
)

// allContextKeys lists every key the handler extracts into log records.
var allContextKeys = []contextKey{
	ContextKeyRequestID,
	ContextKeySessionID,
	ContextKeyCapability,
	ContextKeyBackend,
}

// WithRequestID returns a new context carrying the request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithSessionID returns a new context carrying the session ID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithCapability returns a new context carrying the capability name.
func WithCapability(ctx context.Context, capability string) context.Context {
	return context.WithValue(ctx, ContextKeyCapability, capability)
}

// WithBackend returns a new context carrying the backend name.
func WithBackend(ctx context.Context, backend string) context.Context {
	return context.WithValue(ctx, ContextKeyBackend, backend)
}

// ContextHandler is a slog.Handler that extracts routing fields from the
// context and adds them to every record before delegating to the inner
// handler.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps the given handler with context-field extraction.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enriches the record with context fields, then delegates.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface contract
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	newRecord := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	for _, key := range allContextKeys {
		if v := ctx.Value(key); v != nil {
			if s, ok := v.(string); ok && s != "" {
				newRecord.AddAttrs(slog.String(string(key), s))
			}
		}
	}

	r.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(a)
		return true
	})

	return h.inner.Handle(ctx, newRecord)
}

// WithAttrs returns a new handler with the attributes added to the inner handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a new handler with the group added to the inner handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}

var _ slog.Handler = (*ContextHandler)(nil)
