package providers

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by provider implementations.
var (
	// ErrEmptyText is returned when a TTS or chat request has no text.
	ErrEmptyText = errors.New("text is empty")

	// ErrEmptyAudio is returned when an STT request has no audio.
	ErrEmptyAudio = errors.New("audio data is empty")

	// ErrQuotaExhausted marks a backend skipped because its daily quota
	// reservation failed. Internal to the router; never surfaced to
	// callers on its own.
	ErrQuotaExhausted = errors.New("daily quota exhausted")
)

// BackendError represents a failure inside a specific backend.
type BackendError struct {
	// Backend is the backend name.
	Backend string

	// Code is a provider-specific error code, when one exists.
	Code string

	// Message is a human-readable description.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates whether a later attempt could succeed.
	Retryable bool
}

// NewBackendError creates a BackendError.
func NewBackendError(backend, code, message string, cause error, retryable bool) *BackendError {
	return &BackendError{
		Backend:   backend,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s backend error [%s]: %s", e.Backend, e.Code, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is matches BackendErrors by backend and code, and delegates to the
// cause for sentinel comparisons.
func (e *BackendError) Is(target error) bool {
	if e.Cause != nil && errors.Is(e.Cause, target) {
		return true
	}
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return e.Backend == t.Backend && e.Code == t.Code
}

// httpError builds a BackendError from an HTTP status and body. Server
// errors (5xx) and 429s are retryable against another backend.
func httpError(backend string, statusCode int, body []byte) *BackendError {
	retryable := statusCode >= 500 || statusCode == 429
	return NewBackendError(
		backend,
		fmt.Sprintf("http_%d", statusCode),
		fmt.Sprintf("HTTP %d: %s", statusCode, body),
		nil,
		retryable,
	)
}
