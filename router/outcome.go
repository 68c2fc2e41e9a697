package router

// SkipReason records why the walk moved past a backend.
type SkipReason string

const (
	// SkipUnhealthy marks a backend still on failure cooldown.
	SkipUnhealthy SkipReason = "unhealthy"

	// SkipThrottled marks a backend whose rate limiter denied the attempt.
	SkipThrottled SkipReason = "throttled"

	// SkipQuota marks a backend whose daily quota reservation failed.
	SkipQuota SkipReason = "quota"

	// SkipFailed marks a backend whose invocation returned an error.
	SkipFailed SkipReason = "failed"
)

// Attempt records one backend considered during a walk.
type Attempt struct {
	// Backend is the backend name.
	Backend string

	// Reason explains why the walk continued past this backend.
	Reason SkipReason

	// Err is the invocation error for failed attempts, nil for skips.
	Err error
}

// Outcome describes how a request was served: from cache, by which
// backend, and which backends were passed over on the way. Callers use
// it for logging and diagnostics; the Result alone is the answer.
type Outcome struct {
	// RequestID uniquely identifies this routing pass.
	RequestID string

	// Backend is the backend that produced the result; empty on
	// cache hits and failures.
	Backend string

	// CacheHit is true when the result was replayed from cache.
	CacheHit bool

	// Attempts lists the backends passed over before the result, in
	// walk order. Empty on cache hits and first-backend successes.
	Attempts []Attempt
}
